package control

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/lingo/kit"
)

// Router builds the HTTP control surface. passwordHash is a bcrypt hash; when
// username and passwordHash are both empty the surface is unauthenticated
// (loopback-only deployments).
func (c *Controller) Router(username, passwordHash string) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if username != "" || passwordHash != "" {
			r.Use(basicAuth(username, passwordHash))
		}

		r.Get("/api/state", c.handle(c.stateEndpoint, func(*http.Request) (any, error) {
			return nil, nil
		}))
		r.Post("/api/toggle", c.handle(c.toggleEndpoint, func(*http.Request) (any, error) {
			return nil, nil
		}))
		r.Post("/api/stats", c.handle(c.reportStatsEndpoint, decodeBody[reportStatsRequest]))
		r.Post("/api/trigger", c.handle(c.triggerEndpoint, decodeBody[triggerRequest]))
	})

	return r
}

// handle adapts a kit endpoint to an HTTP handler.
func (c *Controller) handle(endpoint kit.Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := endpoint(kit.WithTransport(r.Context(), "http"), req)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeBody[T any](r *http.Request) (any, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// basicAuth enforces HTTP Basic Auth against a bcrypt password hash.
func basicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="lingo"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
