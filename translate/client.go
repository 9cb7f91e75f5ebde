package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBody caps backend response reads (1 MiB). A translation of a
// chat message never legitimately approaches this.
const maxResponseBody int64 = 1 << 20

// Proxy performs one privileged HTTP request on behalf of the engine: bytes
// in, bytes out. The production implementation lives in HTTPProxy; hosting
// contexts with their own privileged transport substitute their own.
type Proxy func(ctx context.Context, requestURL string, body []byte) ([]byte, error)

// HTTPProxy returns a Proxy backed by client. The URL scheme is restricted
// to http/https and response bodies are read with a hard cap.
func HTTPProxy(client *http.Client) Proxy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return func(ctx context.Context, requestURL string, body []byte) ([]byte, error) {
		u, err := url.Parse(requestURL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse url: %v", ErrTransport, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%w: scheme %q not allowed", ErrTransport, u.Scheme)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
		}
		return data, nil
	}
}

// request is the backend wire format.
type request struct {
	Query  string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

// response is the backend wire format. DetectedLanguage is optional.
type response struct {
	TranslatedText   *string `json:"translatedText"`
	DetectedLanguage string  `json:"detectedLanguage,omitempty"`
}

// Client issues translation requests to a single backend endpoint.
type Client struct {
	endpoint string
	target   string
	proxy    Proxy
}

// NewClient creates a Client. If proxy is nil a default HTTPProxy is used.
func NewClient(endpoint, targetLang string, proxy Proxy) *Client {
	if proxy == nil {
		proxy = HTTPProxy(nil)
	}
	return &Client{endpoint: endpoint, target: targetLang, proxy: proxy}
}

// Translate sends text to the backend with automatic source-language
// detection and returns the translated text. Failures are classified as
// ErrTransport, ErrMalformed, or ErrEmptyTranslation.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(request{
		Query:  text,
		Source: "auto",
		Target: c.target,
		Format: "text",
	})
	if err != nil {
		return "", fmt.Errorf("lingo/translate: marshal request: %w", err)
	}

	data, err := c.proxy(ctx, c.endpoint, body)
	if err != nil {
		// Untyped proxy failures are transport failures.
		if errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.TranslatedText == nil {
		return "", fmt.Errorf("%w: missing translatedText", ErrMalformed)
	}
	translated := strings.TrimSpace(*resp.TranslatedText)
	if translated == "" {
		return "", ErrEmptyTranslation
	}
	return translated, nil
}
