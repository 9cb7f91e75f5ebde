package engine

import "context"

// MessageState is the lifecycle position of one message within a scope.
//
// Unseen → Offered → Translating → {Translated | Failed}
//
// Translated is terminal. Failed is terminal in automatic mode; in manual
// mode the user may re-trigger a Failed message.
type MessageState int

const (
	StateUnseen MessageState = iota
	StateOffered
	StateTranslating
	StateTranslated
	StateFailed
)

// String returns the lowercase state name.
func (s MessageState) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateOffered:
		return "offered"
	case StateTranslating:
		return "translating"
	case StateTranslated:
		return "translated"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}

// Surface is the UI side of the engine: it attaches the visible affordance
// to a message, renders translations next to the original content, and
// answers the re-entrancy probe. The engine never owns host display nodes;
// implementations do (rodfeed renders into the live page, tests use an
// in-memory fake).
//
// Implementations must be safe for concurrent use: the scheduler and manual
// triggers can touch different messages at once.
type Surface interface {
	// OfferTrigger attaches the translate affordance to a message. The
	// host arranges for user activation to reach Engine.Trigger.
	OfferTrigger(ctx context.Context, messageID string) error

	// RemoveTrigger removes the affordance after a successful translation.
	RemoveTrigger(ctx context.Context, messageID string) error

	// ShowError switches the affordance to an error indicator. The
	// affordance stays attached so the user can retry.
	ShowError(ctx context.Context, messageID string) error

	// RenderTranslation attaches the translated text adjacent to the
	// original content.
	RenderTranslation(ctx context.Context, messageID, translated string) error

	// HasRendering reports whether a translated rendering already exists
	// for the message. Checked before attaching to guard against a
	// message being processed twice by overlapping discovery passes.
	HasRendering(ctx context.Context, messageID string) (bool, error)
}
