// Package responder produces automatic replies to inbound customer messages.
package responder

import (
	"context"
	"strings"
)

// EscalateMarker in a reply asks for a human operator instead of sending.
const EscalateMarker = "[ESCALATE]"

// Responder returns a reply for text in chatID. "" means no reply.
type Responder interface {
	Reply(ctx context.Context, chatID, text string) (string, error)
}

// Noop never replies.
type Noop struct{}

func (Noop) Reply(context.Context, string, string) (string, error) { return "", nil }

// Func adapts a function to Responder.
type Func func(ctx context.Context, chatID, text string) (string, error)

func (f Func) Reply(ctx context.Context, chatID, text string) (string, error) {
	return f(ctx, chatID, text)
}

// WantsEscalation reports whether reply carries the escalation marker.
func WantsEscalation(reply string) bool {
	return strings.Contains(reply, EscalateMarker)
}
