package ussd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type outcomeKind int

const (
	outcomeNone outcomeKind = iota
	outcomeContinue
	outcomeEnd
	outcomeRedirect
)

// Request gives a state handler access to the inbound turn and its session,
// and collects the handler's outcome.
type Request struct {
	turn    Turn
	session *Session

	outcome   outcomeKind
	text      string
	gotoState string
}

// Input returns the caller's latest keystroke submission.
func (r *Request) Input() string { return r.turn.Input }

// Phone returns the caller id reported by the gateway.
func (r *Request) Phone() string { return r.turn.Phone }

// SessionID returns the gateway-assigned session identifier.
func (r *Request) SessionID() string { return r.turn.SessionID }

// Session returns the per-caller key/value bag.
func (r *Request) Session() *Session { return r.session }

// Con finishes the turn with a prompt and waits for the next input.
func (r *Request) Con(text string) {
	r.outcome = outcomeContinue
	r.text = text
}

// End finishes the turn with a final message and terminates the session.
func (r *Request) End(text string) {
	r.outcome = outcomeEnd
	r.text = text
}

// Go redirects to another state within the same turn without consuming new
// input. Used by pure routing nodes that render no prompt of their own.
func (r *Request) Go(state string) {
	r.outcome = outcomeRedirect
	r.gotoState = state
}

func (r *Request) reset() {
	r.outcome = outcomeNone
	r.text = ""
	r.gotoState = ""
}

// Session is a view of the store bound to one session id. Field names
// starting with "__" are reserved for engine bookkeeping.
type Session struct {
	id    string
	store Store
}

// Get returns a field value and whether it has been set.
func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.id, key)
}

// Set stores a field value.
func (s *Session) Set(ctx context.Context, key, value string) error {
	if strings.HasPrefix(key, "__") {
		return fmt.Errorf("ussd: session key %q is reserved", key)
	}
	return s.store.Set(ctx, s.id, key, value)
}

// GetStrings returns a list field, nil if unset.
func (s *Session) GetStrings(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := s.store.Get(ctx, s.id, key)
	if err != nil || !ok {
		return nil, err
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("ussd: decode session list %q: %w", key, err)
	}
	return values, nil
}

// SetStrings stores a list field.
func (s *Session) SetStrings(ctx context.Context, key string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("ussd: encode session list %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
