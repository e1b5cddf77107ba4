// Package ussd implements a generic session-scoped menu engine for USSD
// dialogs. A dialog is a static graph of named states registered at startup;
// each inbound turn carries only the caller's latest keystroke, and the engine
// resolves the state the session was left waiting in, matches the input
// against that state's transition table and executes the handler of the
// resolved next state.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/afyabook/afyabook/pkg/logging"
)

// Terminate is a reserved transition target. Routing to it ends the session
// with the engine farewell message without executing a handler.
const Terminate = "__terminate__"

// startState is the distinguished entry node dispatched on the first turn of
// a session, before any input gating applies.
const startState = "__start__"

// stateKey is the engine bookkeeping field recording the awaiting state.
// It lives in the session bag but is invisible to dialog handlers.
const stateKey = "__state"

const defaultRedirectLimit = 10

const defaultFarewell = "Thank you. / Asante."

// DefaultErrorMessage ends the dialog when a handler or the dialog definition
// itself fails; dialogs usually install a localized variant via
// WithErrorMessage.
const DefaultErrorMessage = "A system error occurred. Please try again later. / Hitilafu ya mfumo imetokea. Tafadhali jaribu tena baadaye."

// HandlerFunc renders one dialog state. It must finish the turn by calling
// exactly one of req.Con, req.End or req.Go.
type HandlerFunc func(ctx context.Context, req *Request) error

// Resolver computes a transition target at match time, typically from
// session-scoped data.
type Resolver func(ctx context.Context, req *Request) (string, error)

// Predicate gates a transition on the inbound input plus session state,
// replacing patterns that would otherwise have to be rebuilt per turn.
type Predicate func(ctx context.Context, req *Request) (bool, error)

// Transition maps an input to the next state. Exactly one of Pattern or When
// selects the input, and exactly one of To or Resolve names the target.
//
// Pattern kinds: a bare string is an exact literal, "*" alone matches any
// input, and a leading "*" introduces a regular expression matched against
// the whole input ("*[a-zA-Z]+" accepts letters only). Transitions are tried
// in declaration order and the first match wins.
type Transition struct {
	Pattern string
	When    Predicate
	To      string
	Resolve Resolver
}

// StateConfig describes one dialog state at registration time.
type StateConfig struct {
	// Run renders the state. Required.
	Run HandlerFunc
	// Next is the ordered transition table governing the reply to this state.
	Next []Transition
	// Invalid runs when no transition matches the input. The session keeps
	// awaiting this state, so the handler normally re-prompts with a
	// validation message. A non-terminal state without Invalid and without a
	// wildcard transition is a dialog definition defect.
	Invalid HandlerFunc
}

type matchKind int

const (
	matchLiteral matchKind = iota
	matchRegex
	matchWildcard
	matchPredicate
)

type transition struct {
	kind    matchKind
	literal string
	re      *regexp.Regexp
	when    Predicate
	to      string
	resolve Resolver
}

type state struct {
	name    string
	run     HandlerFunc
	next    []transition
	invalid HandlerFunc
}

// Engine interprets a registered dialog graph one turn at a time. Turns for
// the same session id are serialized; distinct sessions never contend.
type Engine struct {
	store         Store
	logger        *logging.Logger
	states        map[string]*state
	locks         *lockTable
	redirectLimit int
	farewell      string
	errorMessage  func(ctx context.Context, req *Request) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRedirectLimit caps internal redirects per turn.
func WithRedirectLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.redirectLimit = n
		}
	}
}

// WithFarewell sets the message used when a transition targets Terminate.
func WithFarewell(msg string) Option {
	return func(e *Engine) { e.farewell = msg }
}

// WithErrorMessage installs the terminal message shown to the caller when a
// turn fails internally. The request is available so the message can be
// localized from session state.
func WithErrorMessage(f func(ctx context.Context, req *Request) string) Option {
	return func(e *Engine) { e.errorMessage = f }
}

// NewEngine creates an engine over the given session store.
func NewEngine(store Store, logger *logging.Logger, opts ...Option) *Engine {
	if store == nil {
		panic("ussd: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		store:         store,
		logger:        logger,
		states:        make(map[string]*state),
		locks:         newLockTable(),
		redirectLimit: defaultRedirectLimit,
		farewell:      defaultFarewell,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartState registers the entry node executed on the first turn of every
// session. Its transition table governs the reply to the welcome prompt.
func (e *Engine) StartState(cfg StateConfig) error {
	return e.register(startState, cfg)
}

// State registers a named dialog state. Registering the same name twice is a
// configuration error and fails.
func (e *Engine) State(name string, cfg StateConfig) error {
	if name == "" || strings.HasPrefix(name, "__") {
		return fmt.Errorf("ussd: invalid state name %q", name)
	}
	return e.register(name, cfg)
}

func (e *Engine) register(name string, cfg StateConfig) error {
	if _, exists := e.states[name]; exists {
		return fmt.Errorf("ussd: state %q already registered", name)
	}
	if cfg.Run == nil {
		return fmt.Errorf("ussd: state %q has no handler", name)
	}
	st := &state{name: name, run: cfg.Run, invalid: cfg.Invalid}
	for i, tr := range cfg.Next {
		ct, err := compileTransition(tr)
		if err != nil {
			return fmt.Errorf("ussd: state %q transition %d: %w", name, i, err)
		}
		st.next = append(st.next, ct)
	}
	e.states[name] = st
	return nil
}

func compileTransition(tr Transition) (transition, error) {
	ct := transition{to: tr.To, resolve: tr.Resolve}
	if ct.to == "" && ct.resolve == nil {
		return ct, errors.New("no target state or resolver")
	}
	if ct.to != "" && ct.resolve != nil {
		return ct, errors.New("both target state and resolver given")
	}
	switch {
	case tr.When != nil:
		if tr.Pattern != "" {
			return ct, errors.New("both pattern and predicate given")
		}
		ct.kind = matchPredicate
		ct.when = tr.When
	case tr.Pattern == "*":
		ct.kind = matchWildcard
	case strings.HasPrefix(tr.Pattern, "*"):
		// Regex patterns match the whole input; anchors inside the pattern
		// are redundant but harmless.
		re, err := regexp.Compile("^(?:" + tr.Pattern[1:] + ")$")
		if err != nil {
			return ct, fmt.Errorf("bad pattern %q: %w", tr.Pattern, err)
		}
		ct.kind = matchRegex
		ct.re = re
	default:
		ct.kind = matchLiteral
		ct.literal = tr.Pattern
	}
	return ct, nil
}

// Turn is one inbound request from the gateway.
type Turn struct {
	SessionID   string
	ServiceCode string
	Phone       string
	Input       string
}

// Response is the outcome of one turn: either a prompt expecting further
// input, or a final message terminating the session.
type Response struct {
	End  bool
	Text string
}

// Run processes one inbound turn. Dialog-level failures (handler errors,
// definition defects) are converted into a terminal error message; only
// infrastructure failures (session store unreachable) surface as errors.
func (e *Engine) Run(ctx context.Context, turn Turn) (Response, error) {
	if turn.SessionID == "" {
		return Response{}, errors.New("ussd: turn has no session id")
	}
	unlock := e.locks.lock(turn.SessionID)
	defer unlock()

	if err := e.store.Create(ctx, turn.SessionID); err != nil {
		return Response{}, fmt.Errorf("ussd: create session: %w", err)
	}

	req := &Request{
		turn:    turn,
		session: &Session{id: turn.SessionID, store: e.store},
	}

	current, ok, err := e.store.Get(ctx, turn.SessionID, stateKey)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return Response{}, fmt.Errorf("ussd: load awaiting state: %w", err)
	}

	if !ok {
		start, exists := e.states[startState]
		if !exists {
			return Response{}, errors.New("ussd: no start state registered")
		}
		return e.execute(ctx, req, start)
	}

	awaiting, exists := e.states[current]
	if !exists {
		e.logger.Error("session awaits unknown state", "state", current, "session_id", turn.SessionID)
		return e.fail(ctx, req), nil
	}

	target, matched, err := e.match(ctx, req, awaiting)
	if err != nil {
		e.logger.Error("transition evaluation failed", "state", awaiting.name, "error", err)
		return e.fail(ctx, req), nil
	}
	if !matched {
		if awaiting.invalid == nil {
			e.logger.Error("no transition matched and state has no fallback", "state", awaiting.name, "input", turn.Input)
			return e.fail(ctx, req), nil
		}
		// Re-prompt in place: the session keeps awaiting the same state.
		return e.execute(ctx, req, &state{name: awaiting.name, run: awaiting.invalid})
	}
	if target == Terminate {
		e.deleteSession(ctx, turn.SessionID)
		return Response{End: true, Text: e.farewell}, nil
	}
	next, exists := e.states[target]
	if !exists {
		e.logger.Error("transition targets unknown state", "from", awaiting.name, "to", target)
		return e.fail(ctx, req), nil
	}
	return e.execute(ctx, req, next)
}

// match walks the transition table in declaration order; the first matching
// entry wins.
func (e *Engine) match(ctx context.Context, req *Request, st *state) (string, bool, error) {
	input := req.Input()
	for _, tr := range st.next {
		matched := false
		switch tr.kind {
		case matchLiteral:
			matched = input == tr.literal
		case matchRegex:
			matched = tr.re.MatchString(input)
		case matchWildcard:
			matched = true
		case matchPredicate:
			var err error
			matched, err = tr.when(ctx, req)
			if err != nil {
				return "", false, fmt.Errorf("predicate: %w", err)
			}
		}
		if !matched {
			continue
		}
		if tr.resolve != nil {
			target, err := tr.resolve(ctx, req)
			if err != nil {
				return "", false, fmt.Errorf("resolver: %w", err)
			}
			return target, true, nil
		}
		return tr.to, true, nil
	}
	return "", false, nil
}

// execute runs a state handler and follows internal redirects until the turn
// produces a prompt or a final message.
func (e *Engine) execute(ctx context.Context, req *Request, st *state) (Response, error) {
	for hops := 0; ; hops++ {
		if hops > e.redirectLimit {
			e.logger.Error("redirect limit exceeded", "state", st.name, "session_id", req.SessionID())
			return e.fail(ctx, req), nil
		}
		req.reset()
		if err := st.run(ctx, req); err != nil {
			e.logger.Error("state handler failed", "state", st.name, "error", err)
			return e.fail(ctx, req), nil
		}
		switch req.outcome {
		case outcomeContinue:
			if err := e.store.Set(ctx, req.turn.SessionID, stateKey, st.name); err != nil {
				return Response{}, fmt.Errorf("ussd: record awaiting state: %w", err)
			}
			return Response{Text: req.text}, nil
		case outcomeEnd:
			e.deleteSession(ctx, req.turn.SessionID)
			return Response{End: true, Text: req.text}, nil
		case outcomeRedirect:
			next, exists := e.states[req.gotoState]
			if !exists {
				e.logger.Error("redirect targets unknown state", "from", st.name, "to", req.gotoState)
				return e.fail(ctx, req), nil
			}
			st = next
		default:
			e.logger.Error("state handler produced no response", "state", st.name)
			return e.fail(ctx, req), nil
		}
	}
}

// fail ends the dialog with the engineer-supplied error message and drops the
// session. Internal detail stays in the logs.
func (e *Engine) fail(ctx context.Context, req *Request) Response {
	text := DefaultErrorMessage
	if e.errorMessage != nil {
		text = e.errorMessage(ctx, req)
	}
	e.deleteSession(ctx, req.turn.SessionID)
	return Response{End: true, Text: text}
}

func (e *Engine) deleteSession(ctx context.Context, id string) {
	if err := e.store.Delete(ctx, id); err != nil {
		e.logger.Warn("failed to delete session", "session_id", id, "error", err)
	}
}
