package ussd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/afyabook/afyabook/pkg/logging"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(NewMemoryStore(time.Minute), logging.Default(), opts...)
}

func prompt(text string) HandlerFunc {
	return func(_ context.Context, req *Request) error {
		req.Con(text)
		return nil
	}
}

func final(text string) HandlerFunc {
	return func(_ context.Context, req *Request) error {
		req.End(text)
		return nil
	}
}

func mustRegister(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("state registration failed: %v", err)
	}
}

func runTurn(t *testing.T, e *Engine, session, input string) Response {
	t.Helper()
	resp, err := e.Run(context.Background(), Turn{SessionID: session, Phone: "0722000111", Input: input})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return resp
}

func TestDuplicateStateRegistrationFails(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.State("menu", StateConfig{Run: prompt("hello")}))
	if err := e.State("menu", StateConfig{Run: prompt("again")}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistrationValidation(t *testing.T) {
	e := newTestEngine(t)
	if err := e.State("x", StateConfig{}); err == nil {
		t.Fatal("expected missing handler to fail")
	}
	if err := e.State("__reserved", StateConfig{Run: prompt("p")}); err == nil {
		t.Fatal("expected reserved name to fail")
	}
	if err := e.State("y", StateConfig{
		Run:  prompt("p"),
		Next: []Transition{{Pattern: "1"}},
	}); err == nil {
		t.Fatal("expected transition without target to fail")
	}
	if err := e.State("z", StateConfig{
		Run:  prompt("p"),
		Next: []Transition{{Pattern: "*[", To: "y"}},
	}); err == nil {
		t.Fatal("expected bad regex pattern to fail")
	}
}

func TestFirstTurnDispatchesStartState(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: prompt("Welcome"),
	}))

	resp := runTurn(t, e, "s1", "")
	if resp.End || resp.Text != "Welcome" {
		t.Fatalf("expected welcome prompt, got %+v", resp)
	}
}

func TestFirstMatchWins(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: prompt("pick"),
		Next: []Transition{
			{Pattern: "1", To: "a"},
			{Pattern: "*[a-zA-Z]+", To: "b"},
			{Pattern: "*", To: "c"},
		},
	}))
	mustRegister(t, e.State("a", StateConfig{Run: final("A")}))
	mustRegister(t, e.State("b", StateConfig{Run: final("B")}))
	mustRegister(t, e.State("c", StateConfig{Run: final("C")}))

	tests := []struct {
		input string
		want  string
	}{
		{"1", "A"},
		{"hello", "B"},
		{"42x", "C"},
	}
	for _, tt := range tests {
		session := "match-" + tt.input
		runTurn(t, e, session, "")
		resp := runTurn(t, e, session, tt.input)
		if !resp.End || resp.Text != tt.want {
			t.Fatalf("input %q: expected %q, got %+v", tt.input, tt.want, resp)
		}
	}
}

func TestAwaitingStateFollowsLastExecutedHandler(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run:  prompt("start"),
		Next: []Transition{{Pattern: "*", To: "second"}},
	}))
	mustRegister(t, e.State("second", StateConfig{
		Run:  prompt("second prompt"),
		Next: []Transition{{Pattern: "*", To: "third"}},
	}))
	mustRegister(t, e.State("third", StateConfig{Run: final("done")}))

	runTurn(t, e, "s1", "")
	runTurn(t, e, "s1", "anything")
	// The next input must be matched against "second", never the start state.
	resp := runTurn(t, e, "s1", "whatever")
	if !resp.End || resp.Text != "done" {
		t.Fatalf("expected transition from awaiting state, got %+v", resp)
	}
}

func TestResolverTransition(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: prompt("kind?"),
		Next: []Transition{{Pattern: "*", Resolve: func(ctx context.Context, req *Request) (string, error) {
			kind, _, err := req.Session().Get(ctx, "kind")
			if err != nil {
				return "", err
			}
			if kind == "remote" {
				return "remote", nil
			}
			return "physical", nil
		}}},
	}))
	mustRegister(t, e.State("physical", StateConfig{Run: final("physical")}))
	mustRegister(t, e.State("remote", StateConfig{Run: final("remote")}))

	runTurn(t, e, "s1", "")
	if err := e.store.Set(context.Background(), "s1", "kind", "remote"); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	resp := runTurn(t, e, "s1", "go")
	if resp.Text != "remote" {
		t.Fatalf("expected resolver to pick remote, got %+v", resp)
	}
}

func TestPredicateTransitionReadsSessionScopedCount(t *testing.T) {
	e := newTestEngine(t)
	indexWithin := func(key string) Predicate {
		return func(ctx context.Context, req *Request) (bool, error) {
			n, err := strconv.Atoi(req.Input())
			if err != nil {
				return false, nil
			}
			raw, ok, err := req.Session().Get(ctx, key)
			if err != nil || !ok {
				return false, err
			}
			count, err := strconv.Atoi(raw)
			if err != nil {
				return false, nil
			}
			return n >= 1 && n <= count, nil
		}
	}
	mustRegister(t, e.StartState(StateConfig{
		Run: func(ctx context.Context, req *Request) error {
			if err := req.Session().Set(ctx, "count", "3"); err != nil {
				return err
			}
			req.Con("choose 1-3")
			return nil
		},
		Next: []Transition{
			{When: indexWithin("count"), To: "chosen"},
			{Pattern: "*", To: "invalid"},
		},
	}))
	mustRegister(t, e.State("chosen", StateConfig{Run: final("ok")}))
	mustRegister(t, e.State("invalid", StateConfig{Run: final("out of range")}))

	runTurn(t, e, "s1", "")
	if resp := runTurn(t, e, "s1", "2"); resp.Text != "ok" {
		t.Fatalf("expected in-range selection accepted, got %+v", resp)
	}

	runTurn(t, e, "s2", "")
	if resp := runTurn(t, e, "s2", "7"); resp.Text != "out of range" {
		t.Fatalf("expected out-of-range selection rejected, got %+v", resp)
	}
}

func TestInvalidInputReprompsInPlace(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run:  prompt("enter digits"),
		Next: []Transition{{Pattern: "*\\d+", To: "done"}},
		Invalid: func(_ context.Context, req *Request) error {
			req.Con("digits only, try again")
			return nil
		},
	}))
	mustRegister(t, e.State("done", StateConfig{Run: final("thanks")}))

	runTurn(t, e, "s1", "")
	resp := runTurn(t, e, "s1", "abc")
	if resp.End || resp.Text != "digits only, try again" {
		t.Fatalf("expected in-place re-prompt, got %+v", resp)
	}
	// The session still awaits the same state, so valid input advances.
	resp = runTurn(t, e, "s1", "42")
	if !resp.End || resp.Text != "thanks" {
		t.Fatalf("expected advance after re-prompt, got %+v", resp)
	}
}

func TestNoFallbackIsConfigDefect(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run:  prompt("pick"),
		Next: []Transition{{Pattern: "1", To: "done"}},
	}))
	mustRegister(t, e.State("done", StateConfig{Run: final("ok")}))

	runTurn(t, e, "s1", "")
	resp := runTurn(t, e, "s1", "9")
	if !resp.End || resp.Text != DefaultErrorMessage {
		t.Fatalf("expected generic error end, got %+v", resp)
	}
}

func TestTerminateTransitionEndsWithFarewell(t *testing.T) {
	e := newTestEngine(t, WithFarewell("bye"))
	mustRegister(t, e.StartState(StateConfig{
		Run:  prompt("0 to exit"),
		Next: []Transition{{Pattern: "0", To: Terminate}},
	}))

	runTurn(t, e, "s1", "")
	resp := runTurn(t, e, "s1", "0")
	if !resp.End || resp.Text != "bye" {
		t.Fatalf("expected farewell end, got %+v", resp)
	}
	if _, _, err := e.store.Get(context.Background(), "s1", stateKey); err != ErrNoSession {
		t.Fatalf("expected session deleted, got %v", err)
	}
}

func TestInternalRedirect(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: func(_ context.Context, req *Request) error {
			req.Go("menu")
			return nil
		},
	}))
	mustRegister(t, e.State("menu", StateConfig{Run: prompt("menu here")}))

	resp := runTurn(t, e, "s1", "")
	if resp.End || resp.Text != "menu here" {
		t.Fatalf("expected redirect to render menu, got %+v", resp)
	}
	// Awaiting state must be the redirect target, not the routing node.
	current, _, err := e.store.Get(context.Background(), "s1", stateKey)
	if err != nil {
		t.Fatalf("failed to read awaiting state: %v", err)
	}
	if current != "menu" {
		t.Fatalf("expected awaiting state menu, got %s", current)
	}
}

func TestRedirectLoopHitsBudget(t *testing.T) {
	e := newTestEngine(t, WithRedirectLimit(5))
	mustRegister(t, e.StartState(StateConfig{
		Run: func(_ context.Context, req *Request) error {
			req.Go("loop")
			return nil
		},
	}))
	mustRegister(t, e.State("loop", StateConfig{
		Run: func(_ context.Context, req *Request) error {
			req.Go("loop")
			return nil
		},
	}))

	resp := runTurn(t, e, "s1", "")
	if !resp.End || resp.Text != DefaultErrorMessage {
		t.Fatalf("expected redirect budget overflow to end with error message, got %+v", resp)
	}
}

func TestHandlerErrorEndsWithLocalizedMessage(t *testing.T) {
	e := newTestEngine(t, WithErrorMessage(func(context.Context, *Request) string {
		return "samahani"
	}))
	mustRegister(t, e.StartState(StateConfig{
		Run: func(context.Context, *Request) error {
			return fmt.Errorf("directory unreachable")
		},
	}))

	resp := runTurn(t, e, "s1", "")
	if !resp.End || resp.Text != "samahani" {
		t.Fatalf("expected localized error end, got %+v", resp)
	}
}

func TestSessionIsolation(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: func(ctx context.Context, req *Request) error {
			if err := req.Session().Set(ctx, "name", "caller-"+req.SessionID()); err != nil {
				return err
			}
			req.Con("named")
			return nil
		},
		Next: []Transition{{Pattern: "*", To: "show"}},
	}))
	mustRegister(t, e.State("show", StateConfig{
		Run: func(ctx context.Context, req *Request) error {
			name, _, err := req.Session().Get(ctx, "name")
			if err != nil {
				return err
			}
			req.End(name)
			return nil
		},
	}))

	runTurn(t, e, "s1", "")
	runTurn(t, e, "s2", "")
	if resp := runTurn(t, e, "s1", "x"); resp.Text != "caller-s1" {
		t.Fatalf("s1 observed foreign state: %+v", resp)
	}
	if resp := runTurn(t, e, "s2", "x"); resp.Text != "caller-s2" {
		t.Fatalf("s2 observed foreign state: %+v", resp)
	}
}

func TestConcurrentSessionsDoNotCorruptEachOther(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: func(ctx context.Context, req *Request) error {
			if err := req.Session().Set(ctx, "id", req.SessionID()); err != nil {
				return err
			}
			req.Con("ok")
			return nil
		},
		Next: []Transition{{Pattern: "*", To: "check"}},
	}))
	mustRegister(t, e.State("check", StateConfig{
		Run: func(ctx context.Context, req *Request) error {
			id, _, err := req.Session().Get(ctx, "id")
			if err != nil {
				return err
			}
			if id != req.SessionID() {
				return fmt.Errorf("session %s observed %s", req.SessionID(), id)
			}
			req.End("clean")
			return nil
		},
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			session := fmt.Sprintf("s-%d", n)
			runTurn(t, e, session, "")
			resp := runTurn(t, e, session, "go")
			if resp.Text != "clean" {
				t.Errorf("session %s corrupted: %+v", session, resp)
			}
		}(i)
	}
	wg.Wait()
}

func TestMissingSessionIDRejected(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{Run: prompt("hi")}))
	if _, err := e.Run(context.Background(), Turn{}); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestReservedSessionKeyRejected(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e.StartState(StateConfig{
		Run: func(ctx context.Context, req *Request) error {
			return req.Session().Set(ctx, "__state", "hijack")
		},
	}))
	resp := runTurn(t, e, "s1", "")
	if !resp.End || resp.Text != DefaultErrorMessage {
		t.Fatalf("expected reserved key write to fail the turn, got %+v", resp)
	}
}
