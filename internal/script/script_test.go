package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/rpgtask/internal/signal"
)

const shieldScript = `
signal = "damage"
sender = "boss"

function handle(event)
    return { blocked = event.amount > 10, kind = event.kind }
end
`

func mustLoad(t *testing.T, name, code string, opts ...Option) *Handler {
	t.Helper()
	h, err := Load(name, code, opts...)
	if err != nil {
		t.Fatalf("Load(%s) = %v", name, err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestLoad(t *testing.T) {
	h := mustLoad(t, "shield", shieldScript)

	if h.Name() != "shield" {
		t.Errorf("Name() = %q, want shield", h.Name())
	}
	if h.Signal() != "damage" {
		t.Errorf("Signal() = %v, want damage", h.Signal())
	}
	if h.Sender() != "boss" {
		t.Errorf("Sender() = %v, want boss", h.Sender())
	}
	if h.String() != "script shield" {
		t.Errorf("String() = %q", h.String())
	}
}

func TestLoad_Defaults(t *testing.T) {
	h := mustLoad(t, "echo", "function handle(e) return e end")

	if h.Signal() != signal.Signal(signal.Any) {
		t.Errorf("Signal() = %v, want Any", h.Signal())
	}
	if h.Sender() != any(signal.Any) {
		t.Errorf("Sender() = %v, want Any", h.Sender())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{"no handle", "signal = 'tick'", ErrNoHandleFunc},
		{"handle not a function", "handle = 3", ErrNoHandleFunc},
		{"syntax", "function handle(", nil},
		{"runtime", "error('at load')", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.name, tt.code)

			var serr *ScriptError
			if !errors.As(err, &serr) {
				t.Fatalf("expected *ScriptError, got %v", err)
			}
			if serr.Script != tt.name {
				t.Errorf("Script = %q, want %q", serr.Script, tt.name)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Sandbox(t *testing.T) {
	for _, name := range []string{"io", "os", "dofile", "loadfile", "load", "loadstring", "require", "debug"} {
		t.Run(name, func(t *testing.T) {
			h := mustLoad(t, "probe", "function handle(e) return "+name+" == nil end")
			got, err := h.Handle(context.Background(), signal.Event{})
			if err != nil {
				t.Fatal(err)
			}
			if got != true {
				t.Errorf("%s should not be reachable from scripts", name)
			}
		})
	}
}

func TestHandle(t *testing.T) {
	h := mustLoad(t, "shield", shieldScript)

	got, err := h.Handle(context.Background(), signal.Event{"amount": 12, "kind": "fire"})
	if err != nil {
		t.Fatalf("Handle() = %v", err)
	}

	ev, ok := got.(signal.Event)
	if !ok {
		t.Fatalf("expected signal.Event, got %T", got)
	}
	if ev["blocked"] != true || ev.GetString("kind") != "fire" {
		t.Errorf("unexpected result %v", ev)
	}
}

func TestHandle_Values(t *testing.T) {
	tests := []struct {
		name string
		code string
		want any
	}{
		{"nil", "function handle(e) end", nil},
		{"int", "function handle(e) return e.n * 2 end", 14},
		{"float", "function handle(e) return e.n / 2 end", 3.5},
		{"string", "function handle(e) return string.upper(e.s) end", "HI"},
		{"bool", "function handle(e) return e.flag end", true},
		{"nested", "function handle(e) return #e.list end", 3},
	}

	ev := signal.Event{"n": 7, "s": "hi", "flag": true, "list": []any{1, 2, 3}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mustLoad(t, tt.name, tt.code)
			got, err := h.Handle(context.Background(), ev)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Handle() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestHandle_ScriptError(t *testing.T) {
	h := mustLoad(t, "grumpy", "function handle(e) error('no thanks') end")

	_, err := h.Handle(context.Background(), signal.Event{})
	var serr *ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *ScriptError, got %v", err)
	}
	if !strings.Contains(err.Error(), "no thanks") {
		t.Errorf("error %q should carry the script message", err)
	}

	// The state stays usable after an error.
	if _, err := h.Handle(context.Background(), signal.Event{}); err == nil {
		t.Error("expected the script to fail again")
	}
}

func TestHandle_Timeout(t *testing.T) {
	h := mustLoad(t, "spin", "function handle(e) while true do end end", WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := h.Handle(context.Background(), signal.Event{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestHandle_Closed(t *testing.T) {
	h, err := Load("echo", "function handle(e) return e end")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	_, err = h.Handle(context.Background(), signal.Event{})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestListener_ConnectsWeakly(t *testing.T) {
	r := signal.New()
	h := mustLoad(t, "shield", shieldScript)

	if err := h.Listener().Subscribe(r); err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}

	responses, err := r.Send(context.Background(), signal.Event{"amount": 3}, "damage", signal.WithSender("boss"))
	if err != nil {
		t.Fatal(err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if ev, _ := responses[0].Value.(signal.Event); ev["blocked"] != false {
		t.Errorf("unexpected response %v", responses[0].Value)
	}

	if err := h.Listener().Unsubscribe(r); err != nil {
		t.Errorf("Unsubscribe() = %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b_shield.lua": shieldScript,
		"a_echo.lua":   "function handle(e) return e end",
		"notes.txt":    "not a script",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	handlers, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() = %v", err)
	}
	defer CloseAll(handlers)

	if len(handlers) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(handlers))
	}
	if handlers[0].Name() != "a_echo" || handlers[1].Name() != "b_shield" {
		t.Errorf("unexpected order: %s, %s", handlers[0].Name(), handlers[1].Name())
	}
}

func TestLoadDir_Errors(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("function handle("), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadDir(dir)
	var serr *ScriptError
	if !errors.As(err, &serr) || serr.Script != "broken" {
		t.Errorf("expected ScriptError for broken, got %v", err)
	}
}
