package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/rpgtask/internal/logging"
	"github.com/dshills/rpgtask/internal/signal"
)

// DefaultTimeout bounds a single handle call.
const DefaultTimeout = 2 * time.Second

// Handler is a Lua script acting as a signal handler.
//
// gopher-lua states are not goroutine-safe; Handler serializes every call
// into the script with its own mutex.
type Handler struct {
	name    string
	signal  string
	sender  string
	timeout time.Duration
	logger  *logging.Logger

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger that receives the script's log() calls.
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.WithComponent("script")
		}
	}
}

// Load compiles and runs code as the script called name.
func Load(name, code string, opts ...Option) (*Handler, error) {
	h := &Handler{
		name:    name,
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.L = newState()
	h.L.SetGlobal("log", h.L.NewFunction(h.luaLog))

	if err := doWithRecovery(func() error { return h.L.DoString(code) }); err != nil {
		h.L.Close()
		return nil, &ScriptError{Script: name, Err: err}
	}

	if fn := h.L.GetGlobal("handle"); fn.Type() != lua.LTFunction {
		h.L.Close()
		return nil, &ScriptError{Script: name, Err: ErrNoHandleFunc}
	}

	h.signal = globalString(h.L, "signal")
	h.sender = globalString(h.L, "sender")
	return h, nil
}

// LoadFile loads the script at path. The script is named after the file
// without its extension.
func LoadFile(path string, opts ...Option) (*Handler, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, string(code), opts...)
}

// LoadDir loads every *.lua file in dir in name order. On failure the
// scripts loaded so far are closed.
func LoadDir(dir string, opts ...Option) ([]*Handler, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading script directory: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	handlers := make([]*Handler, 0, len(paths))
	for _, path := range paths {
		h, err := LoadFile(path, opts...)
		if err != nil {
			for _, loaded := range handlers {
				_ = loaded.Close()
			}
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// newState creates a Lua state with only safe libraries opened.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Base exposes file and chunk loading.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func globalString(L *lua.LState, name string) string {
	if s, ok := L.GetGlobal(name).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// doWithRecovery executes fn, turning a panic inside the VM into an error.
func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Name returns the script name.
func (h *Handler) Name() string {
	return h.name
}

// String implements fmt.Stringer.
func (h *Handler) String() string {
	return "script " + h.name
}

// Signal returns the signal the script asked for, or signal.Any.
func (h *Handler) Signal() signal.Signal {
	if h.signal == "" {
		return signal.Any
	}
	return h.signal
}

// Sender returns the sender the script asked for, or signal.Any.
func (h *Handler) Sender() any {
	if h.sender == "" {
		return signal.Any
	}
	return h.sender
}

// Listener returns the subscription the script declares. The handler is
// held weakly, so dropping the Handler ends its subscriptions.
func (h *Handler) Listener() signal.Listener {
	return signal.Listen(h.Signal(), signal.Method(h, (*Handler).Handle), signal.WithSender(h.Sender()))
}

// Handle calls the script's handle function with ev. A table returned by
// the script comes back as a signal.Event; other values are converted as
// is. An error raised by the script is returned as a *ScriptError.
func (h *Handler) Handle(ctx context.Context, ev signal.Event) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, &ScriptError{Script: h.name, Err: ErrClosed}
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	L := h.L
	top := L.GetTop()
	L.SetContext(callCtx)
	defer func() {
		L.RemoveContext()
		L.SetTop(top)
	}()

	L.Push(L.GetGlobal("handle"))
	L.Push(toLua(L, ev))

	err := doWithRecovery(func() error {
		return L.PCall(1, 1, nil)
	})
	if err != nil {
		if ctxErr := callCtx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ScriptError{Script: h.name, Err: err}
	}

	return fromLua(L.Get(-1)), nil
}

// Close releases the Lua state. It is safe to call more than once.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.L.Close()
	return nil
}

// luaLog implements log(...) for scripts.
func (h *Handler) luaLog(L *lua.LState) int {
	h.logger.Info(joinArgs(L, 1), "script", h.name)
	return 0
}

// CloseAll closes every handler and joins the errors.
func CloseAll(handlers []*Handler) error {
	var errs []error
	for _, h := range handlers {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
