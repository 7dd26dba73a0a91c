package signal

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unsafe"
	"weak"
)

// Handler receives events sent on the signals it is connected to.
// The returned value is collected into the Response for the sender.
type Handler interface {
	Handle(ctx context.Context, ev Event) (any, error)
}

// HandlerFunc is a function adapter for Handler.
//
// Function handlers are identified by reference. A top-level function is
// the same handler every time it is converted, while each closure and each
// method value such as p.OnTick is a handler of its own: keep the value to
// disconnect it later, or use Method to identify a method by receiver.
type HandlerFunc func(ctx context.Context, ev Event) (any, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) (any, error) {
	return f(ctx, ev)
}

// BoundMethod is a method expression bound to its receiver. Connected
// weakly, it does not keep the receiver alive: once the receiver is
// collected every subscription using it is removed.
type BoundMethod[T any] struct {
	owner *T
	fn    func(*T, context.Context, Event) (any, error)
}

// Method binds fn to owner. fn is normally a method expression such as
// (*Player).OnDamage; two BoundMethods with the same owner and the same
// method are the same handler.
func Method[T any](owner *T, fn func(*T, context.Context, Event) (any, error)) *BoundMethod[T] {
	return &BoundMethod[T]{owner: owner, fn: fn}
}

// Handle implements the Handler interface.
func (m *BoundMethod[T]) Handle(ctx context.Context, ev Event) (any, error) {
	return m.fn(m.owner, ctx, ev)
}

// Owner returns the bound receiver.
func (m *BoundMethod[T]) Owner() *T {
	return m.owner
}

// String returns the receiver type and method name.
func (m *BoundMethod[T]) String() string {
	return fmt.Sprintf("%T.%s", m.owner, funcName(m.fn))
}

func (m *BoundMethod[T]) identity() (handlerKey, error) {
	if m == nil || m.owner == nil || m.fn == nil {
		return handlerKey{}, fmt.Errorf("%w: method needs a receiver and a function", ErrUnsupportedHandler)
	}
	return handlerKey{owner: weak.Make(m.owner), fn: funcPC(m.fn)}, nil
}

func (m *BoundMethod[T]) newRef(key handlerKey) *boundRef {
	owner := weak.Make(m.owner)
	fn := m.fn
	return &boundRef{
		key:  key,
		name: m.String(),
		target: func() Handler {
			o := owner.Value()
			if o == nil {
				return nil
			}
			return &BoundMethod[T]{owner: o, fn: fn}
		},
	}
}

func (m *BoundMethod[T]) watch(arg ownerCleanup) {
	runtime.AddCleanup(m.owner, ownerDied, arg)
}

// boundHandler is implemented by every BoundMethod instantiation.
type boundHandler interface {
	Handler
	identity() (handlerKey, error)
	newRef(key handlerKey) *boundRef
	watch(arg ownerCleanup)
}

// handlerKey is the identity of a handler inside the registry.
type handlerKey struct {
	owner   any // weak.Pointer to the receiver of a bound method
	fn      uintptr
	closure unsafe.Pointer // func value of a function handler
	value   any            // comparable handler values
}

func (k handlerKey) String() string {
	switch {
	case k.value != nil:
		return fmt.Sprintf("%T", k.value)
	case k.owner != nil:
		return "method " + pcName(k.fn)
	default:
		return pcName(k.fn)
	}
}

// identify computes the registry identity of h.
func identify(h Handler) (handlerKey, error) {
	if h == nil {
		return handlerKey{}, fmt.Errorf("%w: handler is nil", ErrUnsupportedHandler)
	}
	if b, ok := h.(boundHandler); ok {
		return b.identity()
	}

	rv := reflect.ValueOf(h)
	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return handlerKey{}, fmt.Errorf("%w: handler is nil", ErrUnsupportedHandler)
		}
		return handlerKey{fn: rv.Pointer(), closure: closureOf(rv)}, nil
	case reflect.Pointer, reflect.Map, reflect.Chan:
		if rv.IsNil() {
			return handlerKey{}, fmt.Errorf("%w: handler is nil", ErrUnsupportedHandler)
		}
	}

	if !rv.Comparable() {
		return handlerKey{}, fmt.Errorf("%w: %T has no comparable identity", ErrUnsupportedHandler, h)
	}
	return handlerKey{value: h}, nil
}

// closureOf returns the data word of a func value. It is a static address
// for top-level functions and a distinct allocation per closure or method
// value.
func closureOf(rv reflect.Value) unsafe.Pointer {
	v := reflect.New(rv.Type()).Elem()
	v.Set(rv)
	return *(*unsafe.Pointer)(v.Addr().UnsafePointer())
}

func isFunc(h Handler) bool {
	return reflect.ValueOf(h).Kind() == reflect.Func
}

func funcPC(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

func funcName(fn any) string {
	return pcName(funcPC(fn))
}

func pcName(pc uintptr) string {
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "?"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// describeHandler returns a short name for logs and errors.
func describeHandler(h Handler) string {
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	if isFunc(h) {
		return funcName(h)
	}
	return fmt.Sprintf("%T", h)
}
