package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dshills/rpgtask/internal/signal"
)

// Relay signals and senders.
const (
	SignalFirst  = "first signal"
	SignalSecond = "second signal"

	SenderFirst  = "First"
	SenderSecond = "Second"
)

// transcript serializes writes from the relays.
type transcript struct {
	mu sync.Mutex
	w  io.Writer
}

func newTranscript(w io.Writer) *transcript {
	return &transcript{w: w}
}

func (t *transcript) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, format+"\n", args...)
}

// First introduces a character to Second and listens to Second's reply.
type First struct {
	out       *transcript
	introduce func(context.Context, intro) (signal.Event, error)
}

type intro struct {
	name string
	age  int
}

// newFirst creates First. Its introductions are published on r.
func newFirst(r *signal.Registry, out *transcript) *First {
	f := &First{out: out}
	f.introduce = signal.Publisher(r, SignalFirst, SenderFirst, f.makeIntro)
	return f
}

// Listener returns First's subscription to Second's signal.
func (f *First) Listener() signal.Listener {
	return signal.Listen(SignalSecond, signal.Method(f, (*First).OnSecond), signal.WithSender(SenderSecond))
}

// Introduce publishes name and age to whoever listens to First.
func (f *First) Introduce(ctx context.Context, name string, age int) (signal.Event, error) {
	return f.introduce(ctx, intro{name: name, age: age})
}

func (f *First) makeIntro(ctx context.Context, in intro) (signal.Event, error) {
	f.out.printf("--- sending signal to Second ---")
	return signal.Event{"name": in.name, "age": in.age}, nil
}

// OnSecond handles Second's signal.
func (f *First) OnSecond(ctx context.Context, ev signal.Event) (any, error) {
	f.out.printf("First handled the signal from Second: %s", ev)
	return nil, nil
}

// Second answers every introduction from First with its own signal.
type Second struct {
	out   *transcript
	reply func(context.Context, signal.Event) (signal.Event, error)
}

// newSecond creates Second. Its replies are published on r.
func newSecond(r *signal.Registry, out *transcript) *Second {
	s := &Second{out: out}
	s.reply = signal.Publisher(r, SignalSecond, SenderSecond, s.makeReply)
	return s
}

// Listener returns Second's subscription to First's signal.
func (s *Second) Listener() signal.Listener {
	return signal.Listen(SignalFirst, signal.Method(s, (*Second).OnFirst), signal.WithSender(SenderFirst))
}

// OnFirst handles First's signal and publishes the reply. The reply event
// is the handler's response.
func (s *Second) OnFirst(ctx context.Context, ev signal.Event) (any, error) {
	s.out.printf("Second handled the signal from First: %s", ev)
	return s.reply(ctx, ev)
}

func (s *Second) makeReply(ctx context.Context, _ signal.Event) (signal.Event, error) {
	s.out.printf("--- sending signal to First and Third ---")
	return signal.Event{"a": 1, "b": 2, "c": 3}, nil
}

// Third listens to Second.
type Third struct {
	out *transcript
}

// newThird creates Third.
func newThird(out *transcript) *Third {
	return &Third{out: out}
}

// Listener returns Third's subscription to Second's signal.
func (t *Third) Listener() signal.Listener {
	return signal.Listen(SignalSecond, signal.Method(t, (*Third).OnSecond), signal.WithSender(SenderSecond))
}

// OnSecond handles Second's signal.
func (t *Third) OnSecond(ctx context.Context, ev signal.Event) (any, error) {
	t.out.printf("Third handled the signal from Second: %s", ev)
	return nil, nil
}
