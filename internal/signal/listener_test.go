package signal

import (
	"context"
	"errors"
	"testing"
)

func TestListen_Defaults(t *testing.T) {
	l := Listen("damage", HandlerFunc(amount))

	if l.Sender != any(Any) {
		t.Errorf("Sender = %v, want Any", l.Sender)
	}
	if l.Weak != nil {
		t.Errorf("Weak = %v, want nil so the registry default applies", *l.Weak)
	}

	l = Listen("damage", HandlerFunc(amount), WithSender("boss"), Strong())
	if l.Sender != "boss" || l.Weak == nil || *l.Weak {
		t.Errorf("options not applied: %+v", l)
	}
}

func TestListener_RegistryDefault(t *testing.T) {
	strong := New(WithDefaultWeak(false))
	c := &counter{}
	if err := Listen("tick", c).Subscribe(strong); err != nil {
		t.Fatalf("Subscribe() on a strong registry = %v", err)
	}
	if _, err := strong.Send(context.Background(), nil, "tick"); err != nil {
		t.Fatal(err)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}

	weak := New()
	err := Listen("tick", &counter{}).Subscribe(weak)
	if !errors.Is(err, ErrUnsupportedHandler) {
		t.Errorf("Subscribe() on a weak registry = %v, want ErrUnsupportedHandler", err)
	}
	if err := Listen("tick", &counter{}, Strong()).Subscribe(weak); err != nil {
		t.Errorf("Subscribe() with Strong = %v", err)
	}
}

func TestListener_SubscribeUnsubscribe(t *testing.T) {
	r := New()
	p := newPlayer(t, "ivan")
	l := Listen("damage", Method(p, (*player).OnDamage), WithSender("boss"))

	if err := l.Subscribe(r); err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}
	if _, err := r.Send(context.Background(), Event{"kind": "fire"}, "damage", WithSender("boss")); err != nil {
		t.Fatal(err)
	}
	if len(p.hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(p.hits))
	}

	if err := l.Unsubscribe(r); err != nil {
		t.Fatalf("Unsubscribe() = %v", err)
	}
	if err := l.Unsubscribe(r); !errors.Is(err, ErrNoSuchSubscription) {
		t.Errorf("second Unsubscribe() = %v, want ErrNoSuchSubscription", err)
	}
}

func TestPublisher(t *testing.T) {
	r := New()
	p := newPlayer(t, "second")
	_ = r.Connect(Method(p, (*player).OnDamage), "first signal", WithSender("First"))

	introduce := Publisher(r, "first signal", "First", func(ctx context.Context, name string) (Event, error) {
		return Event{"name": name, "kind": "greeting"}, nil
	})

	ev, err := introduce(context.Background(), "Ivan")
	if err != nil {
		t.Fatalf("publisher returned %v", err)
	}
	if ev.GetString("name") != "Ivan" {
		t.Errorf("publisher should return the produced event, got %v", ev)
	}
	if len(p.hits) != 1 || p.hits[0].GetString("name") != "Ivan" {
		t.Errorf("listener received %v", p.hits)
	}
}

func TestPublisher_Errors(t *testing.T) {
	r := New()
	p := newPlayer(t, "second")
	_ = r.Connect(Method(p, (*player).Fail), "first signal", WithSender("First"))

	produceErr := errors.New("nothing to say")
	silent := Publisher(r, "first signal", "First", func(ctx context.Context, _ int) (Event, error) {
		return nil, produceErr
	})
	if _, err := silent(context.Background(), 1); !errors.Is(err, produceErr) {
		t.Errorf("expected producer error, got %v", err)
	}

	loud := Publisher(r, "first signal", "First", func(ctx context.Context, n int) (Event, error) {
		return Event{"n": n}, nil
	})
	ev, err := loud(context.Background(), 2)
	if !errors.Is(err, errBoom) {
		t.Errorf("expected handler error, got %v", err)
	}
	if ev.GetInt("n") != 2 {
		t.Error("event should be returned even when sending fails")
	}
}
