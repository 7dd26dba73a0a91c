package dispatch

import (
	"context"
	"errors"
	"testing"
)

var errFirst = errors.New("first fails")

func call(name string, fn func(ctx context.Context, ev string) (any, error)) Call[string] {
	return Call[string]{Name: name, Fn: fn}
}

func value(v any) func(context.Context, string) (any, error) {
	return func(context.Context, string) (any, error) {
		return v, nil
	}
}

func TestOutcome_Failed(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    bool
	}{
		{"success", Outcome{Value: 1}, false},
		{"error", Outcome{Err: errFirst}, true},
		{"panic", Outcome{Panic: &Panic{Value: "x"}}, true},
		{"skipped", Outcome{Err: context.Canceled, Skipped: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	if StopOnFailure.String() != "stop-on-failure" || Continue.String() != "continue" || Mode(9).String() != "unknown" {
		t.Error("unexpected mode names")
	}
	if New[string]().Mode() != StopOnFailure {
		t.Error("default mode should be StopOnFailure")
	}
}

func TestRun_Success(t *testing.T) {
	d := New[string]()

	var received string
	report := d.Run(context.Background(), "id-1", "ping", []Call[string]{
		call("pong", func(ctx context.Context, ev string) (any, error) {
			received = ev
			return "pong", nil
		}),
		call("answer", value(42)),
	})

	if report.ID != "id-1" || report.Stopped {
		t.Errorf("unexpected report: %+v", report)
	}
	if received != "ping" {
		t.Errorf("handler received %q, want ping", received)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(report.Outcomes))
	}
	if o := report.Outcomes[1]; o.Index != 1 || o.Name != "answer" || o.Value != 42 {
		t.Errorf("second outcome = %+v", o)
	}
	if len(report.Failures()) != 0 {
		t.Errorf("unexpected failures: %+v", report.Failures())
	}

	stats := d.Stats()
	if stats.Deliveries != 1 || stats.Calls != 2 || stats.Succeeded != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRun_StopOnFailure(t *testing.T) {
	d := New[string]()

	var ran []string
	record := func(name string, err error) Call[string] {
		return call(name, func(context.Context, string) (any, error) {
			ran = append(ran, name)
			return "partial " + name, err
		})
	}

	report := d.Run(context.Background(), "id", "ev", []Call[string]{
		record("a", nil),
		record("b", errFirst),
		record("c", nil),
	})

	if !report.Stopped {
		t.Error("report should be marked stopped")
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(report.Outcomes))
	}
	last := report.Outcomes[1]
	if !errors.Is(last.Err, errFirst) || last.Value != "partial b" {
		t.Errorf("failure outcome = %+v", last)
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v, want [a b]", ran)
	}
	if stats := d.Stats(); stats.Stopped != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRun_StopOnPanic(t *testing.T) {
	var reported string
	d := New[string](WithPanicFunc(func(id, name string, p *Panic) {
		reported = id + "/" + name + "/" + p.Value.(string)
	}))

	called := false
	report := d.Run(context.Background(), "id", "ev", []Call[string]{
		call("boom", func(context.Context, string) (any, error) {
			panic("kaboom")
		}),
		call("after", func(context.Context, string) (any, error) {
			called = true
			return nil, nil
		}),
	})

	if len(report.Outcomes) != 1 || report.Outcomes[0].Panic == nil {
		t.Fatalf("unexpected outcomes: %+v", report.Outcomes)
	}
	p := report.Outcomes[0].Panic
	if p.Value != "kaboom" || len(p.Stack) == 0 {
		t.Errorf("panic = %v, want kaboom with a stack", p.Value)
	}
	if called {
		t.Error("call after a panic should not run")
	}
	if reported != "id/boom/kaboom" {
		t.Errorf("panic func got %q", reported)
	}
	if got := d.Stats().Panicked; got != 1 {
		t.Errorf("Panicked = %d, want 1", got)
	}
}

func TestRun_Continue(t *testing.T) {
	d := New[string](WithMode(Continue))

	report := d.Run(context.Background(), "id", "ev", []Call[string]{
		call("err", func(context.Context, string) (any, error) {
			return nil, errFirst
		}),
		call("panic", func(context.Context, string) (any, error) {
			panic("second panics")
		}),
		call("ok", value("third")),
	})

	if report.Stopped {
		t.Error("Continue must not stop")
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}
	failures := report.Failures()
	if len(failures) != 2 || failures[0].Index != 0 || failures[1].Index != 1 {
		t.Errorf("failures = %+v, want calls 0 and 1", failures)
	}
	if report.Outcomes[2].Value != "third" {
		t.Errorf("third value = %v", report.Outcomes[2].Value)
	}

	stats := d.Stats()
	if stats.Failed != 1 || stats.Panicked != 1 || stats.Succeeded != 1 || stats.Stopped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRun_PanicFuncPanics(t *testing.T) {
	d := New[string](WithPanicFunc(func(string, string, *Panic) {
		panic("panic func panic")
	}))

	report := d.Run(context.Background(), "id", "ev", []Call[string]{
		call("boom", func(context.Context, string) (any, error) {
			panic("boom")
		}),
	})
	if report.Outcomes[0].Panic == nil {
		t.Error("expected the handler panic to be recorded")
	}
}

func TestRun_ContextDone(t *testing.T) {
	d := New[string](WithMode(Continue))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.Run(ctx, "id", "ev", []Call[string]{
		call("never", func(context.Context, string) (any, error) {
			t.Error("handler should not be called")
			return nil, nil
		}),
		call("never again", value(nil)),
	})

	for _, o := range report.Outcomes {
		if !o.Skipped || !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome = %+v, want skipped with context.Canceled", o)
		}
	}
	stats := d.Stats()
	if stats.Skipped != 2 || stats.AvgDuration != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
