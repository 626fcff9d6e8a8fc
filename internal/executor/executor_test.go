package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/command/commandtest"
)

func specs(programs ...string) []command.Spec {
	out := make([]command.Spec, 0, len(programs))
	for _, p := range programs {
		out = append(out, command.Spec{Program: p})
	}
	return out
}

func TestRunExecutesInOrder(t *testing.T) {
	r := &commandtest.Runner{}
	var observed []int
	e := New(r, nil)
	e.Observe = func(s Step) { observed = append(observed, s.Index) }
	if err := e.Run(context.Background(), specs("a", "b", "c")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	calls := r.Calls()
	if len(calls) != 3 || calls[0].Program != "a" || calls[2].Program != "c" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if len(observed) != 3 || observed[2] != 2 {
		t.Fatalf("observer not called for every step: %v", observed)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	r := &commandtest.Runner{Respond: func(s command.Spec) command.Result {
		if s.Program == "b" {
			return command.Result{ExitCode: 2, Stdout: "partial", Stderr: "ninja: error: loading 'build.ninja'"}
		}
		return command.Result{}
	}}
	err := New(r, nil).Run(context.Background(), specs("a", "b", "c"))
	var bf *BuildFailedError
	if !errors.As(err, &bf) {
		t.Fatalf("expected *BuildFailedError, got %v", err)
	}
	if bf.Index != 1 || bf.Total != 3 || bf.Spec.Program != "b" {
		t.Fatalf("unexpected failure details: %+v", bf)
	}
	if bf.Result.Stderr != "ninja: error: loading 'build.ninja'" || bf.Result.Stdout != "partial" {
		t.Fatalf("captured output not carried: %+v", bf.Result)
	}
	if !errors.Is(err, command.ErrExternalCommandFailed) {
		t.Fatal("BuildFailedError should unwrap to ErrExternalCommandFailed")
	}
	if len(r.Calls()) != 2 {
		t.Fatalf("no command may run after a failure, got %d calls", len(r.Calls()))
	}
}

type startFailure struct{}

func (startFailure) Run(context.Context, command.Spec) (command.Result, error) {
	return command.Result{ExitCode: -1}, errors.New("exec: not found")
}

func TestRunWrapsStartFailures(t *testing.T) {
	err := New(startFailure{}, nil).Run(context.Background(), specs("missing"))
	var bf *BuildFailedError
	if !errors.As(err, &bf) || bf.Index != 0 {
		t.Fatalf("expected BuildFailedError at step 0, got %v", err)
	}
	if !errors.Is(err, command.ErrExternalCommandFailed) {
		t.Fatalf("expected ErrExternalCommandFailed in chain, got %v", err)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	if err := New(&commandtest.Runner{}, nil).Run(context.Background(), nil); err != nil {
		t.Fatalf("empty plan should succeed, got %v", err)
	}
}
