// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"sync"

	"github.com/fpp-125/fbh/internal/command"
)

// Runner records every spec it receives. Respond, when set, decides the
// result; otherwise every command succeeds with empty output.
type Runner struct {
	Respond func(spec command.Spec) command.Result

	mu    sync.Mutex
	calls []command.Spec
}

func (r *Runner) Run(_ context.Context, spec command.Spec) (command.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	r.mu.Unlock()

	var res command.Result
	if r.Respond != nil {
		res = r.Respond(spec)
	}
	if res.ExitCode != 0 {
		return res, &command.ExitError{Spec: spec, Result: res}
	}
	return res, nil
}

func (r *Runner) Calls() []command.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Spec(nil), r.calls...)
}

// Programs lists the program of every recorded call, with the first argument
// appended for flatpak calls ("flatpak build", "flatpak build-init").
func (r *Runner) Programs() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		name := c.Program
		if len(c.Args) > 0 && c.Program == "flatpak" {
			name += " " + c.Args[0]
		}
		out = append(out, name)
	}
	return out
}
