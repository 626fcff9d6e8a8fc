// Package command describes external programs the helper runs and executes
// them with captured output.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var ErrExternalCommandFailed = errors.New("external command failed")

// Spec is one external invocation. Dir is the working directory; empty means
// the caller's.
type Spec struct {
	Program string   `json:"program"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir,omitempty"`
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExitError reports a command that ran and exited unsuccessfully.
type ExitError struct {
	Spec   Spec
	Result Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Spec.Program, e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return ErrExternalCommandFailed }

func (s Spec) Argv() []string {
	return append([]string{s.Program}, s.Args...)
}

// String renders the command as a shell line, quoting where bash would need it.
func (s Spec) String() string {
	argv := s.Argv()
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		parts = append(parts, q)
	}
	line := strings.Join(parts, " ")
	if s.Dir != "" {
		dir, err := syntax.Quote(s.Dir, syntax.LangBash)
		if err != nil {
			dir = fmt.Sprintf("%q", s.Dir)
		}
		line = "(cd " + dir + " && " + line + ")"
	}
	return line
}

// ExecRunner runs commands with os/exec. Env, when set, replaces the
// inherited environment.
type ExecRunner struct {
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var out bytes.Buffer
	var errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	res := Result{Stdout: out.String(), Stderr: errBuf.String()}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, &ExitError{Spec: spec, Result: res}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("%w: start %s: %v", ErrExternalCommandFailed, spec.Program, err)
	}
	return res, nil
}
