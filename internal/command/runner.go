package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"hyperdrive/pkg/logger"
)

// Runner executes external programs
type Runner interface {
	// Run executes name with args in dir (empty for the current directory) and
	// returns its combined output
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	logger logger.Logger
}

// NewExecRunner creates a runner that logs every invocation
func NewExecRunner(log logger.Logger) *ExecRunner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ExecRunner{logger: log}
}

// Run executes the command, killing it when ctx is done
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	fields := map[string]interface{}{
		"command":     name + " " + strings.Join(args, " "),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["output"] = strings.TrimSpace(out.String())
		r.logger.WithError(err).WarnWithFields("command failed", fields)
		return out.Bytes(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	r.logger.DebugWithFields("command completed", fields)
	return out.Bytes(), nil
}

// Call is one recorded invocation
type Call struct {
	Dir  string
	Name string
	Args []string
}

// String renders the call as a command line
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// RecordingRunner records invocations instead of executing them
type RecordingRunner struct {
	mu    sync.Mutex
	calls []Call
	// Output returns canned output for a call; nil means empty output
	Output func(Call) ([]byte, error)
}

// Run records the call
func (r *RecordingRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	c := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Output != nil {
		return r.Output(c)
	}
	return nil, nil
}

// Calls returns the recorded invocations
func (r *RecordingRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded invocations rendered as command lines
func (r *RecordingRunner) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}
