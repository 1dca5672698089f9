package orchestrator

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Stages of a tick, used to attribute faults.
const (
	StageEvents    = "events"
	StageEvaluate  = "evaluate"
	StageRender    = "render"
	StageComposite = "composite"
	StageFlush     = "flush"
)

// Fault is an error or panic caught at the render loop boundary.
type Fault struct {
	Module string // empty when not attributable to one module
	Stage  string
	Err    error
	Stack  string // set for panics
	Time   time.Time
}

func (f *Fault) Error() string {
	if f.Module != "" {
		return fmt.Sprintf("%s %s: %v", f.Module, f.Stage, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Panicked reports whether the fault came from a recovered panic.
func (f *Fault) Panicked() bool { return f.Stack != "" }

// guard runs fn and converts a returned error or a panic into a *Fault.
func guard(module, stage string, now func() time.Time, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("panic: %v", r)
			}
			err = &Fault{Module: module, Stage: stage, Err: perr, Stack: string(debug.Stack()), Time: now()}
		}
	}()
	if e := fn(); e != nil {
		var f *Fault
		if errors.As(e, &f) {
			return f
		}
		return &Fault{Module: module, Stage: stage, Err: e, Time: now()}
	}
	return nil
}

// stackFrames returns the "file:line" lines of a goroutine stack, which is
// what fits on a diagnostic screen.
func stackFrames(stack string, limit int) []string {
	var out []string
	for _, ln := range strings.Split(stack, "\n") {
		ln = strings.TrimSpace(ln)
		if !strings.HasPrefix(ln, "/") && !strings.Contains(ln, ".go:") {
			continue
		}
		if i := strings.LastIndex(ln, " +0x"); i > 0 {
			ln = ln[:i]
		}
		if j := strings.LastIndex(ln, "/"); j >= 0 {
			ln = ln[j+1:]
		}
		out = append(out, ln)
		if len(out) == limit {
			break
		}
	}
	return out
}
