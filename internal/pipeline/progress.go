package pipeline

import (
	"fmt"
	"io"
	"sync"
)

// Status is one progress notification. Progress fractions are exact:
// Progress is CurrentImage/TotalImages, SubstepProgress is
// CurrentSubstep/TotalSubsteps.
type Status struct {
	TotalImages     int
	CurrentImage    int
	CurrentStep     string
	Progress        float64
	CurrentSubstep  int
	TotalSubsteps   int
	SubstepProgress float64
}

// Reporter receives best-effort progress notifications. Implementations must
// not block; the pipeline never waits on a reporter and tolerates a nil one.
type Reporter interface {
	Publish(Status)
	Log(line string)
}

// NopReporter discards all notifications.
type NopReporter struct{}

func (NopReporter) Publish(Status) {}
func (NopReporter) Log(string)     {}

// BufferReporter retains every status and log line. It is safe for
// concurrent use so a presentation layer can poll it while a run advances.
type BufferReporter struct {
	mu       sync.Mutex
	statuses []Status
	lines    []string
}

func (b *BufferReporter) Publish(s Status) {
	b.mu.Lock()
	b.statuses = append(b.statuses, s)
	b.mu.Unlock()
}

func (b *BufferReporter) Log(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// Statuses returns a copy of all published statuses.
func (b *BufferReporter) Statuses() []Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Status, len(b.statuses))
	copy(out, b.statuses)
	return out
}

// Lines returns a copy of all log lines.
func (b *BufferReporter) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Last returns the most recent status, if any.
func (b *BufferReporter) Last() (Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.statuses) == 0 {
		return Status{}, false
	}
	return b.statuses[len(b.statuses)-1], true
}

// ConsoleReporter prints progress lines to a writer.
type ConsoleReporter struct {
	W io.Writer
}

func (c ConsoleReporter) Publish(s Status) {
	if s.TotalSubsteps > 0 {
		fmt.Fprintf(c.W, "[%d/%d] %s (substep %d/%d)\n",
			s.CurrentImage, s.TotalImages, s.CurrentStep, s.CurrentSubstep, s.TotalSubsteps)
		return
	}
	fmt.Fprintf(c.W, "[%d/%d] %s\n", s.CurrentImage, s.TotalImages, s.CurrentStep)
}

func (c ConsoleReporter) Log(line string) {
	fmt.Fprintln(c.W, line)
}
