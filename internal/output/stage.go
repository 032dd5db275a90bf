package output

import (
	"context"
	"io"
	"sync"

	"github.com/blackwell-systems/packport/internal/progress"
)

// StageProgress renders an export as one bar per stage. It reports
// cancellation once ctx is done.
type StageProgress struct {
	ctx    context.Context
	writer io.Writer

	mu      sync.Mutex
	bars    map[progress.Stage]*ProgressBar
	current *ProgressBar
}

var _ progress.Sink = (*StageProgress)(nil)

// NewStageProgress creates a sink writing to w.
func NewStageProgress(ctx context.Context, w io.Writer) *StageProgress {
	return &StageProgress{ctx: ctx, writer: w, bars: make(map[progress.Stage]*ProgressBar)}
}

// bar returns the bar of a stage, finishing whichever bar was active
// before. Must be called with lock held.
func (s *StageProgress) bar(stage progress.Stage) *ProgressBar {
	b, ok := s.bars[stage]
	if !ok {
		b = NewProgress(string(stage), 0)
		b.SetWriter(s.writer)
		s.bars[stage] = b
	}
	if s.current != nil && s.current != b {
		s.current.Finish("done")
	}
	s.current = b
	return b
}

// SetLength sets the step count of a stage.
func (s *StageProgress) SetLength(stage progress.Stage, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bar(stage).SetTotal(n)
}

// Step advances a stage, or returns progress.ErrCancelled.
func (s *StageProgress) Step(stage progress.Stage, label string) error {
	if s.ctx.Err() != nil {
		return progress.ErrCancelled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bar(stage).Step(label)
	return nil
}

// Skip marks a stage as not run.
func (s *StageProgress) Skip(stage progress.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bar(stage)
	b.Finish("skipped")
	s.current = nil
}

// Finish completes the active stage.
func (s *StageProgress) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Finish("done")
		s.current = nil
	}
}

// Steps returns how many steps each stage took.
func (s *StageProgress) Steps() map[progress.Stage]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := make(map[progress.Stage]int, len(s.bars))
	for stage, b := range s.bars {
		steps[stage] = b.Current()
	}
	return steps
}
