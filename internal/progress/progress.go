// Package progress defines the sink an export reports its stages to and the
// cancellation signal that sink can raise.
package progress

import "github.com/blackwell-systems/packport/internal/errs"

// Stage is a progress group shown to the user.
type Stage string

const (
	Backup    Stage = "BACK"
	Export    Stage = "EXP"
	Compiler  Stage = "COMP"
	Resources Stage = "RES"
	Music     Stage = "MUS"
)

// Stages lists every stage in display order.
var Stages = []Stage{Backup, Export, Compiler, Resources, Music}

// ErrCancelled is returned by Sink.Step once the user cancelled.
var ErrCancelled = errs.New(errs.KindCancelled, "export cancelled")

// Sink receives stage progress. Step returns ErrCancelled (or an error
// wrapping it) once the run should stop.
type Sink interface {
	SetLength(stage Stage, n int)
	Step(stage Stage, label string) error
	Skip(stage Stage)
}

// Nop ignores all progress and never cancels.
type Nop struct{}

func (Nop) SetLength(Stage, int)     {}
func (Nop) Step(Stage, string) error { return nil }
func (Nop) Skip(Stage)               {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}
