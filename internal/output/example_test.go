package output_test

import (
	"context"
	"fmt"
	"os"

	"github.com/blackwell-systems/packport/internal/output"
	"github.com/blackwell-systems/packport/internal/progress"
	"github.com/blackwell-systems/packport/internal/targets"
)

// Example showing how to render the target table
func ExampleRenderTargetTable() {
	t := targets.New("portal2", "620", "/games/portal2")
	fmt.Print(output.RenderTargetTable([]output.TargetRow{{Target: t, Stale: true}}))
}

// Example showing a stage sink driving one bar per export stage
func ExampleStageProgress() {
	sink := output.NewStageProgress(context.Background(), os.Stderr)

	sink.SetLength(progress.Backup, 2)
	_ = sink.Step(progress.Backup, "VBSP")
	_ = sink.Step(progress.Backup, "VRAD")
	sink.Skip(progress.Music)
	sink.Finish()
}
