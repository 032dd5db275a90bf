// Package export runs the staged pipeline that deploys the selected style,
// items and resources into one target.
package export

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/packport/internal/items"
	"github.com/blackwell-systems/packport/internal/kv"
	"github.com/blackwell-systems/packport/internal/packages"
	"github.com/blackwell-systems/packport/internal/progress"
	"github.com/blackwell-systems/packport/internal/targets"
)

// Selection is what the user picked for an export.
type Selection struct {
	Style string
	// Voice is a quote pack ID; empty exports no voice lines.
	Voice string
	// StyleVars overrides style var defaults by ID.
	StyleVars map[string]bool
}

// Session is everything one export of one target needs.
type Session struct {
	Target    *targets.Target
	Packages  *packages.Set
	Selection Selection
	// Sink may be nil.
	Sink progress.Sink
	// Refresh asks for the resource cache to be synchronized when stale.
	Refresh bool
	// Force synchronizes even when the cache looks fresh.
	Force bool
}

// Context is the state shared by exporters and generators during one run.
// It is discarded when the run ends.
type Context struct {
	RunID     uuid.UUID
	Target    *targets.Target
	Packages  *packages.Set
	Selection Selection
	Style     *packages.Style

	// Items and Renderables are working copies; replace entries with
	// ReplaceItem rather than mutating them.
	Items       []items.Item
	Renderables []items.Renderable

	// Config is the compiler configuration under construction.
	Config *kv.Property

	// Resources are generated files keyed by target-relative slash path,
	// written after the resource cache is refreshed.
	Resources map[string][]byte

	Options Options
	// DryRun is set when the context only feeds a preview; exporters must
	// not touch the target.
	DryRun bool

	fs afero.Fs
}

// Fs is the filesystem targets live on.
func (c *Context) Fs() afero.Fs { return c.fs }

// AddResource queues a generated file. A later call for the same path wins.
func (c *Context) AddResource(path string, data []byte) {
	c.Resources[strings.TrimPrefix(path, "/")] = data
}

// ReplaceItem swaps the item at i for a new value.
func (c *Context) ReplaceItem(i int, it items.Item) {
	c.Items[i] = it
}

// StyleVar returns the selected value of a style var, falling back to its
// default. Unknown IDs are false.
func (c *Context) StyleVar(id string) bool {
	for k, v := range c.Selection.StyleVars {
		if strings.EqualFold(k, id) {
			return v
		}
	}
	for _, sv := range c.Packages.StyleVars() {
		if strings.EqualFold(sv.ID, id) {
			return sv.Default
		}
	}
	return false
}
