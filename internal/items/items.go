// Package items holds the palette item records an export writes into the
// editor's item list and the compiled item database.
package items

import (
	"sort"
	"strings"

	"github.com/blackwell-systems/packport/internal/kv"
)

// Facing values accepted by the editor.
const (
	FacingNone       = "NONE"
	FacingUp         = "UP"
	FacingHorizontal = "HORIZONTAL"
)

// UnlockDefaultIDs are the corridor and observation room items that the
// UnlockDefault style var makes editable.
var UnlockDefaultIDs = []string{
	"ITEM_EXIT_DOOR",
	"ITEM_COOP_EXIT_DOOR",
	"ITEM_ENTRY_DOOR",
	"ITEM_COOP_ENTRY_DOOR",
	"ITEM_OBSERVATION_ROOM",
}

// Item is an immutable palette item. Change it by building a new value and
// replacing it in the slice; Config and Editor are shared and never mutated.
type Item struct {
	ID        string
	Deletable bool
	Copiable  bool
	Facing    string
	Models    []string
	// Styles lists the style IDs the item supports. Empty means all.
	Styles []string
	// Config is this item's contribution to the compiler configuration.
	Config *kv.Property
	// Editor holds extra children for the item's Editor block.
	Editor *kv.Property
}

// Supports reports whether the item is available in a style.
func (it Item) Supports(style string) bool {
	if len(it.Styles) == 0 {
		return true
	}
	for _, s := range it.Styles {
		if strings.EqualFold(s, style) {
			return true
		}
	}
	return false
}

// Unlocked returns a copy that can be deleted, copied and faces up.
func (it Item) Unlocked() Item {
	it.Deletable = true
	it.Copiable = true
	it.Facing = FacingUp
	return it
}

// Renderable is an editor-only model such as the error shape.
type Renderable struct {
	Type  string
	Model string
}

// IsUnlockDefault reports whether id is one of UnlockDefaultIDs.
func IsUnlockDefault(id string) bool {
	for _, u := range UnlockDefaultIDs {
		if strings.EqualFold(u, id) {
			return true
		}
	}
	return false
}

// ForStyle returns the items supporting style, sorted by ID. When two items
// share an ID the first one wins.
func ForStyle(all []Item, style string) []Item {
	seen := make(map[string]bool)
	var out []Item
	for _, it := range all {
		key := strings.ToUpper(it.ID)
		if seen[key] || !it.Supports(style) {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UsedModels returns the lower-cased set of models referenced by items.
func UsedModels(list []Item) map[string]bool {
	used := make(map[string]bool)
	for _, it := range list {
		for _, m := range it.Models {
			used[strings.ToLower(m)] = true
		}
	}
	return used
}
