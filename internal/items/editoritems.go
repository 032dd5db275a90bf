package items

import (
	"io"

	"github.com/blackwell-systems/packport/internal/kv"
)

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Tree builds the editor item list document.
func Tree(list []Item, renderables []Renderable) *kv.Property {
	data := kv.NewBlock("ItemData")
	for _, it := range list {
		editor := kv.NewBlock("Editor",
			kv.NewLeaf("Deletable", boolValue(it.Deletable)),
			kv.NewLeaf("Copyable", boolValue(it.Copiable)),
		)
		if it.Facing != "" && it.Facing != FacingNone {
			editor.Append(kv.NewLeaf("DesiredFacing", "DESIRES_"+it.Facing))
		}
		if len(it.Models) > 0 {
			sub := kv.NewBlock("SubType")
			for _, m := range it.Models {
				sub.Append(kv.NewBlock("Model", kv.NewLeaf("ModelName", m)))
			}
			editor.Append(sub)
		}
		editor.Extend(it.Editor)
		data.Append(kv.NewBlock("Item", kv.NewLeaf("Type", it.ID), editor))
	}

	if len(renderables) > 0 {
		rend := kv.NewBlock("Renderables")
		for _, r := range renderables {
			rend.Append(kv.NewBlock("Item", kv.NewLeaf("Type", r.Type), kv.NewLeaf("Model", r.Model)))
		}
		data.Append(rend)
	}
	return kv.NewRoot(data)
}

// WriteEditoritems writes the editor item list.
func WriteEditoritems(w io.Writer, list []Item, renderables []Renderable) error {
	return Tree(list, renderables).Export(w)
}
