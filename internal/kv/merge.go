package kv

import "strings"

// CanonicalOrder lists the compiler configuration blocks that are merged
// into a single occurrence, in the order they appear in the output.
var CanonicalOrder = []string{
	"Textures",
	"Fizzlers",
	"Options",
	"StyleVars",
	"DropperItems",
	"Conditions",
	"Quotes",
	"PackTriggers",
}

// MergeChildren folds every child block named in names into one block per
// name. Unlisted children keep their relative order and come first; merged
// blocks follow in the order of names, regardless of where their pieces
// appeared. Sub-blocks are concatenated; a scalar contributed by a later
// piece replaces the value of an earlier piece's scalar of the same name.
func (p *Property) MergeChildren(names ...string) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[strings.ToLower(n)] = i
	}

	merged := make([]*Property, len(names))
	kept := make([]*Property, 0, len(p.children))
	for _, c := range p.children {
		i, ok := index[strings.ToLower(c.Name)]
		if !ok || !c.block {
			kept = append(kept, c)
			continue
		}
		if merged[i] == nil {
			merged[i] = NewBlock(names[i])
		}
		merged[i].overlay(c)
	}

	for _, m := range merged {
		if m != nil {
			kept = append(kept, m)
		}
	}
	p.children = kept
}

// overlay merges src's children into p. Scalars only replace scalars that
// came from earlier pieces, so repeated keys inside one piece survive.
func (p *Property) overlay(src *Property) {
	before := len(p.children)
	for _, c := range src.children {
		if !c.block {
			if leaf := p.lastLeaf(c.Name, before); leaf != nil {
				leaf.Value = c.Value
				continue
			}
		}
		p.children = append(p.children, c.Copy())
	}
}

// Merge places copies of fragments under a new root in the given order and
// merges the blocks listed in order. Unnamed fragments (parsed documents)
// contribute their children.
func Merge(order []string, fragments ...*Property) *Property {
	root := NewRoot()
	for _, f := range fragments {
		if f == nil {
			continue
		}
		if f.Name == "" && f.block {
			root.Extend(f)
			continue
		}
		root.Append(f.Copy())
	}
	root.MergeChildren(order...)
	return root
}
