// Package kv implements the ordered key-values tree used for style, item
// and compiler configuration, and the block merge that composes the final
// compiler configuration from many fragments.
package kv

import "strings"

// Property is either a leaf with a string value or a block of ordered
// children. Names compare case-insensitively; insertion order is kept.
type Property struct {
	Name     string
	Value    string
	children []*Property
	block    bool
}

// NewLeaf returns a scalar property.
func NewLeaf(name, value string) *Property {
	return &Property{Name: name, Value: value}
}

// NewBlock returns a block property holding children.
func NewBlock(name string, children ...*Property) *Property {
	return &Property{Name: name, block: true, children: children}
}

// NewRoot returns an unnamed block used as the top of a document.
func NewRoot(children ...*Property) *Property {
	return NewBlock("", children...)
}

// IsBlock reports whether p holds children instead of a value.
func (p *Property) IsBlock() bool { return p.block }

// Children returns a copy of the child slice.
func (p *Property) Children() []*Property {
	out := make([]*Property, len(p.children))
	copy(out, p.children)
	return out
}

// Len returns the number of direct children.
func (p *Property) Len() int { return len(p.children) }

// Append adds children at the end. Appending to a leaf turns it into a block.
func (p *Property) Append(children ...*Property) {
	if !p.block {
		p.block = true
		p.Value = ""
	}
	p.children = append(p.children, children...)
}

// Extend appends deep copies of other's children.
func (p *Property) Extend(other *Property) {
	if other == nil {
		return
	}
	for _, c := range other.children {
		p.Append(c.Copy())
	}
}

// Copy returns a deep copy of p.
func (p *Property) Copy() *Property {
	if p == nil {
		return nil
	}
	cp := &Property{Name: p.Name, Value: p.Value, block: p.block}
	if p.children != nil {
		cp.children = make([]*Property, len(p.children))
		for i, c := range p.children {
			cp.children[i] = c.Copy()
		}
	}
	return cp
}

// Find returns the first child named name, or nil.
func (p *Property) Find(name string) *Property {
	for _, c := range p.children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// FindAll returns every child named name, in order.
func (p *Property) FindAll(name string) []*Property {
	var out []*Property
	for _, c := range p.children {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

// FindPath walks nested blocks and returns every match of the final name.
func (p *Property) FindPath(path ...string) []*Property {
	current := []*Property{p}
	for _, name := range path {
		var next []*Property
		for _, c := range current {
			next = append(next, c.FindAll(name)...)
		}
		current = next
	}
	return current
}

// Get returns the value of the last leaf child named name, or def.
func (p *Property) Get(name, def string) string {
	for i := len(p.children) - 1; i >= 0; i-- {
		c := p.children[i]
		if !c.block && strings.EqualFold(c.Name, name) {
			return c.Value
		}
	}
	return def
}

// SetKey sets the leaf at path to value, creating intermediate blocks.
// An existing leaf is updated in place.
func (p *Property) SetKey(value string, path ...string) {
	if len(path) == 0 {
		return
	}
	node := p
	for _, name := range path[:len(path)-1] {
		child := node.findBlock(name)
		if child == nil {
			child = NewBlock(name)
			node.Append(child)
		}
		node = child
	}
	last := path[len(path)-1]
	if leaf := node.lastLeaf(last, len(node.children)); leaf != nil {
		leaf.Value = value
		return
	}
	node.Append(NewLeaf(last, value))
}

// Remove deletes every child named name and returns how many were removed.
func (p *Property) Remove(name string) int {
	kept := p.children[:0]
	removed := 0
	for _, c := range p.children {
		if strings.EqualFold(c.Name, name) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.children); i++ {
		p.children[i] = nil
	}
	p.children = kept
	return removed
}

func (p *Property) findBlock(name string) *Property {
	for _, c := range p.children {
		if c.block && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// lastLeaf searches the first limit children for the last leaf named name.
func (p *Property) lastLeaf(name string, limit int) *Property {
	for i := limit - 1; i >= 0; i-- {
		c := p.children[i]
		if !c.block && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}
