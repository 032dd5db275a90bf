package kv

import (
	"bufio"
	"io"
	"strings"
)

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

// Export writes p in key-values text form. An unnamed root writes only its
// children.
func (p *Property) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if p.block && p.Name == "" {
		for _, c := range p.children {
			c.write(bw, 0)
		}
	} else {
		p.write(bw, 0)
	}
	return bw.Flush()
}

// String returns the exported text of p.
func (p *Property) String() string {
	var sb strings.Builder
	_ = p.Export(&sb)
	return sb.String()
}

func (p *Property) write(w *bufio.Writer, depth int) {
	indent := strings.Repeat("\t", depth)
	w.WriteString(indent)
	w.WriteString(quote(p.Name))
	if !p.block {
		w.WriteString(" ")
		w.WriteString(quote(p.Value))
		w.WriteString("\n")
		return
	}
	w.WriteString("\n")
	w.WriteString(indent)
	w.WriteString("\t{\n")
	for _, c := range p.children {
		c.write(w, depth+1)
	}
	w.WriteString(indent)
	w.WriteString("\t}\n")
}

func quote(s string) string {
	return `"` + escaper.Replace(s) + `"`
}
