package mir

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Visualizer generates Graphviz DOT output for a MIR package: one cluster
// per function, blocks as nodes, terminator edges between them.
type Visualizer struct {
	writer io.Writer
	err    error
}

// NewVisualizer creates a new MIR visualizer
func NewVisualizer(w io.Writer) *Visualizer {
	return &Visualizer{writer: w}
}

// Visualize writes the DOT graph for the package.
func (v *Visualizer) Visualize(pkg *Package) error {
	v.emit("digraph mir {")
	v.emit("  rankdir=TB;")
	v.emit("  node [shape=box, fontname=\"monospace\"];")
	v.emit("")

	names := maps.Keys(pkg.Funcs)
	slices.Sort(names)
	for i, name := range names {
		v.visualizeFunction(pkg.Funcs[name], i)
	}

	v.emit("}")
	return v.err
}

func (v *Visualizer) visualizeFunction(fn *Function, idx int) {
	v.emit("  subgraph cluster_%d {", idx)
	v.emit("    label=\"%s\";", escape(fn.Ty.String()+" "+fn.Name))

	ids := maps.Keys(fn.Blocks)
	slices.Sort(ids)
	for _, id := range ids {
		blk := fn.Blocks[id]
		v.emit("    %s [label=\"%s\"];", v.nodeName(fn, id), escape(blockLabel(blk)))
	}
	for _, id := range ids {
		blk := fn.Blocks[id]
		from := v.nodeName(fn, id)
		switch t := blk.Term.(type) {
		case *Br:
			v.emit("    %s -> %s;", from, v.nodeName(fn, t.Target))
		case *BrCond:
			v.emit("    %s -> %s [label=\"true\"];", from, v.nodeName(fn, t.True))
			v.emit("    %s -> %s [label=\"false\"];", from, v.nodeName(fn, t.False))
		}
	}
	v.emit("  }")
	v.emit("")
}

func (v *Visualizer) nodeName(fn *Function, id BlockId) string {
	return fmt.Sprintf("%q", fn.Name+"_"+id.String())
}

func blockLabel(blk *BasicBlk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\\l", blk.ID)
	for _, inst := range blk.Insts {
		fmt.Fprintf(&b, "  %s\\l", inst)
	}
	if blk.Term != nil {
		fmt.Fprintf(&b, "  %s\\l", blk.Term)
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func (v *Visualizer) emit(format string, args ...any) {
	if v.err != nil {
		return
	}
	_, v.err = fmt.Fprintf(v.writer, format+"\n", args...)
}
