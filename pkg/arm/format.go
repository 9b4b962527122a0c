package arm

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyc2026/indigo/pkg/mir"
)

// BBLabel formats a basic-block label.
func BBLabel(fn string, id mir.BlockId) string {
	return fmt.Sprintf(".bb_%s$%d", fn, uint32(id))
}

// FnEndLabel formats the function-end label.
func FnEndLabel(fn string) string {
	return fmt.Sprintf(".end_%s$", fn)
}

// ConstLabel formats a constant-pool label.
func ConstLabel(fn string, n uint32) string {
	return fmt.Sprintf(".const_%s$%d", fn, n)
}

// LoadPCLabel formats a PC-anchor label.
func LoadPCLabel(fn string, n uint32) string {
	return fmt.Sprintf(".ld_pc_%s$%d", fn, n)
}

// WriteTo writes the function as an assembly listing: the body, then the
// constant pool in label order.
func (f *Function) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s:\n", f.Name); err != nil {
		return err
	}
	for _, inst := range f.Insts {
		indent := "\t"
		if _, ok := inst.(*LabelInst); ok {
			indent = ""
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, inst); err != nil {
			return err
		}
	}
	labels := maps.Keys(f.Consts)
	slices.Sort(labels)
	for _, label := range labels {
		c := f.Consts[label]
		if _, err := fmt.Fprintf(w, "%s:\n\t%s %s\n", label, c.Kind, c.Expr); err != nil {
			return err
		}
	}
	return nil
}

func (f *Function) String() string {
	var b strings.Builder
	f.WriteTo(&b)
	return b.String()
}
