package codegen

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyc2026/indigo/pkg/arm"
	"github.com/hyc2026/indigo/pkg/mir"
)

func init() {
	RegisterBackend("arm", NewARMBackend)
}

// ARMBackend lowers a MIR package to ARMv7-A functions over virtual
// registers, ready for register allocation.
type ARMBackend struct {
	options *BackendOptions
}

// NewARMBackend creates an ARM backend instance
func NewARMBackend(options *BackendOptions) Backend {
	return &ARMBackend{options: options}
}

func (b *ARMBackend) Name() string { return "arm" }

func (b *ARMBackend) FileExtension() string { return ".s" }

// Generate lowers every function in name order. Functions are independent
// units; a failure discards that function and stops, returning what built.
func (b *ARMBackend) Generate(pkg *mir.Package, extra *ExtraData) ([]*arm.Function, error) {
	names := maps.Keys(pkg.Funcs)
	slices.Sort(names)

	funcs := make([]*arm.Function, 0, len(names))
	for _, name := range names {
		cg := NewCodegen(pkg.Funcs[name], pkg, extra, b.options)
		f, err := cg.TranslateFunction()
		if err != nil {
			return funcs, fmt.Errorf("function %s: %w", name, err)
		}
		funcs = append(funcs, f)
	}
	return funcs, nil
}
