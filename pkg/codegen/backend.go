package codegen

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyc2026/indigo/pkg/arm"
	"github.com/hyc2026/indigo/pkg/mir"
)

// Backend defines the interface for code generation backends
type Backend interface {
	// Name returns the name of this backend (e.g., "arm")
	Name() string

	// Generate lowers every function of the package. On error the
	// functions built so far are still returned; the failing function's
	// output is discarded.
	Generate(pkg *mir.Package, extra *ExtraData) ([]*arm.Function, error)

	// FileExtension returns the file extension for generated code
	FileExtension() string
}

// BackendOptions contains options that can be passed to backends
type BackendOptions struct {
	// AllowConditionalExec lets downstream passes use conditional
	// execution; code emission itself ignores it.
	AllowConditionalExec bool

	// Verbose enables pass tracing on stderr
	Verbose bool

	// Custom backend-specific options
	CustomOptions map[string]any
}

// BackendFactory creates a backend instance
type BackendFactory func(options *BackendOptions) Backend

// Registry of available backends
var backends = make(map[string]BackendFactory)

// RegisterBackend registers a new backend
func RegisterBackend(name string, factory BackendFactory) {
	backends[name] = factory
}

// GetBackend returns a backend by name
func GetBackend(name string, options *BackendOptions) Backend {
	if factory, ok := backends[name]; ok {
		return factory(options)
	}
	return nil
}

// ListBackends returns the names of all registered backends
func ListBackends() []string {
	names := maps.Keys(backends)
	slices.Sort(names)
	return names
}
