package codegen

import (
	"sync"

	"github.com/hyc2026/indigo/pkg/arm"
	"github.com/hyc2026/indigo/pkg/mir"
)

// Keys of the extra-data dictionary shared between passes.
const (
	// MirVariableToArmVRegKey holds a VRegMap. Written by the code
	// generator, read by the register allocator.
	MirVariableToArmVRegKey = "mir_variable_to_arm_vreg"

	// BasicBlockOrderingKey holds a BlockOrdering. Read by the code
	// generator to decide block emission order.
	BasicBlockOrderingKey = "basic_block_ordering"

	// InlineBlksKey holds an InlineBlks hint map. Read but not acted on
	// during code generation.
	InlineBlksKey = "inline_blks"
)

// VRegMap maps function names to their variable-to-register bindings.
type VRegMap = map[string]map[mir.VarId]arm.Reg

// BlockOrdering maps function names to a block traversal order.
type BlockOrdering = map[string][]mir.BlockId

// InlineBlks maps function names to per-block condition-code hints.
type InlineBlks = map[string]map[mir.BlockId]arm.ConditionCode

// ExtraData is the string-keyed dictionary passes use to exchange tagged
// payloads. Reads during code generation see frozen data; the one write
// (the register-map publish) is serialized by the mutex.
type ExtraData struct {
	mu   sync.Mutex
	data map[string]any
}

// NewExtraData creates an empty dictionary.
func NewExtraData() *ExtraData {
	return &ExtraData{data: make(map[string]any)}
}

// Get returns the payload stored under key.
func (e *ExtraData) Get(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[key]
	return v, ok
}

// Put stores a payload under key, replacing any previous value.
func (e *ExtraData) Put(key string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[key] = v
}

// BlockOrderingFor returns the block ordering recorded for a function.
func (e *ExtraData) BlockOrderingFor(fn string) ([]mir.BlockId, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.data[BasicBlockOrderingKey].(BlockOrdering)
	if !ok {
		return nil, false
	}
	o, ok := m[fn]
	return o, ok
}

// InlineBlksFor returns the inline-block hints recorded for a function.
func (e *ExtraData) InlineBlksFor(fn string) (map[mir.BlockId]arm.ConditionCode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.data[InlineBlksKey].(InlineBlks)
	if !ok {
		return nil, false
	}
	h, ok := m[fn]
	return h, ok
}

// PublishVRegMap records a function's register map under
// MirVariableToArmVRegKey, creating the outer map on first use.
func (e *ExtraData) PublishVRegMap(fn string, regMap map[mir.VarId]arm.Reg) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.data[MirVariableToArmVRegKey].(VRegMap)
	if !ok {
		m = make(VRegMap)
		e.data[MirVariableToArmVRegKey] = m
	}
	m[fn] = regMap
}
