package mir

import (
	"fmt"
	"strings"
)

// VarId identifies a MIR variable within a function. Parameter variables
// occupy ids 1..N in declaration order.
type VarId uint32

// BlockId identifies a basic block within a function.
type BlockId uint32

func (v VarId) String() string   { return fmt.Sprintf("v%d", uint32(v)) }
func (b BlockId) String() string { return fmt.Sprintf("bb%d", uint32(b)) }

// TyKind discriminates MIR types.
type TyKind int

const (
	TyInt TyKind = iota
	TyVoid
	TyPtr
	TyArray
	TyFn
	TyRestParam
)

// Ty is a MIR type. Size is in bytes.
type Ty interface {
	Kind() TyKind
	Size() int
	String() string
}

// IntTy is the 32-bit signed integer type.
type IntTy struct{}

func (IntTy) Kind() TyKind   { return TyInt }
func (IntTy) Size() int      { return 4 }
func (IntTy) String() string { return "int" }

// VoidTy is the unit type of value-less functions.
type VoidTy struct{}

func (VoidTy) Kind() TyKind   { return TyVoid }
func (VoidTy) Size() int      { return 0 }
func (VoidTy) String() string { return "void" }

// PtrTy is a pointer to Item. Pointers are 32-bit.
type PtrTy struct {
	Item Ty
}

func (*PtrTy) Kind() TyKind     { return TyPtr }
func (*PtrTy) Size() int        { return 4 }
func (t *PtrTy) String() string { return "*" + t.Item.String() }

// ArrayTy is a fixed-length array of Item.
type ArrayTy struct {
	Item Ty
	Len  int
}

func (*ArrayTy) Kind() TyKind     { return TyArray }
func (t *ArrayTy) Size() int      { return t.Item.Size() * t.Len }
func (t *ArrayTy) String() string { return fmt.Sprintf("[%d]%s", t.Len, t.Item.String()) }

// RestParamTy marks a variadic tail parameter. It never occupies stack space.
type RestParamTy struct{}

func (RestParamTy) Kind() TyKind   { return TyRestParam }
func (RestParamTy) Size() int      { return 0 }
func (RestParamTy) String() string { return "..." }

// FnTy is a function signature.
type FnTy struct {
	Params []Ty
	Ret    Ty
}

func (*FnTy) Kind() TyKind { return TyFn }
func (*FnTy) Size() int    { return 0 }

func (t *FnTy) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("fn(%s) -> %s", strings.Join(parts, ", "), t.Ret.String())
}

// Value is either a 32-bit immediate or a variable reference.
type Value interface {
	fmt.Stringer
	value()
}

// Imm is an immediate integer value.
type Imm int32

func (Imm) value()           {}
func (i Imm) String() string { return fmt.Sprintf("%d", int32(i)) }

func (VarId) value() {}

// RefTarget is the target of a RefInst: a global symbol or a variable.
type RefTarget interface {
	fmt.Stringer
	refTarget()
}

// SymRef names a global symbol.
type SymRef string

func (SymRef) refTarget()       {}
func (s SymRef) String() string { return "@" + string(s) }

func (VarId) refTarget() {}

// Op is a MIR binary operation.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Shl
	Shr
	ShrA
	Gt
	Lt
	Gte
	Lte
	Eq
	Neq
)

var opNames = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%",
	And: "&", Or: "|", Shl: "<<", Shr: ">>", ShrA: ">>a",
	Gt: ">", Lt: "<", Gte: ">=", Lte: "<=", Eq: "==", Neq: "!=",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsComparison reports whether the operation produces a boolean via flags.
func (o Op) IsComparison() bool {
	switch o {
	case Gt, Lt, Gte, Lte, Eq, Neq:
		return true
	}
	return false
}

// Inst is a MIR instruction. Dest is the defined variable; instructions
// without a meaningful definition (stores) return their address variable.
type Inst interface {
	fmt.Stringer
	Dest() VarId
}

// AssignInst copies a value into a variable.
type AssignInst struct {
	Dst VarId
	Src Value
}

func (i *AssignInst) Dest() VarId    { return i.Dst }
func (i *AssignInst) String() string { return fmt.Sprintf("%s = %s", i.Dst, i.Src) }

// OpInst applies a binary operation.
type OpInst struct {
	Dst VarId
	Op  Op
	LHS Value
	RHS Value
}

func (i *OpInst) Dest() VarId { return i.Dst }

func (i *OpInst) String() string {
	return fmt.Sprintf("%s = %s %s %s", i.Dst, i.LHS, i.Op, i.RHS)
}

// CallInst calls a named function in the package.
type CallInst struct {
	Dst  VarId
	Func string
	Args []Value
}

func (i *CallInst) Dest() VarId { return i.Dst }

func (i *CallInst) String() string {
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = a.String()
	}
	return fmt.Sprintf("%s = call %s(%s)", i.Dst, i.Func, strings.Join(args, ", "))
}

// LoadInst loads a word from the address held by Src.
type LoadInst struct {
	Dst VarId
	Src Value
}

func (i *LoadInst) Dest() VarId    { return i.Dst }
func (i *LoadInst) String() string { return fmt.Sprintf("%s = load %s", i.Dst, i.Src) }

// StoreInst stores Val to the address held by Dst.
type StoreInst struct {
	Dst Value
	Val Value
}

func (i *StoreInst) Dest() VarId {
	if v, ok := i.Dst.(VarId); ok {
		return v
	}
	return 0
}

func (i *StoreInst) String() string { return fmt.Sprintf("store %s, %s", i.Dst, i.Val) }

// LoadOffsetInst loads a word from Src plus a byte offset.
type LoadOffsetInst struct {
	Dst    VarId
	Src    Value
	Offset Value
}

func (i *LoadOffsetInst) Dest() VarId { return i.Dst }

func (i *LoadOffsetInst) String() string {
	return fmt.Sprintf("%s = load %s + %s", i.Dst, i.Src, i.Offset)
}

// StoreOffsetInst stores Val to Dst plus a byte offset.
type StoreOffsetInst struct {
	Dst    Value
	Val    Value
	Offset Value
}

func (i *StoreOffsetInst) Dest() VarId {
	if v, ok := i.Dst.(VarId); ok {
		return v
	}
	return 0
}

func (i *StoreOffsetInst) String() string {
	return fmt.Sprintf("store %s + %s, %s", i.Dst, i.Offset, i.Val)
}

// RefInst takes the address of a global symbol or a memory variable.
type RefInst struct {
	Dst VarId
	Val RefTarget
}

func (i *RefInst) Dest() VarId    { return i.Dst }
func (i *RefInst) String() string { return fmt.Sprintf("%s = ref %s", i.Dst, i.Val) }

// PtrOffsetInst advances a pointer by Offset elements of the pointee type.
type PtrOffsetInst struct {
	Dst    VarId
	Ptr    VarId
	Offset Value
}

func (i *PtrOffsetInst) Dest() VarId { return i.Dst }

func (i *PtrOffsetInst) String() string {
	return fmt.Sprintf("%s = ptroff %s, %s", i.Dst, i.Ptr, i.Offset)
}

// PhiInst merges the incoming variables of the predecessors.
type PhiInst struct {
	Dst  VarId
	Vars []VarId
}

func (i *PhiInst) Dest() VarId { return i.Dst }

func (i *PhiInst) String() string {
	vars := make([]string, len(i.Vars))
	for n, v := range i.Vars {
		vars[n] = v.String()
	}
	return fmt.Sprintf("%s = phi [%s]", i.Dst, strings.Join(vars, ", "))
}

// Terminator ends a basic block.
type Terminator interface {
	fmt.Stringer
	term()
}

// Br jumps unconditionally.
type Br struct {
	Target BlockId
}

func (*Br) term()            {}
func (b *Br) String() string { return fmt.Sprintf("br %s", b.Target) }

// BrCond branches on a boolean variable.
type BrCond struct {
	Cond  VarId
	True  BlockId
	False BlockId
}

func (*BrCond) term() {}

func (b *BrCond) String() string {
	return fmt.Sprintf("brcond %s, %s, %s", b.Cond, b.True, b.False)
}

// Return leaves the function, optionally with a value.
type Return struct {
	Val *VarId
}

func (*Return) term() {}

func (r *Return) String() string {
	if r.Val != nil {
		return fmt.Sprintf("ret %s", *r.Val)
	}
	return "ret"
}

// Unreachable marks a block upstream passes should have removed.
type Unreachable struct{}

func (Unreachable) term()          {}
func (Unreachable) String() string { return "unreachable" }

// Undefined marks a block whose terminator was never filled in.
type Undefined struct{}

func (Undefined) term()          {}
func (Undefined) String() string { return "undefined" }

// BasicBlk is a basic block: instructions plus one terminator.
type BasicBlk struct {
	ID    BlockId
	Insts []Inst
	Term  Terminator
}

// Variable is a function-local variable. Memory-resident variables live in
// the stack frame and are addressed, never register-bound.
type Variable struct {
	Ty       Ty
	IsMemory bool
}

// Size returns the frame size the variable occupies in bytes.
func (v *Variable) Size() int { return v.Ty.Size() }

// Function is a MIR function: a signature plus blocks and variables.
type Function struct {
	Name   string
	Ty     *FnTy
	Blocks map[BlockId]*BasicBlk
	Vars   map[VarId]*Variable
}

// NewFunction creates an empty function with the given signature.
func NewFunction(name string, ty *FnTy) *Function {
	return &Function{
		Name:   name,
		Ty:     ty,
		Blocks: make(map[BlockId]*BasicBlk),
		Vars:   make(map[VarId]*Variable),
	}
}

// GlobalValue is a named package-level value.
type GlobalValue struct {
	Name string
	Ty   Ty
	Init []int32
}

// Package is a compiled MIR translation unit.
type Package struct {
	Funcs        map[string]*Function
	GlobalValues map[string]*GlobalValue
}

// NewPackage creates an empty package.
func NewPackage() *Package {
	return &Package{
		Funcs:        make(map[string]*Function),
		GlobalValues: make(map[string]*GlobalValue),
	}
}
