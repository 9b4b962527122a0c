package arm

import (
	"fmt"
	"math/bits"

	"github.com/hyc2026/indigo/pkg/mir"
)

// RegisterKind discriminates physical registers from the three virtual
// register files.
type RegisterKind uint8

const (
	GeneralPurpose RegisterKind = iota
	VirtualGeneralPurpose
	VirtualDoubleVector
	VirtualQuadVector
)

// Reg is a register reference: a kind tag plus an index. Physical
// general-purpose registers use indices 0-15.
type Reg uint32

const regKindShift = 28

// NewReg builds a register reference of the given kind.
func NewReg(kind RegisterKind, index uint32) Reg {
	return Reg(uint32(kind)<<regKindShift | index&(1<<regKindShift-1))
}

// Kind returns the register's kind tag.
func (r Reg) Kind() RegisterKind { return RegisterKind(r >> regKindShift) }

// Index returns the register's index within its kind.
func (r Reg) Index() uint32 { return uint32(r) & (1<<regKindShift - 1) }

// Physical registers of interest. fp/sp/lr/pc follow the AAPCS numbering.
const (
	R0 Reg = iota
	R1
	R2
	R3
)

const (
	FP Reg = 11
	SP Reg = 13
	LR Reg = 14
	PC Reg = 15
)

var gpNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "fp", "ip", "sp", "lr", "pc",
}

func (r Reg) String() string {
	switch r.Kind() {
	case GeneralPurpose:
		if r.Index() < 16 {
			return gpNames[r.Index()]
		}
		return fmt.Sprintf("r%d", r.Index())
	case VirtualGeneralPurpose:
		return fmt.Sprintf("v%d", r.Index())
	case VirtualDoubleVector:
		return fmt.Sprintf("vd%d", r.Index())
	default:
		return fmt.Sprintf("vq%d", r.Index())
	}
}

// ConditionCode is an ARM condition field.
type ConditionCode uint8

const (
	Always ConditionCode = iota
	Equal
	NotEqual
	Gt
	Lt
	Ge
	Le
)

func (c ConditionCode) String() string {
	switch c {
	case Equal:
		return "eq"
	case NotEqual:
		return "ne"
	case Gt:
		return "gt"
	case Lt:
		return "lt"
	case Ge:
		return "ge"
	case Le:
		return "le"
	default:
		return ""
	}
}

// Invert returns the logically negated condition.
func (c ConditionCode) Invert() ConditionCode {
	switch c {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case Gt:
		return Le
	case Le:
		return Gt
	case Lt:
		return Ge
	case Ge:
		return Lt
	default:
		return Always
	}
}

// Mirror returns the condition matching swapped compare operands.
func (c ConditionCode) Mirror() ConditionCode {
	switch c {
	case Gt:
		return Lt
	case Lt:
		return Gt
	case Ge:
		return Le
	case Le:
		return Ge
	default:
		return c
	}
}

// IsValidImmediate reports whether n fits the data-processing immediate
// encoding: an 8-bit value rotated right by an even amount.
func IsValidImmediate(n int32) bool {
	v := uint32(n)
	for rot := 0; rot < 32; rot += 2 {
		if bits.RotateLeft32(v, rot) <= 0xff {
			return true
		}
	}
	return false
}

// ShiftKind is the barrel-shifter operation applied to a register operand.
type ShiftKind uint8

const (
	ShiftNone ShiftKind = iota
	ShiftLsl
	ShiftLsr
	ShiftAsr
	ShiftRor
)

func (s ShiftKind) String() string {
	switch s {
	case ShiftLsl:
		return "lsl"
	case ShiftLsr:
		return "lsr"
	case ShiftAsr:
		return "asr"
	case ShiftRor:
		return "ror"
	default:
		return ""
	}
}

// Operand2 is the flexible second operand: an encodable immediate or a
// register with an optional shift.
type Operand2 interface {
	fmt.Stringer
	operand2()
}

// Imm is an immediate operand, printed as-is. It is not checked against
// IsValidImmediate; the 16-bit immediates of mov/movt/mvn also use it.
type Imm int32

func (Imm) operand2()        {}
func (i Imm) String() string { return fmt.Sprintf("#%d", int32(i)) }

// RegOperand is a register Operand2 with an optional shift.
type RegOperand struct {
	Reg     Reg
	Shift   ShiftKind
	ShiftBy uint8
}

func (RegOperand) operand2() {}

func (r RegOperand) String() string {
	if r.Shift == ShiftNone {
		return r.Reg.String()
	}
	return fmt.Sprintf("%s, %s #%d", r.Reg, r.Shift, r.ShiftBy)
}

// NewRegOperand wraps a register as an unshifted Operand2.
func NewRegOperand(r Reg) RegOperand { return RegOperand{Reg: r} }

// MemoryAccessKind selects plain, pre-indexed or post-indexed addressing.
type MemoryAccessKind uint8

const (
	AccessNone MemoryAccessKind = iota
	PreIndex
	PostIndex
)

// MemoryOperand is a base register plus either an immediate byte
// displacement or a register offset.
type MemoryOperand struct {
	Base      Reg
	Offset    int32
	OffsetReg *RegOperand
	Kind      MemoryAccessKind
}

// NewMem builds an immediate-displacement memory operand.
func NewMem(base Reg, offset int32) MemoryOperand {
	return MemoryOperand{Base: base, Offset: offset}
}

// NewMemReg builds a register-offset memory operand.
func NewMemReg(base Reg, offset RegOperand) MemoryOperand {
	return MemoryOperand{Base: base, OffsetReg: &offset}
}

func (m MemoryOperand) String() string {
	var inner string
	if m.OffsetReg != nil {
		inner = fmt.Sprintf("[%s, %s]", m.Base, m.OffsetReg)
	} else if m.Offset != 0 || m.Kind != AccessNone {
		inner = fmt.Sprintf("[%s, #%d]", m.Base, m.Offset)
	} else {
		inner = fmt.Sprintf("[%s]", m.Base)
	}
	switch m.Kind {
	case PreIndex:
		return inner + "!"
	case PostIndex:
		return fmt.Sprintf("[%s], #%d", m.Base, m.Offset)
	default:
		return inner
	}
}

// OpCode is an ARM mnemonic. Entries prefixed Pseudo (and Mod) never reach
// the assembler directly; later passes rewrite or strip them.
type OpCode uint8

const (
	Mov OpCode = iota
	Mvn
	MovT
	Cmp
	Add
	Sub
	Rsb
	Mul
	SDiv
	And
	Orr
	Lsl
	Lsr
	Asr
	Mod
	LdR
	StR
	Push
	Pop
	B
	Bl
	PseudoLabel
	PseudoCtrl
)

var opcodeNames = [...]string{
	Mov: "mov", Mvn: "mvn", MovT: "movt", Cmp: "cmp",
	Add: "add", Sub: "sub", Rsb: "rsb", Mul: "mul", SDiv: "sdiv",
	And: "and", Orr: "orr", Lsl: "lsl", Lsr: "lsr", Asr: "asr",
	Mod: "_mod", LdR: "ldr", StR: "str", Push: "push", Pop: "pop",
	B: "b", Bl: "bl", PseudoLabel: "_label", PseudoCtrl: "_ctrl",
}

func (o OpCode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Inst is an emitted ARM instruction.
type Inst interface {
	fmt.Stringer
	Opcode() OpCode
}

// LabelInst is a label definition.
type LabelInst struct {
	Label string
}

func (*LabelInst) Opcode() OpCode   { return PseudoLabel }
func (i *LabelInst) String() string { return i.Label + ":" }

// Arith2Inst is a two-operand data-processing instruction
// (mov/mvn/movt/cmp), optionally condition-coded.
type Arith2Inst struct {
	Op   OpCode
	Rd   Reg
	Op2  Operand2
	Cond ConditionCode
}

func (i *Arith2Inst) Opcode() OpCode { return i.Op }

func (i *Arith2Inst) String() string {
	return fmt.Sprintf("%s%s %s, %s", i.Op, i.Cond, i.Rd, i.Op2)
}

// Arith3Inst is a three-operand data-processing instruction.
type Arith3Inst struct {
	Op  OpCode
	Rd  Reg
	Rn  Reg
	Op2 Operand2
}

func (i *Arith3Inst) Opcode() OpCode { return i.Op }

func (i *Arith3Inst) String() string {
	return fmt.Sprintf("%s %s, %s, %s", i.Op, i.Rd, i.Rn, i.Op2)
}

// LoadStoreInst is ldr/str. When Lit is set the instruction is the
// literal-load form `ldr rd, =Lit`.
type LoadStoreInst struct {
	Op  OpCode
	Rd  Reg
	Mem MemoryOperand
	Lit string
}

func (i *LoadStoreInst) Opcode() OpCode { return i.Op }

func (i *LoadStoreInst) String() string {
	if i.Lit != "" {
		return fmt.Sprintf("%s %s, =%s", i.Op, i.Rd, i.Lit)
	}
	return fmt.Sprintf("%s %s, %s", i.Op, i.Rd, i.Mem)
}

// PushPopInst is push/pop over a register set.
type PushPopInst struct {
	Op   OpCode
	Regs []Reg
}

func (i *PushPopInst) Opcode() OpCode { return i.Op }

func (i *PushPopInst) String() string {
	s := i.Op.String() + " {"
	for n, r := range i.Regs {
		if n > 0 {
			s += ", "
		}
		s += r.String()
	}
	return s + "}"
}

// BrInst is b/bl. ParamCnt carries the callee's argument count for bl so the
// register allocator knows which argument registers are live at the call.
type BrInst struct {
	Op       OpCode
	Target   string
	Cond     ConditionCode
	ParamCnt int
}

func (i *BrInst) Opcode() OpCode { return i.Op }

func (i *BrInst) String() string {
	return fmt.Sprintf("%s%s %s", i.Op, i.Cond, i.Target)
}

// StackOffsetCtrl marks an sp adjustment around a call so later passes can
// rebase sp-relative addressing.
const StackOffsetCtrl = "stack_offset"

// CtrlInst is a control marker, not a machine instruction.
type CtrlInst struct {
	Kind        string
	StackOffset int32
}

func (*CtrlInst) Opcode() OpCode { return PseudoCtrl }

func (i *CtrlInst) String() string {
	return fmt.Sprintf("@ %s %+d", i.Kind, i.StackOffset)
}

// ConstKind is the width of a constant-pool entry.
type ConstKind uint8

const (
	Word ConstKind = iota
	Half
	Byte
)

func (k ConstKind) String() string {
	switch k {
	case Half:
		return ".hword"
	case Byte:
		return ".byte"
	default:
		return ".word"
	}
}

// ConstValue is a constant-pool entry: a literal expression of the given
// width, emitted under its label in the function's literal area.
type ConstValue struct {
	Expr string
	Kind ConstKind
}

// Function is a lowered ARM function over virtual registers.
type Function struct {
	Name      string
	Ty        *mir.FnTy
	Insts     []Inst
	Consts    map[string]ConstValue
	StackSize uint32
}
