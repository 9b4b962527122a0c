package codegen

import (
	"fmt"
	"os"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hyc2026/indigo/pkg/arm"
	"github.com/hyc2026/indigo/pkg/mir"
)

// Codegen lowers one MIR function to ARM instructions over virtual
// registers. All state is private to the function; the only shared write is
// the register-map publish into the extra-data dictionary at the end.
type Codegen struct {
	fn    *mir.Function
	pkg   *mir.Package
	extra *ExtraData

	insts  []arm.Inst
	regMap map[mir.VarId]arm.Reg
	consts map[string]arm.ConstValue

	varUse      map[mir.BlockId]map[mir.VarId]struct{}
	varCollapse map[mir.VarId][]mir.VarId
	stackSpace  map[mir.VarId]int32

	bbOrdering []mir.BlockId
	inlineHint map[mir.BlockId]arm.ConditionCode

	vregGPCounter uint32
	vregVDCounter uint32
	vregVQCounter uint32
	constCounter  uint32

	allowCondExec bool
	verbose       bool

	paramSize int
	stackSize uint32
}

// NewCodegen prepares lowering for one function, resolving the block
// ordering and inline hints from the extra-data dictionary.
func NewCodegen(fn *mir.Function, pkg *mir.Package, extra *ExtraData, options *BackendOptions) *Codegen {
	c := &Codegen{
		fn:          fn,
		pkg:         pkg,
		extra:       extra,
		regMap:      make(map[mir.VarId]arm.Reg),
		consts:      make(map[string]arm.ConstValue),
		varUse:      make(map[mir.BlockId]map[mir.VarId]struct{}),
		varCollapse: make(map[mir.VarId][]mir.VarId),
		stackSpace:  make(map[mir.VarId]int32),
		paramSize:   len(fn.Ty.Params),
	}
	if options != nil {
		c.allowCondExec = options.AllowConditionalExec
		c.verbose = options.Verbose
	}

	if ordering, ok := extra.BlockOrderingFor(fn.Name); ok {
		c.trace("found order map for %s with %d elements", fn.Name, len(ordering))
		c.bbOrdering = append(c.bbOrdering, ordering...)
	} else {
		c.trace("cannot find order map for %s", fn.Name)
		c.bbOrdering = maps.Keys(fn.Blocks)
		slices.Sort(c.bbOrdering)
	}

	if hint, ok := extra.InlineBlksFor(fn.Name); ok {
		c.trace("found inline hint with %d items", len(hint))
		c.inlineHint = hint
	}
	return c
}

func (c *Codegen) trace(format string, args ...any) {
	if c.verbose {
		fmt.Fprintf(os.Stderr, "codegen: "+format+"\n", args...)
	}
}

func (c *Codegen) emit(inst arm.Inst) {
	c.insts = append(c.insts, inst)
}

// TranslateFunction runs the lowering phases in order and returns the ARM
// function. On error the partial output is discarded.
func (c *Codegen) TranslateFunction() (*arm.Function, error) {
	c.initRegMap()
	c.scanStack()
	c.scan()
	c.genStartup()
	for _, id := range c.bbOrdering {
		blk, ok := c.fn.Blocks[id]
		if !ok {
			return nil, fmt.Errorf("codegen: ordering names unknown block %s in %s", id, c.fn.Name)
		}
		if err := c.translateBasicBlock(blk); err != nil {
			return nil, err
		}
	}
	c.genReturnAndCleanup()

	if c.verbose {
		c.trace("variable to reg for %s:", c.fn.Name)
		vars := maps.Keys(c.regMap)
		slices.Sort(vars)
		for _, v := range vars {
			c.trace("  %s -> %s", v, c.regMap[v])
		}
	}

	c.extra.PublishVRegMap(c.fn.Name, c.regMap)

	return &arm.Function{
		Name:      c.fn.Name,
		Ty:        c.fn.Ty,
		Insts:     c.insts,
		Consts:    c.consts,
		StackSize: c.stackSize,
	}, nil
}

// initRegMap pre-binds the first four parameter variables to r0-r3.
func (c *Codegen) initRegMap() {
	for i := 0; i < 4 && i < c.paramSize; i++ {
		c.regMap[mir.VarId(i+1)] = arm.NewReg(arm.GeneralPurpose, uint32(i))
	}
}

// scanStack assigns frame offsets to memory-resident variables, walking in
// ascending variable id so the layout is stable.
func (c *Codegen) scanStack() {
	ids := maps.Keys(c.fn.Vars)
	slices.Sort(ids)
	for _, id := range ids {
		v := c.fn.Vars[id]
		if v.IsMemory && v.Ty.Kind() != mir.TyRestParam {
			c.stackSpace[id] = int32(c.stackSize)
			c.stackSize += uint32(v.Size())
		}
	}
}

// scan walks all blocks once, recording per-block definition sets and the
// phi coalescing relation.
func (c *Codegen) scan() {
	ids := maps.Keys(c.fn.Blocks)
	slices.Sort(ids)
	for _, id := range ids {
		blk := c.fn.Blocks[id]
		use := make(map[mir.VarId]struct{})
		for _, inst := range blk.Insts {
			if phi, ok := inst.(*mir.PhiInst); ok {
				c.dealPhi(phi)
			}
			if d := inst.Dest(); d != 0 {
				use[d] = struct{}{}
			}
		}
		c.varUse[id] = use
	}
}

func (c *Codegen) dealPhi(phi *mir.PhiInst) {
	for _, v := range phi.Vars {
		c.varCollapse[v] = append(c.varCollapse[v], phi.Dst)
	}
}

func (c *Codegen) allocVGP() arm.Reg {
	r := arm.NewReg(arm.VirtualGeneralPurpose, c.vregGPCounter)
	c.vregGPCounter++
	return r
}

func (c *Codegen) allocVD() arm.Reg {
	r := arm.NewReg(arm.VirtualDoubleVector, c.vregVDCounter)
	c.vregVDCounter++
	return r
}

func (c *Codegen) allocVQ() arm.Reg {
	r := arm.NewReg(arm.VirtualQuadVector, c.vregVQCounter)
	c.vregVQCounter++
	return r
}

// getOrAllocVGP returns the register holding variable v, materializing
// stack-passed parameters and frame addresses on every use. Those two cases
// are deliberately not memoized: the produced register holds a value loaded
// from, or an address computed against, the fp/sp state at this point, and
// the allocator coalesces
// the redundant loads later.
func (c *Codegen) getOrAllocVGP(v mir.VarId) arm.Reg {
	if v >= 5 && int(v) <= c.paramSize {
		reg := c.allocVGP()
		c.emit(&arm.LoadStoreInst{Op: arm.LdR, Rd: reg, Mem: arm.NewMem(arm.FP, int32(v-5)*4)})
		return reg
	}
	if offset, ok := c.stackSpace[v]; ok {
		reg := c.allocVGP()
		c.emit(&arm.Arith3Inst{Op: arm.Add, Rd: reg, Rn: arm.SP, Op2: arm.Imm(offset)})
		return reg
	}
	if reg, ok := c.regMap[v]; ok {
		return reg
	}
	reg := c.allocVGP()
	c.regMap[v] = reg
	return reg
}

func (c *Codegen) getOrAllocVD(v mir.VarId) arm.Reg {
	if reg, ok := c.regMap[v]; ok {
		return reg
	}
	reg := c.allocVD()
	c.regMap[v] = reg
	return reg
}

func (c *Codegen) getOrAllocVQ(v mir.VarId) arm.Reg {
	if reg, ok := c.regMap[v]; ok {
		return reg
	}
	reg := c.allocVQ()
	c.regMap[v] = reg
	return reg
}

func (c *Codegen) varReg(v mir.VarId) arm.Reg {
	return c.getOrAllocVGP(v)
}

// valueToOperand2 translates a value into a flexible second operand,
// materializing immediates that the rotated-immediate encoding cannot hold.
func (c *Codegen) valueToOperand2(v mir.Value) (arm.Operand2, error) {
	switch x := v.(type) {
	case mir.Imm:
		if arm.IsValidImmediate(int32(x)) {
			return arm.Imm(x), nil
		}
		reg := c.allocVGP()
		c.makeNumber(reg, uint32(x))
		return arm.NewRegOperand(reg), nil
	case mir.VarId:
		return arm.NewRegOperand(c.getOrAllocVGP(x)), nil
	default:
		return nil, ErrUnreachable
	}
}

// valueToReg forces the register form; immediates are always materialized.
func (c *Codegen) valueToReg(v mir.Value) (arm.Reg, error) {
	switch x := v.(type) {
	case mir.Imm:
		reg := c.allocVGP()
		c.makeNumber(reg, uint32(x))
		return reg, nil
	case mir.VarId:
		return c.getOrAllocVGP(x), nil
	default:
		return 0, ErrUnreachable
	}
}

// makeNumber materializes a 32-bit constant: a single mvn when the inverse
// fits in 16 bits, otherwise mov of the low half plus, when the high half is
// non-zero, movt of the high half.
func (c *Codegen) makeNumber(reg arm.Reg, num uint32) {
	if ^num <= 0xffff {
		c.emit(&arm.Arith2Inst{Op: arm.Mvn, Rd: reg, Op2: arm.Imm(int32(^num))})
		return
	}
	c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: reg, Op2: arm.Imm(int32(num & 0xffff))})
	if num > 0xffff {
		c.emit(&arm.Arith2Inst{Op: arm.MovT, Rd: reg, Op2: arm.Imm(int32(num >> 16))})
	}
}

// valueToMem synthesizes a memory operand rooted at a value. Immediate
// bases are not supported.
func (c *Codegen) valueToMem(v mir.Value, offset mir.Value) (arm.MemoryOperand, error) {
	x, ok := v.(mir.VarId)
	if !ok {
		return arm.MemoryOperand{}, &NotImplementedError{"immediate base for memory operand"}
	}
	return c.varToMem(x, offset)
}

// varToMem synthesizes a memory operand rooted at variable v: fp-relative
// for stack-passed parameters, sp-relative for frame locals, otherwise the
// variable's register as base.
func (c *Codegen) varToMem(v mir.VarId, offset mir.Value) (arm.MemoryOperand, error) {
	if v >= 5 && int(v) <= c.paramSize {
		o, ok := offset.(mir.Imm)
		if !ok {
			return arm.MemoryOperand{}, &NotImplementedError{"variable offset on stack-parameter base"}
		}
		return arm.NewMem(arm.FP, int32(v-4)*4+int32(o)), nil
	}
	if local, ok := c.stackSpace[v]; ok {
		o, ok := offset.(mir.Imm)
		if !ok {
			return arm.MemoryOperand{}, &NotImplementedError{"variable offset on frame-local base"}
		}
		return arm.NewMem(arm.SP, local+int32(o)), nil
	}
	base := c.getOrAllocVGP(v)
	switch o := offset.(type) {
	case mir.Imm:
		return arm.NewMem(base, int32(o)), nil
	case mir.VarId:
		return arm.NewMemReg(base, arm.NewRegOperand(c.getOrAllocVGP(o))), nil
	default:
		return arm.MemoryOperand{}, ErrUnreachable
	}
}

// genStartup emits the prologue. Callee-save spills are inserted by
// register allocation, not here.
func (c *Codegen) genStartup() {
	c.emit(&arm.PushPopInst{Op: arm.Push, Regs: []arm.Reg{arm.FP, arm.LR}})
	c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: arm.FP, Op2: arm.NewRegOperand(arm.SP)})
}

// genReturnAndCleanup emits the function-end label and the epilogue. The
// final pop sets pc and returns.
func (c *Codegen) genReturnAndCleanup() {
	c.emit(&arm.LabelInst{Label: arm.FnEndLabel(c.fn.Name)})
	c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: arm.SP, Op2: arm.NewRegOperand(arm.FP)})
	c.emit(&arm.PushPopInst{Op: arm.Pop, Regs: []arm.Reg{arm.FP, arm.PC}})
}

// spliceIndex picks the phi-move insertion point: immediately before the
// first comparison feeding the block's conditional terminator, so the moves
// cannot clobber CPSR between the cmp and the branch; otherwise block end.
func (c *Codegen) spliceIndex(blk *mir.BasicBlk) int {
	br, ok := blk.Term.(*mir.BrCond)
	if !ok {
		return len(blk.Insts)
	}
	for idx, inst := range blk.Insts {
		if op, ok := inst.(*mir.OpInst); ok && op.Op.IsComparison() && op.Dst == br.Cond {
			return idx
		}
	}
	return len(blk.Insts)
}

func (c *Codegen) translateBasicBlock(blk *mir.BasicBlk) error {
	label := arm.BBLabel(c.fn.Name, blk.ID)
	if n := len(c.insts); n > 0 {
		if li, ok := c.insts[n-1].(*arm.LabelInst); ok && li.Label == label {
			c.insts = c.insts[:n-1]
		}
	}
	c.emit(&arm.LabelInst{Label: label})

	splice := c.spliceIndex(blk)
	var defined []mir.VarId
	seen := make(map[mir.VarId]bool)
	for idx, inst := range blk.Insts {
		if idx == splice {
			c.emitPhiMove(defined)
		}
		if err := c.translateInst(inst); err != nil {
			return err
		}
		if d := inst.Dest(); d != 0 && !seen[d] {
			seen[d] = true
			defined = append(defined, d)
		}
	}
	if splice == len(blk.Insts) {
		c.emitPhiMove(defined)
	}
	return c.translateBranch(blk)
}

// emitPhiMove splices `mov dest, v` for every coalesce target of each
// variable defined so far in the block.
func (c *Codegen) emitPhiMove(defined []mir.VarId) {
	for _, id := range defined {
		targets := c.varCollapse[id]
		if len(targets) == 0 {
			continue
		}
		for _, dest := range targets {
			destReg := c.getOrAllocVGP(dest)
			c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: destReg, Op2: arm.NewRegOperand(c.varReg(id))})
		}
	}
}

func (c *Codegen) translateInst(inst mir.Inst) error {
	switch x := inst.(type) {
	case *mir.AssignInst:
		return c.translateAssign(x)
	case *mir.OpInst:
		return c.translateOp(x)
	case *mir.CallInst:
		return c.translateCall(x)
	case *mir.LoadInst:
		mem, err := c.valueToMem(x.Src, mir.Imm(0))
		if err != nil {
			return err
		}
		c.emit(&arm.LoadStoreInst{Op: arm.LdR, Rd: c.varReg(x.Dst), Mem: mem})
		return nil
	case *mir.StoreInst:
		val, err := c.valueToReg(x.Val)
		if err != nil {
			return err
		}
		mem, err := c.valueToMem(x.Dst, mir.Imm(0))
		if err != nil {
			return err
		}
		c.emit(&arm.LoadStoreInst{Op: arm.StR, Rd: val, Mem: mem})
		return nil
	case *mir.LoadOffsetInst:
		mem, err := c.valueToMem(x.Src, x.Offset)
		if err != nil {
			return err
		}
		c.emit(&arm.LoadStoreInst{Op: arm.LdR, Rd: c.varReg(x.Dst), Mem: mem})
		return nil
	case *mir.StoreOffsetInst:
		val, err := c.valueToReg(x.Val)
		if err != nil {
			return err
		}
		mem, err := c.valueToMem(x.Dst, x.Offset)
		if err != nil {
			return err
		}
		c.emit(&arm.LoadStoreInst{Op: arm.StR, Rd: val, Mem: mem})
		return nil
	case *mir.RefInst:
		return c.translateRef(x)
	case *mir.PtrOffsetInst:
		return c.translatePtrOffset(x)
	case *mir.PhiInst:
		// Resolved through the coalesce relation; the phi site emits
		// nothing.
		return nil
	default:
		return &UnknownInstructionError{inst}
	}
}

func (c *Codegen) translateAssign(i *mir.AssignInst) error {
	if imm, ok := i.Src.(mir.Imm); ok {
		c.makeNumber(c.varReg(i.Dst), uint32(imm))
		return nil
	}
	op2, err := c.valueToOperand2(i.Src)
	if err != nil {
		return err
	}
	c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: c.varReg(i.Dst), Op2: op2})
	return nil
}

// translateRef takes the address of a global through a PC-relative load
// pair, or degenerates to a move for a variable target:
//
//	ldr rd, =LC
//	add rd, pc, rd
//	LPC:
//	...
//	LC: .word sym-(LPC+4)
func (c *Codegen) translateRef(i *mir.RefInst) error {
	switch t := i.Val.(type) {
	case mir.SymRef:
		constLabel := arm.ConstLabel(c.fn.Name, c.constCounter)
		c.constCounter++
		loadPCLabel := arm.LoadPCLabel(c.fn.Name, c.constCounter)
		c.constCounter++

		c.consts[constLabel] = arm.ConstValue{
			Expr: string(t) + "-(" + loadPCLabel + "+4)",
			Kind: arm.Word,
		}

		reg := c.getOrAllocVGP(i.Dst)
		c.emit(&arm.LoadStoreInst{Op: arm.LdR, Rd: reg, Lit: constLabel})
		c.emit(&arm.Arith3Inst{Op: arm.Add, Rd: reg, Rn: arm.PC, Op2: arm.NewRegOperand(reg)})
		c.emit(&arm.LabelInst{Label: loadPCLabel})
		return nil
	case mir.VarId:
		src := c.getOrAllocVGP(t)
		dst := c.getOrAllocVGP(i.Dst)
		c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: dst, Op2: arm.NewRegOperand(src)})
		return nil
	default:
		return ErrUnreachable
	}
}

// translatePtrOffset scales the offset by the pointee size and adds it to
// the pointer.
func (c *Codegen) translatePtrOffset(i *mir.PtrOffsetInst) error {
	v, ok := c.fn.Vars[i.Ptr]
	if !ok {
		return ErrUnreachable
	}
	ptrTy, ok := v.Ty.(*mir.PtrTy)
	if !ok {
		return ErrUnreachable
	}
	itemSize := int32(ptrTy.Item.Size())

	switch o := i.Offset.(type) {
	case mir.Imm:
		c.emit(&arm.Arith3Inst{
			Op: arm.Add, Rd: c.varReg(i.Dst), Rn: c.varReg(i.Ptr),
			Op2: arm.Imm(int32(o) * itemSize),
		})
		return nil
	case mir.VarId:
		numReg := c.allocVGP()
		reg := c.allocVGP()
		c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: numReg, Op2: arm.Imm(itemSize)})
		c.emit(&arm.Arith3Inst{Op: arm.Mul, Rd: reg, Rn: c.varReg(o), Op2: arm.NewRegOperand(numReg)})
		c.emit(&arm.Arith3Inst{
			Op: arm.Add, Rd: c.varReg(i.Dst), Rn: c.varReg(i.Ptr),
			Op2: arm.NewRegOperand(reg),
		})
		return nil
	default:
		return ErrUnreachable
	}
}

// canReverseParam reports whether an immediate-on-the-left operand pair may
// be swapped for this operation.
func canReverseParam(op mir.Op) bool {
	switch op {
	case mir.Div, mir.Rem, mir.Shl, mir.Shr, mir.ShrA:
		return false
	}
	return true
}

func (c *Codegen) translateOp(i *mir.OpInst) error {
	_, lhsImm := i.LHS.(mir.Imm)
	_, rhsImm := i.RHS.(mir.Imm)
	reverse := lhsImm && !rhsImm && canReverseParam(i.Op)

	lhs, rhs := i.LHS, i.RHS
	if reverse {
		lhs, rhs = rhs, lhs
	}

	switch i.Op {
	case mir.Gt:
		return c.emitCompare(i.Dst, lhs, rhs, arm.Gt, reverse)
	case mir.Lt:
		return c.emitCompare(i.Dst, lhs, rhs, arm.Lt, reverse)
	case mir.Gte:
		return c.emitCompare(i.Dst, lhs, rhs, arm.Ge, reverse)
	case mir.Lte:
		return c.emitCompare(i.Dst, lhs, rhs, arm.Le, reverse)
	case mir.Eq:
		return c.emitCompare(i.Dst, lhs, rhs, arm.Equal, reverse)
	case mir.Neq:
		return c.emitCompare(i.Dst, lhs, rhs, arm.NotEqual, reverse)
	}

	var opcode arm.OpCode
	switch i.Op {
	case mir.Add:
		opcode = arm.Add
	case mir.Sub:
		opcode = arm.Sub
		if reverse {
			opcode = arm.Rsb
		}
	case mir.Mul:
		lhsReg, err := c.valueToReg(lhs)
		if err != nil {
			return err
		}
		rhsReg, err := c.valueToReg(rhs)
		if err != nil {
			return err
		}
		c.emit(&arm.Arith3Inst{Op: arm.Mul, Rd: c.varReg(i.Dst), Rn: lhsReg, Op2: arm.NewRegOperand(rhsReg)})
		return nil
	case mir.Div:
		opcode = arm.SDiv
	case mir.Rem:
		// Mod is a pseudo-instruction eliminated in a later pass.
		opcode = arm.Mod
	case mir.And:
		opcode = arm.And
	case mir.Or:
		opcode = arm.Orr
	case mir.Shl:
		opcode = arm.Lsl
	case mir.Shr:
		opcode = arm.Lsr
	case mir.ShrA:
		opcode = arm.Asr
	default:
		return ErrUnreachable
	}

	lhsReg, err := c.valueToReg(lhs)
	if err != nil {
		return err
	}
	rhsOp2, err := c.valueToOperand2(rhs)
	if err != nil {
		return err
	}
	c.emit(&arm.Arith3Inst{Op: opcode, Rd: c.varReg(i.Dst), Rn: lhsReg, Op2: rhsOp2})
	return nil
}

// emitCompare lowers a comparison into cmp plus a zero/one select. When the
// operands were swapped the condition is replaced by its mirror.
func (c *Codegen) emitCompare(dest mir.VarId, lhs, rhs mir.Value, cond arm.ConditionCode, reversed bool) error {
	if reversed {
		cond = cond.Mirror()
	}
	lhsReg, err := c.valueToReg(lhs)
	if err != nil {
		return err
	}
	rhsOp2, err := c.valueToOperand2(rhs)
	if err != nil {
		return err
	}
	c.emit(&arm.Arith2Inst{Op: arm.Cmp, Rd: lhsReg, Op2: rhsOp2})

	d := c.varReg(dest)
	c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: d, Op2: arm.Imm(0)})
	c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: d, Op2: arm.Imm(1), Cond: cond})
	return nil
}

// translateCall marshals arguments per the AAPCS split (r0-r3, then stack
// in reverse), brackets any stack growth with control markers, and moves r0
// into the destination for non-void callees.
func (c *Codegen) translateCall(i *mir.CallInst) error {
	f, ok := c.pkg.Funcs[i.Func]
	if !ok {
		return &FunctionNotFoundError{i.Func}
	}
	params := f.Ty.Params
	paramCount := len(params)
	if len(params) > 0 && params[len(params)-1].Kind() == mir.TyRestParam {
		// Variable-length parameter list: the actual argument count
		// decides register liveness at the call.
		paramCount = len(i.Args)
	}

	stackArgs := 0
	if paramCount > 4 {
		stackArgs = paramCount - 4
	}

	if stackArgs > 0 {
		c.emit(&arm.Arith3Inst{Op: arm.Sub, Rd: arm.SP, Rn: arm.SP, Op2: arm.Imm(int32(stackArgs) * 4)})
		c.emit(&arm.CtrlInst{Kind: arm.StackOffsetCtrl, StackOffset: int32(stackArgs) * 4})
	}

	for idx := len(i.Args) - 1; idx >= 0; idx-- {
		arg := i.Args[idx]
		if idx < 4 {
			op2, err := c.valueToOperand2(arg)
			if err != nil {
				return err
			}
			c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: arm.NewReg(arm.GeneralPurpose, uint32(idx)), Op2: op2})
		} else {
			reg, err := c.valueToReg(arg)
			if err != nil {
				return err
			}
			c.emit(&arm.LoadStoreInst{Op: arm.StR, Rd: reg, Mem: arm.NewMem(arm.SP, int32(idx-4)*4)})
		}
	}

	c.emit(&arm.BrInst{Op: arm.Bl, Target: f.Name, ParamCnt: paramCount})

	if stackArgs > 0 {
		c.emit(&arm.CtrlInst{Kind: arm.StackOffsetCtrl, StackOffset: -int32(stackArgs) * 4})
		c.emit(&arm.Arith3Inst{Op: arm.Add, Rd: arm.SP, Rn: arm.SP, Op2: arm.Imm(int32(stackArgs) * 4)})
	}

	if f.Ty.Ret.Kind() != mir.TyVoid {
		c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: c.varReg(i.Dst), Op2: arm.NewRegOperand(arm.R0)})
	}
	return nil
}

// matchCompareTail matches the `mov d, #0; mov<cond> d, #1` pair left by
// emitCompare at the end of the emission buffer.
func (c *Codegen) matchCompareTail() (arm.ConditionCode, bool) {
	n := len(c.insts)
	if n < 2 {
		return arm.Always, false
	}
	b1, ok1 := c.insts[n-2].(*arm.Arith2Inst)
	b2, ok2 := c.insts[n-1].(*arm.Arith2Inst)
	if !ok1 || !ok2 || b1.Op != arm.Mov || b2.Op != arm.Mov {
		return arm.Always, false
	}
	if b1.Rd == b2.Rd && b1.Op2 == arm.Imm(0) && b2.Op2 == arm.Imm(1) &&
		b1.Cond == arm.Always && b2.Cond != arm.Always {
		return b2.Cond, true
	}
	return arm.Always, false
}

func (c *Codegen) translateBranch(blk *mir.BasicBlk) error {
	switch t := blk.Term.(type) {
	case *mir.Br:
		c.emit(&arm.BrInst{Op: arm.B, Target: arm.BBLabel(c.fn.Name, t.Target)})
		return nil
	case *mir.BrCond:
		if cond, ok := c.matchCompareTail(); ok {
			// Fuse the compare into the branch: drop the
			// materializing pair and branch on the inverted
			// condition to the false target.
			c.insts = c.insts[:len(c.insts)-2]
			c.emit(&arm.BrInst{Op: arm.B, Target: arm.BBLabel(c.fn.Name, t.False), Cond: cond.Invert()})
			c.emit(&arm.BrInst{Op: arm.B, Target: arm.BBLabel(c.fn.Name, t.True)})
			return nil
		}
		c.emit(&arm.Arith2Inst{Op: arm.Cmp, Rd: c.varReg(t.Cond), Op2: arm.Imm(0)})
		c.emit(&arm.BrInst{Op: arm.B, Target: arm.BBLabel(c.fn.Name, t.False), Cond: arm.Equal})
		c.emit(&arm.BrInst{Op: arm.B, Target: arm.BBLabel(c.fn.Name, t.True)})
		return nil
	case *mir.Return:
		if t.Val != nil {
			c.emit(&arm.Arith2Inst{Op: arm.Mov, Rd: arm.R0, Op2: arm.NewRegOperand(c.varReg(*t.Val))})
		}
		c.emit(&arm.BrInst{Op: arm.B, Target: arm.FnEndLabel(c.fn.Name)})
		return nil
	case mir.Undefined:
		return &UndefinedTerminatorError{Fn: c.fn.Name, Block: blk.ID}
	case mir.Unreachable:
		// Upstream passes discard unreachable blocks; falling through
		// is acceptable if one survives.
		return nil
	default:
		return ErrUnreachable
	}
}
