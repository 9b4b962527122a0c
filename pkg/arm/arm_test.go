package arm

import (
	"strings"
	"testing"
)

func TestIsValidImmediate(t *testing.T) {
	valid := []int32{0, 1, 255, 256, 0xFF0, 0x3FC00, -16777216} // -16777216 = 0xFF000000
	for _, n := range valid {
		if !IsValidImmediate(n) {
			t.Errorf("%#x should be encodable", uint32(n))
		}
	}
	invalid := []int32{0x101, 0x12345, -1, 0xFFFF, 257}
	for _, n := range invalid {
		if IsValidImmediate(n) {
			t.Errorf("%#x should not be encodable", uint32(n))
		}
	}
}

func TestRegEncoding(t *testing.T) {
	r := NewReg(VirtualGeneralPurpose, 42)
	if r.Kind() != VirtualGeneralPurpose || r.Index() != 42 {
		t.Errorf("round trip failed: kind %d index %d", r.Kind(), r.Index())
	}
	if FP.Kind() != GeneralPurpose || FP.Index() != 11 {
		t.Errorf("fp must be physical r11")
	}

	names := map[Reg]string{
		R0: "r0", FP: "fp", SP: "sp", LR: "lr", PC: "pc",
		NewReg(VirtualGeneralPurpose, 3): "v3",
		NewReg(VirtualDoubleVector, 1):   "vd1",
		NewReg(VirtualQuadVector, 0):     "vq0",
	}
	for r, want := range names {
		if got := r.String(); got != want {
			t.Errorf("Reg(%d): got %q, want %q", uint32(r), got, want)
		}
	}
}

func TestConditionCodes(t *testing.T) {
	inverts := map[ConditionCode]ConditionCode{
		Equal: NotEqual, NotEqual: Equal,
		Gt: Le, Le: Gt, Lt: Ge, Ge: Lt,
	}
	for c, want := range inverts {
		if got := c.Invert(); got != want {
			t.Errorf("%v.Invert(): got %v, want %v", c, got, want)
		}
	}

	mirrors := map[ConditionCode]ConditionCode{
		Gt: Lt, Lt: Gt, Ge: Le, Le: Ge,
		Equal: Equal, NotEqual: NotEqual,
	}
	for c, want := range mirrors {
		if got := c.Mirror(); got != want {
			t.Errorf("%v.Mirror(): got %v, want %v", c, got, want)
		}
	}
}

func TestLabelFormats(t *testing.T) {
	if got := BBLabel("max", 3); got != ".bb_max$3" {
		t.Errorf("BBLabel: %q", got)
	}
	if got := FnEndLabel("max"); got != ".end_max$" {
		t.Errorf("FnEndLabel: %q", got)
	}
	if got := ConstLabel("max", 0); got != ".const_max$0" {
		t.Errorf("ConstLabel: %q", got)
	}
	if got := LoadPCLabel("max", 1); got != ".ld_pc_max$1" {
		t.Errorf("LoadPCLabel: %q", got)
	}
}

func TestInstStrings(t *testing.T) {
	v0 := NewReg(VirtualGeneralPurpose, 0)
	cases := []struct {
		inst Inst
		want string
	}{
		{&Arith2Inst{Op: Mov, Rd: v0, Op2: Imm(5)}, "mov v0, #5"},
		{&Arith2Inst{Op: Mov, Rd: v0, Op2: Imm(1), Cond: Lt}, "movlt v0, #1"},
		{&Arith2Inst{Op: Cmp, Rd: R0, Op2: NewRegOperand(R1)}, "cmp r0, r1"},
		{&Arith3Inst{Op: Add, Rd: v0, Rn: SP, Op2: Imm(8)}, "add v0, sp, #8"},
		{&Arith3Inst{Op: Rsb, Rd: v0, Rn: R0, Op2: Imm(7)}, "rsb v0, r0, #7"},
		{&LoadStoreInst{Op: LdR, Rd: v0, Mem: NewMem(FP, 4)}, "ldr v0, [fp, #4]"},
		{&LoadStoreInst{Op: StR, Rd: v0, Mem: NewMem(SP, 0)}, "str v0, [sp]"},
		{&LoadStoreInst{Op: LdR, Rd: v0, Lit: ".const_f$0"}, "ldr v0, =.const_f$0"},
		{&LoadStoreInst{Op: LdR, Rd: v0, Mem: NewMemReg(R1, NewRegOperand(R2))}, "ldr v0, [r1, r2]"},
		{&PushPopInst{Op: Push, Regs: []Reg{FP, LR}}, "push {fp, lr}"},
		{&PushPopInst{Op: Pop, Regs: []Reg{FP, PC}}, "pop {fp, pc}"},
		{&BrInst{Op: B, Target: ".bb_f$1"}, "b .bb_f$1"},
		{&BrInst{Op: B, Target: ".bb_f$2", Cond: Ge}, "bge .bb_f$2"},
		{&BrInst{Op: Bl, Target: "callee", ParamCnt: 2}, "bl callee"},
		{&LabelInst{Label: ".end_f$"}, ".end_f$:"},
	}
	for _, c := range cases {
		if got := c.inst.String(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestShiftedRegOperand(t *testing.T) {
	op := RegOperand{Reg: R1, Shift: ShiftLsl, ShiftBy: 2}
	if got := op.String(); got != "r1, lsl #2" {
		t.Errorf("shifted operand: %q", got)
	}
}

func TestFunctionListing(t *testing.T) {
	f := &Function{
		Name: "f",
		Insts: []Inst{
			&PushPopInst{Op: Push, Regs: []Reg{FP, LR}},
			&LabelInst{Label: ".bb_f$0"},
			&BrInst{Op: B, Target: ".end_f$"},
		},
		Consts: map[string]ConstValue{
			".const_f$0": {Expr: "g-(.ld_pc_f$1+4)", Kind: Word},
		},
	}
	s := f.String()
	want := "f:\n\tpush {fp, lr}\n.bb_f$0:\n\tb .end_f$\n.const_f$0:\n\t.word g-(.ld_pc_f$1+4)\n"
	if s != want {
		t.Errorf("listing mismatch:\n%q\nwant\n%q", s, want)
	}
	if !strings.HasSuffix(s, "\n") {
		t.Error("listing must end with a newline")
	}
}
