package mir

import (
	"strings"
	"testing"
)

const maxSrc = `
; smallest interesting program
fn max(int, int) -> int {
  var v3: int
bb0:
  v3 = v1 > v2
  brcond v3, bb1, bb2
bb1:
  ret v1
bb2:
  ret v2
}
`

func TestParseMax(t *testing.T) {
	pkg, err := ParseString(maxSrc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	fn := pkg.Funcs["max"]
	if fn == nil {
		t.Fatal("missing function max")
	}
	if len(fn.Ty.Params) != 2 || fn.Ty.Ret.Kind() != TyInt {
		t.Errorf("wrong signature: %s", fn.Ty)
	}
	if len(fn.Blocks) != 3 {
		t.Fatalf("want 3 blocks, got %d", len(fn.Blocks))
	}

	blk := fn.Blocks[0]
	if len(blk.Insts) != 1 {
		t.Fatalf("bb0 should hold one instruction, got %d", len(blk.Insts))
	}
	op, ok := blk.Insts[0].(*OpInst)
	if !ok || op.Op != Gt || op.Dst != 3 {
		t.Errorf("bad comparison: %v", blk.Insts[0])
	}
	br, ok := blk.Term.(*BrCond)
	if !ok || br.Cond != 3 || br.True != 1 || br.False != 2 {
		t.Errorf("bad brcond: %v", blk.Term)
	}
	ret, ok := fn.Blocks[1].Term.(*Return)
	if !ok || ret.Val == nil || *ret.Val != 1 {
		t.Errorf("bad return: %v", fn.Blocks[1].Term)
	}
}

func TestParseMemoryAndGlobals(t *testing.T) {
	src := `
global table: [8]int

fn f(int) -> void {
  mem v2: [4]int
bb0:
  store v2, v1
  v3 = load v2 + 4
  v4 = ref @table
  v5 = ref v2
  store v2 + 8, 7
  ret
}
`
	pkg, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	g := pkg.GlobalValues["table"]
	if g == nil || g.Ty.Size() != 32 {
		t.Fatalf("bad global: %+v", g)
	}

	fn := pkg.Funcs["f"]
	v2 := fn.Vars[2]
	if v2 == nil || !v2.IsMemory || v2.Size() != 16 {
		t.Fatalf("bad memory variable: %+v", v2)
	}

	insts := fn.Blocks[0].Insts
	if _, ok := insts[0].(*StoreInst); !ok {
		t.Errorf("inst 0: want store, got %v", insts[0])
	}
	lo, ok := insts[1].(*LoadOffsetInst)
	if !ok || lo.Offset != Imm(4) {
		t.Errorf("inst 1: want load with offset 4, got %v", insts[1])
	}
	ref, ok := insts[2].(*RefInst)
	if !ok {
		t.Fatalf("inst 2: want ref, got %v", insts[2])
	}
	if sym, ok := ref.Val.(SymRef); !ok || sym != "table" {
		t.Errorf("inst 2: want global target, got %v", ref.Val)
	}
	if ref2 := insts[3].(*RefInst); ref2.Val != VarId(2) {
		t.Errorf("inst 3: want variable target, got %v", ref2.Val)
	}
	so, ok := insts[4].(*StoreOffsetInst)
	if !ok || so.Offset != Imm(8) || so.Val != Imm(7) {
		t.Errorf("inst 4: want store with offset, got %v", insts[4])
	}
}

func TestParseCallPhiPtroff(t *testing.T) {
	src := `
fn g(*int, ...) -> int {
bb0:
  ret v1
}

fn f(*int) -> int {
bb0:
  v2 = call g(v1, 5, -3)
  v3 = ptroff v1, v2
  v4 = phi [v2, v3]
  v5 = 0x10
  br bb1
bb1:
  ret v4
}
`
	pkg, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	g := pkg.Funcs["g"]
	if g.Ty.Params[1].Kind() != TyRestParam {
		t.Errorf("want rest param, got %s", g.Ty.Params[1])
	}

	insts := pkg.Funcs["f"].Blocks[0].Insts
	call := insts[0].(*CallInst)
	if call.Func != "g" || len(call.Args) != 3 || call.Args[2] != Imm(-3) {
		t.Errorf("bad call: %v", call)
	}
	po := insts[1].(*PtrOffsetInst)
	if po.Ptr != 1 || po.Offset != VarId(2) {
		t.Errorf("bad ptroff: %v", po)
	}
	phi := insts[2].(*PhiInst)
	if len(phi.Vars) != 2 || phi.Vars[0] != 2 || phi.Vars[1] != 3 {
		t.Errorf("bad phi: %v", phi)
	}
	if assign := insts[3].(*AssignInst); assign.Src != Imm(16) {
		t.Errorf("hex immediate: %v", assign.Src)
	}
}

func TestParseErrorsCarryLineNumbers(t *testing.T) {
	cases := []struct {
		src  string
		frag string
	}{
		{"v1 = 2", "outside function"},
		{"fn f() -> int {\nbb0:\n  v1 = $$\n  ret\n}", "line 3"},
		{"fn f() -> int {\nbb0:\n  ret\n", "unterminated"},
		{"fn f() -> int {\nbb0:\nbb1:\n  ret\n}", "no terminator"},
		{"fn f(bogus) -> int {\n}", "unknown type"},
	}
	for _, c := range cases {
		_, err := ParseString(c.src)
		if err == nil || !strings.Contains(err.Error(), c.frag) {
			t.Errorf("source %q: want error containing %q, got %v", c.src, c.frag, err)
		}
	}
}

func TestTypeSizes(t *testing.T) {
	cases := []struct {
		ty   Ty
		size int
	}{
		{IntTy{}, 4},
		{VoidTy{}, 0},
		{&PtrTy{Item: &ArrayTy{Item: IntTy{}, Len: 8}}, 4},
		{&ArrayTy{Item: &ArrayTy{Item: IntTy{}, Len: 2}, Len: 3}, 24},
		{RestParamTy{}, 0},
	}
	for _, c := range cases {
		if got := c.ty.Size(); got != c.size {
			t.Errorf("%s: got size %d, want %d", c.ty, got, c.size)
		}
	}
}
