package mir

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseFile parses a .mir file into a Package.
func ParseFile(filename string) (*Package, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// ParseString parses MIR text into a Package.
func ParseString(input string) (*Package, error) {
	return Parse(strings.NewReader(input))
}

// Parse reads the textual MIR form:
//
//	global buf: [16]int
//
//	fn max(int, int) -> int {
//	  var v3: int
//	bb0:
//	  v3 = v1 > v2
//	  brcond v3, bb1, bb2
//	bb1:
//	  ret v1
//	bb2:
//	  ret v2
//	}
//
// Parameters become variables v1..vN. Undeclared variables default to int.
func Parse(r io.Reader) (*Package, error) {
	p := &parser{
		scanner: bufio.NewScanner(r),
		pkg:     NewPackage(),
	}
	return p.parse()
}

type parser struct {
	scanner     *bufio.Scanner
	pkg         *Package
	currentFunc *Function
	currentBlk  *BasicBlk
	lineNum     int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.lineNum, fmt.Sprintf(format, args...))
}

func (p *parser) parse() (*Package, error) {
	for p.scanner.Scan() {
		p.lineNum++
		line := strings.TrimSpace(p.scanner.Text())

		// Strip comments
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		var err error
		switch {
		case strings.HasPrefix(line, "global "):
			err = p.parseGlobal(line)
		case strings.HasPrefix(line, "fn "):
			err = p.parseFunctionHeader(line)
		case line == "}":
			err = p.endFunction()
		case p.currentFunc == nil:
			err = p.errorf("statement outside function: %s", line)
		case strings.HasPrefix(line, "var "), strings.HasPrefix(line, "mem "):
			err = p.parseVarDecl(line)
		case strings.HasPrefix(line, "bb") && strings.HasSuffix(line, ":"):
			err = p.startBlock(line)
		default:
			err = p.parseStatement(line)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	if p.currentFunc != nil {
		return nil, p.errorf("unterminated function %s", p.currentFunc.Name)
	}
	return p.pkg, nil
}

// parseGlobal handles `global name: type`.
func (p *parser) parseGlobal(line string) error {
	rest := strings.TrimPrefix(line, "global ")
	name, tyStr, ok := strings.Cut(rest, ":")
	if !ok {
		return p.errorf("invalid global declaration")
	}
	ty, err := p.parseType(strings.TrimSpace(tyStr))
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	p.pkg.GlobalValues[name] = &GlobalValue{Name: name, Ty: ty}
	return nil
}

// parseFunctionHeader handles `fn name(type, ...) -> type {`.
func (p *parser) parseFunctionHeader(line string) error {
	if p.currentFunc != nil {
		return p.errorf("nested function")
	}
	if !strings.HasSuffix(line, "{") {
		return p.errorf("function header must end with '{'")
	}
	line = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "fn "), "{"))

	open := strings.Index(line, "(")
	close := strings.LastIndex(line, ")")
	if open < 0 || close < open {
		return p.errorf("invalid function signature")
	}
	name := strings.TrimSpace(line[:open])
	if name == "" {
		return p.errorf("missing function name")
	}

	var params []Ty
	if paramStr := strings.TrimSpace(line[open+1 : close]); paramStr != "" {
		for _, part := range strings.Split(paramStr, ",") {
			ty, err := p.parseType(strings.TrimSpace(part))
			if err != nil {
				return err
			}
			params = append(params, ty)
		}
	}

	ret := Ty(VoidTy{})
	if arrow := strings.TrimSpace(line[close+1:]); arrow != "" {
		retStr, ok := strings.CutPrefix(arrow, "->")
		if !ok {
			return p.errorf("expected '->' before return type")
		}
		var err error
		ret, err = p.parseType(strings.TrimSpace(retStr))
		if err != nil {
			return err
		}
	}

	fn := NewFunction(name, &FnTy{Params: params, Ret: ret})
	for i, ty := range params {
		fn.Vars[VarId(i+1)] = &Variable{Ty: ty}
	}
	p.pkg.Funcs[name] = fn
	p.currentFunc = fn
	p.currentBlk = nil
	return nil
}

func (p *parser) endFunction() error {
	if p.currentFunc == nil {
		return p.errorf("unexpected '}'")
	}
	if p.currentBlk != nil && p.currentBlk.Term == nil {
		return p.errorf("block %s has no terminator", p.currentBlk.ID)
	}
	p.currentFunc = nil
	p.currentBlk = nil
	return nil
}

// parseVarDecl handles `var vN: type` and `mem vN: type`.
func (p *parser) parseVarDecl(line string) error {
	isMem := strings.HasPrefix(line, "mem ")
	rest := strings.TrimSpace(line[4:])
	varStr, tyStr, ok := strings.Cut(rest, ":")
	if !ok {
		return p.errorf("invalid variable declaration")
	}
	id, err := p.parseVarId(strings.TrimSpace(varStr))
	if err != nil {
		return err
	}
	ty, err := p.parseType(strings.TrimSpace(tyStr))
	if err != nil {
		return err
	}
	p.currentFunc.Vars[id] = &Variable{Ty: ty, IsMemory: isMem}
	return nil
}

func (p *parser) startBlock(line string) error {
	idStr := strings.TrimSuffix(strings.TrimPrefix(line, "bb"), ":")
	n, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return p.errorf("invalid block label %q", line)
	}
	if p.currentBlk != nil && p.currentBlk.Term == nil {
		return p.errorf("block %s has no terminator", p.currentBlk.ID)
	}
	blk := &BasicBlk{ID: BlockId(n)}
	p.currentFunc.Blocks[blk.ID] = blk
	p.currentBlk = blk
	return nil
}

func (p *parser) parseStatement(line string) error {
	if p.currentBlk == nil {
		return p.errorf("instruction outside block: %s", line)
	}
	if p.currentBlk.Term != nil {
		return p.errorf("instruction after terminator: %s", line)
	}

	switch {
	case strings.HasPrefix(line, "br "), strings.HasPrefix(line, "brcond "),
		line == "ret", strings.HasPrefix(line, "ret "),
		line == "unreachable", line == "undefined":
		term, err := p.parseTerminator(line)
		if err != nil {
			return err
		}
		p.currentBlk.Term = term
		return nil
	}

	inst, err := p.parseInstruction(line)
	if err != nil {
		return err
	}
	p.currentBlk.Insts = append(p.currentBlk.Insts, inst)
	return nil
}

func (p *parser) parseTerminator(line string) (Terminator, error) {
	switch {
	case line == "unreachable":
		return Unreachable{}, nil
	case line == "undefined":
		return Undefined{}, nil
	case line == "ret":
		return &Return{}, nil
	case strings.HasPrefix(line, "ret "):
		id, err := p.parseVarId(strings.TrimSpace(line[4:]))
		if err != nil {
			return nil, err
		}
		return &Return{Val: &id}, nil
	case strings.HasPrefix(line, "brcond "):
		parts := strings.Split(strings.TrimPrefix(line, "brcond "), ",")
		if len(parts) != 3 {
			return nil, p.errorf("brcond needs cond and two targets")
		}
		cond, err := p.parseVarId(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		bbTrue, err := p.parseBlockId(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		bbFalse, err := p.parseBlockId(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, err
		}
		return &BrCond{Cond: cond, True: bbTrue, False: bbFalse}, nil
	default:
		target, err := p.parseBlockId(strings.TrimSpace(strings.TrimPrefix(line, "br ")))
		if err != nil {
			return nil, err
		}
		return &Br{Target: target}, nil
	}
}

func (p *parser) parseInstruction(line string) (Inst, error) {
	if strings.HasPrefix(line, "store ") {
		return p.parseStore(strings.TrimPrefix(line, "store "))
	}

	dstStr, expr, ok := strings.Cut(line, "=")
	if !ok {
		return nil, p.errorf("unknown instruction: %s", line)
	}
	dst, err := p.parseVarId(strings.TrimSpace(dstStr))
	if err != nil {
		return nil, err
	}
	expr = strings.TrimSpace(expr)

	switch {
	case strings.HasPrefix(expr, "call "):
		return p.parseCall(dst, strings.TrimPrefix(expr, "call "))
	case strings.HasPrefix(expr, "load "):
		return p.parseLoad(dst, strings.TrimPrefix(expr, "load "))
	case strings.HasPrefix(expr, "ref "):
		return p.parseRef(dst, strings.TrimSpace(strings.TrimPrefix(expr, "ref ")))
	case strings.HasPrefix(expr, "ptroff "):
		return p.parsePtrOffset(dst, strings.TrimPrefix(expr, "ptroff "))
	case strings.HasPrefix(expr, "phi "):
		return p.parsePhi(dst, strings.TrimSpace(strings.TrimPrefix(expr, "phi ")))
	}

	if lhs, op, rhs, ok := splitBinary(expr); ok {
		lhsVal, err := p.parseValue(lhs)
		if err != nil {
			return nil, err
		}
		rhsVal, err := p.parseValue(rhs)
		if err != nil {
			return nil, err
		}
		return &OpInst{Dst: dst, Op: op, LHS: lhsVal, RHS: rhsVal}, nil
	}

	src, err := p.parseValue(expr)
	if err != nil {
		return nil, err
	}
	return &AssignInst{Dst: dst, Src: src}, nil
}

// binaryOps in longest-match-first order.
var binaryOps = []struct {
	tok string
	op  Op
}{
	{">>a", ShrA}, {"<<", Shl}, {">>", Shr},
	{">=", Gte}, {"<=", Lte}, {"==", Eq}, {"!=", Neq},
	{"+", Add}, {"-", Sub}, {"*", Mul}, {"/", Div}, {"%", Rem},
	{"&", And}, {"|", Or}, {">", Gt}, {"<", Lt},
}

// splitBinary splits `a op b`. Operands and operator are space-separated so
// negative immediates stay unambiguous.
func splitBinary(expr string) (string, Op, string, bool) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return "", 0, "", false
	}
	for _, cand := range binaryOps {
		if fields[1] == cand.tok {
			return fields[0], cand.op, fields[2], true
		}
	}
	return "", 0, "", false
}

// parseStore handles `store dst, val` and `store dst + off, val`.
func (p *parser) parseStore(rest string) (Inst, error) {
	dstStr, valStr, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, p.errorf("store needs a destination and a value")
	}
	val, err := p.parseValue(strings.TrimSpace(valStr))
	if err != nil {
		return nil, err
	}
	dstStr = strings.TrimSpace(dstStr)
	if base, offStr, ok := strings.Cut(dstStr, "+"); ok {
		dst, err := p.parseValue(strings.TrimSpace(base))
		if err != nil {
			return nil, err
		}
		off, err := p.parseValue(strings.TrimSpace(offStr))
		if err != nil {
			return nil, err
		}
		return &StoreOffsetInst{Dst: dst, Val: val, Offset: off}, nil
	}
	dst, err := p.parseValue(dstStr)
	if err != nil {
		return nil, err
	}
	return &StoreInst{Dst: dst, Val: val}, nil
}

// parseLoad handles `load src` and `load src + off`.
func (p *parser) parseLoad(dst VarId, rest string) (Inst, error) {
	rest = strings.TrimSpace(rest)
	if base, offStr, ok := strings.Cut(rest, "+"); ok {
		src, err := p.parseValue(strings.TrimSpace(base))
		if err != nil {
			return nil, err
		}
		off, err := p.parseValue(strings.TrimSpace(offStr))
		if err != nil {
			return nil, err
		}
		return &LoadOffsetInst{Dst: dst, Src: src, Offset: off}, nil
	}
	src, err := p.parseValue(rest)
	if err != nil {
		return nil, err
	}
	return &LoadInst{Dst: dst, Src: src}, nil
}

func (p *parser) parseCall(dst VarId, rest string) (Inst, error) {
	open := strings.Index(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return nil, p.errorf("invalid call: %s", rest)
	}
	name := strings.TrimSpace(rest[:open])
	var args []Value
	if argStr := strings.TrimSpace(rest[open+1 : len(rest)-1]); argStr != "" {
		for _, part := range strings.Split(argStr, ",") {
			v, err := p.parseValue(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
	return &CallInst{Dst: dst, Func: name, Args: args}, nil
}

func (p *parser) parseRef(dst VarId, rest string) (Inst, error) {
	if sym, ok := strings.CutPrefix(rest, "@"); ok {
		if sym == "" {
			return nil, p.errorf("empty symbol in ref")
		}
		return &RefInst{Dst: dst, Val: SymRef(sym)}, nil
	}
	id, err := p.parseVarId(rest)
	if err != nil {
		return nil, err
	}
	return &RefInst{Dst: dst, Val: id}, nil
}

func (p *parser) parsePtrOffset(dst VarId, rest string) (Inst, error) {
	ptrStr, offStr, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, p.errorf("ptroff needs a pointer and an offset")
	}
	ptr, err := p.parseVarId(strings.TrimSpace(ptrStr))
	if err != nil {
		return nil, err
	}
	off, err := p.parseValue(strings.TrimSpace(offStr))
	if err != nil {
		return nil, err
	}
	return &PtrOffsetInst{Dst: dst, Ptr: ptr, Offset: off}, nil
}

// parsePhi handles `phi [v1, v2, ...]`.
func (p *parser) parsePhi(dst VarId, rest string) (Inst, error) {
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return nil, p.errorf("phi needs a bracketed variable list")
	}
	var vars []VarId
	for _, part := range strings.Split(rest[1:len(rest)-1], ",") {
		id, err := p.parseVarId(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		vars = append(vars, id)
	}
	return &PhiInst{Dst: dst, Vars: vars}, nil
}

func (p *parser) parseValue(s string) (Value, error) {
	if strings.HasPrefix(s, "v") {
		return p.parseVarId(s)
	}
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return nil, p.errorf("invalid value %q", s)
	}
	return Imm(int32(n)), nil
}

func (p *parser) parseVarId(s string) (VarId, error) {
	numStr, ok := strings.CutPrefix(s, "v")
	if !ok {
		return 0, p.errorf("expected variable, got %q", s)
	}
	n, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil || n == 0 {
		return 0, p.errorf("invalid variable %q", s)
	}
	id := VarId(n)
	if p.currentFunc != nil {
		if _, ok := p.currentFunc.Vars[id]; !ok {
			p.currentFunc.Vars[id] = &Variable{Ty: IntTy{}}
		}
	}
	return id, nil
}

func (p *parser) parseBlockId(s string) (BlockId, error) {
	numStr, ok := strings.CutPrefix(s, "bb")
	if !ok {
		return 0, p.errorf("expected block, got %q", s)
	}
	n, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return 0, p.errorf("invalid block %q", s)
	}
	return BlockId(n), nil
}

func (p *parser) parseType(s string) (Ty, error) {
	switch {
	case s == "int":
		return IntTy{}, nil
	case s == "void":
		return VoidTy{}, nil
	case s == "...":
		return RestParamTy{}, nil
	case strings.HasPrefix(s, "*"):
		item, err := p.parseType(strings.TrimSpace(s[1:]))
		if err != nil {
			return nil, err
		}
		return &PtrTy{Item: item}, nil
	case strings.HasPrefix(s, "["):
		close := strings.Index(s, "]")
		if close < 0 {
			return nil, p.errorf("invalid array type %q", s)
		}
		length, err := strconv.Atoi(strings.TrimSpace(s[1:close]))
		if err != nil || length < 0 {
			return nil, p.errorf("invalid array length in %q", s)
		}
		item, err := p.parseType(strings.TrimSpace(s[close+1:]))
		if err != nil {
			return nil, err
		}
		return &ArrayTy{Item: item, Len: length}, nil
	default:
		return nil, p.errorf("unknown type %q", s)
	}
}
