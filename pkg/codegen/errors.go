package codegen

import (
	"errors"
	"fmt"

	"github.com/hyc2026/indigo/pkg/mir"
)

// ErrUnreachable marks an impossible state in value or operand translation.
var ErrUnreachable = errors.New("codegen: unreachable value variant")

// FunctionNotFoundError reports a call to a symbol absent from the package.
type FunctionNotFoundError struct {
	Name string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("codegen: call to unknown function %q", e.Name)
}

// NotImplementedError reports an addressing form the selector does not
// support, such as an immediate base or a variable offset over fp/sp.
type NotImplementedError struct {
	What string
}

func (e *NotImplementedError) Error() string {
	return "codegen: not implemented: " + e.What
}

// UndefinedTerminatorError reports a visited block whose terminator was
// never filled in.
type UndefinedTerminatorError struct {
	Fn    string
	Block mir.BlockId
}

func (e *UndefinedTerminatorError) Error() string {
	return fmt.Sprintf("codegen: undefined terminator in %s at %s", e.Fn, e.Block)
}

// UnknownInstructionError reports an instruction variant outside the MIR
// instruction set.
type UnknownInstructionError struct {
	Inst mir.Inst
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("codegen: unknown instruction variant %T", e.Inst)
}
