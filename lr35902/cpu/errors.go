package cpu

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is the cause of every NotImplementedError.
	ErrNotImplemented = errors.New("not implemented")
	// ErrStopped is returned by Step while the CPU is stopped.
	ErrStopped = errors.New("cpu is stopped")
)

// NotImplementedError reports an instruction, or an operand combination of
// it, that has no execution rule.
type NotImplementedError struct {
	Instruction Instruction
	Detail      string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: %v (%s)", e.Instruction, ErrNotImplemented, e.Detail)
}

func (e *NotImplementedError) Unwrap() error {
	return ErrNotImplemented
}

// ExecError is returned by Step when an instruction could not complete. The
// registers, the cycle counter and any journaled memory are left as they were
// before the step.
type ExecError struct {
	PC          uint16
	Instruction Instruction
	Err         error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("0x%04X: %s [0x%02X]: %v", e.PC, e.Instruction, e.Instruction.Opcode, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
