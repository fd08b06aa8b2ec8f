// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrUnimplementedOpcode = errors.New("unimplemented opcode")
	ErrInvalidMode         = errors.New("invalid addressing mode")
)

// An ExecError reports a fatal condition encountered while executing an
// instruction. Once a CPU returns an ExecError it refuses to step again
// until it is reset.
type ExecError struct {
	Err    error  // ErrUnimplementedOpcode or ErrInvalidMode
	Opcode byte   // opcode being executed
	Mode   Mode   // addressing mode of the opcode
	PC     uint16 // address of the opcode
	Cycles uint64 // cycle count when the fault occurred
}

func (e *ExecError) Error() string {
	if errors.Is(e.Err, ErrInvalidMode) {
		return fmt.Sprintf("cpu: %v (%s) for opcode $%02X at $%04X, cycle %d",
			e.Err, e.Mode, e.Opcode, e.PC, e.Cycles)
	}
	return fmt.Sprintf("cpu: %v $%02X at $%04X, cycle %d", e.Err, e.Opcode, e.PC, e.Cycles)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
