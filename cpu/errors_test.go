package cpu

import (
	"errors"
	"testing"
)

// Build a CPU whose instruction set assigns 'mode' to 'opcode'.
func newRemappedCPU(opcode byte, mode Mode, code ...byte) *CPU {
	set := *GetInstructionSet()
	set.instructions[opcode].Mode = mode

	mem := NewFlatMemory()
	mem.StoreBytes(0x1000, code)
	c := NewCPU(mem)
	c.instSet = &set
	c.SetPC(0x1000)
	return c
}

func TestInvalidMode(t *testing.T) {
	tests := []struct {
		opcode byte
		mode   Mode
		code   []byte
		exp    string
	}{
		{0x4c, ZPG, []byte{0xa9, 0x01, 0x4c, 0x00, 0x20},
			"cpu: invalid addressing mode (zero page) for opcode $4C at $1002, cycle 2"},
		{0x20, IND, []byte{0xa9, 0x01, 0x20, 0x00, 0x20},
			"cpu: invalid addressing mode (indirect) for opcode $20 at $1002, cycle 2"},
		{0xa5, IMP, []byte{0xa9, 0x01, 0xa5, 0x10},
			"cpu: invalid addressing mode (implied) for opcode $A5 at $1002, cycle 2"},
		{0x85, IMM, []byte{0xa9, 0x01, 0x85, 0x10},
			"cpu: invalid addressing mode (immediate) for opcode $85 at $1002, cycle 2"},
		{0xd0, ABS, []byte{0xa9, 0x01, 0xd0, 0x10},
			"cpu: invalid addressing mode (absolute) for opcode $D0 at $1002, cycle 2"},
	}

	for _, test := range tests {
		c := newRemappedCPU(test.opcode, test.mode, test.code...)
		if _, err := c.Step(); err != nil {
			t.Fatalf("opcode $%02X: first step failed: %v", test.opcode, err)
		}

		_, err := c.Step()
		if !errors.Is(err, ErrInvalidMode) {
			t.Errorf("opcode $%02X: exp ErrInvalidMode, got %v", test.opcode, err)
			continue
		}
		if err.Error() != test.exp {
			t.Errorf("opcode $%02X: error exp: %q, got: %q", test.opcode, test.exp, err.Error())
		}

		var ee *ExecError
		if !errors.As(err, &ee) || ee.Mode != test.mode || ee.Opcode != test.opcode {
			t.Errorf("opcode $%02X: error details incorrect: %+v", test.opcode, ee)
		}
		if pc := c.Registers().PC; pc != 0x1002 {
			t.Errorf("opcode $%02X: PC exp: $1002, got: $%04X", test.opcode, pc)
		}
		if c.Cycles() != 2 {
			t.Errorf("opcode $%02X: cycles exp: 2, got: %d", test.opcode, c.Cycles())
		}
		if c.Halted() == nil {
			t.Errorf("opcode $%02X: CPU not halted", test.opcode)
		}
		if _, again := c.Step(); again != err {
			t.Errorf("opcode $%02X: halted CPU stepped again: %v", test.opcode, again)
		}
	}
}

func TestInvalidModeLeavesStateUntouched(t *testing.T) {
	// STA in immediate mode must not store anywhere.
	c := newRemappedCPU(0x85, IMM, 0xa9, 0x42, 0x85, 0x10)
	c.Step()
	c.Step()
	if v := c.Mem().LoadByte(0x10); v != 0 {
		t.Errorf("memory modified by faulting store: $%02X", v)
	}
	if c.Registers().A != 0x42 {
		t.Errorf("accumulator exp: $42, got: $%02X", c.Registers().A)
	}
}
