package disasm

import (
	"testing"

	"github.com/beevik/nes6502/cpu"
)

func TestDisassemble(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreBytes(0x1000, []byte{
		0xa9, 0x5e, // LDA #$5E
		0x8d, 0x00, 0x15, // STA $1500
		0xb5, 0x80, // LDA $80,X
		0x6c, 0xfc, 0xff, // JMP ($FFFC)
		0x91, 0x06, // STA ($06),Y
		0x81, 0x05, // STA ($05,X)
		0x0a,       // ASL A
		0xea,       // NOP
		0xd0, 0xfe, // BNE $1010
		0x90, 0x04, // BCC $1018
		0x02, // illegal
	})

	exp := []struct {
		line string
		next uint16
	}{
		{"LDA #$5E", 0x1002},
		{"STA $1500", 0x1005},
		{"LDA $80,X", 0x1007},
		{"JMP ($FFFC)", 0x100a},
		{"STA ($06),Y", 0x100c},
		{"STA ($05,X)", 0x100e},
		{"ASL A", 0x100f},
		{"NOP", 0x1010},
		{"BNE $1010", 0x1012},
		{"BCC $1018", 0x1014},
		{"???", 0x1015},
	}

	addr := uint16(0x1000)
	for _, e := range exp {
		line, next := Disassemble(mem, addr)
		if line != e.line || next != e.next {
			t.Errorf("$%04X: exp %q next $%04X, got %q next $%04X", addr, e.line, e.next, line, next)
		}
		addr = next
	}
}

func TestGetRegisterString(t *testing.T) {
	r := cpu.Registers{A: 0x01, X: 0x02, Y: 0x03, SP: 0xfd, PC: 0xc000, PS: cpu.Reserved | cpu.Carry}
	exp := "A=01 X=02 Y=03 PS=[nv-bdizC] SP=FD PC=C000"
	if got := GetRegisterString(r); got != exp {
		t.Errorf("exp %q, got %q", exp, got)
	}
}
