// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 6502 instruction set
// disassembler.
package disasm

import (
	"fmt"

	"github.com/beevik/nes6502/cpu"
)

// Disassembler formatting for addressing modes
var modeFormat = []string{
	"#$%s",    // IMM
	"%s",      // IMP
	"$%s",     // REL
	"$%s",     // ZPG
	"$%s,X",   // ZPX
	"$%s,Y",   // ZPY
	"$%s",     // ABS
	"$%s,X",   // ABX
	"$%s,Y",   // ABY
	"($%s)",   // IND
	"($%s,X)", // IDX
	"($%s),Y", // IDY
	"A",       // ACC
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of a little-endian operand.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code. Undocumented
// opcodes disassemble as "???" and occupy a single byte.
func Disassemble(m cpu.Memory, addr uint16) (line string, next uint16) {
	opcode := m.LoadByte(addr)
	inst := cpu.GetInstructionSet().Lookup(opcode)
	next = addr + uint16(inst.Length)

	operand := make([]byte, inst.Length-1)
	m.LoadBytes(addr+1, operand)

	switch inst.Mode {
	case cpu.IMP:
		return inst.Name, next
	case cpu.ACC:
		return inst.Name + " A", next
	case cpu.REL:
		// Convert relative offset to absolute address.
		target := next + uint16(int8(operand[0]))
		operand = []byte{byte(target), byte(target >> 8)}
	}

	line = fmt.Sprintf("%s "+modeFormat[inst.Mode], inst.Name, hexString(operand))
	return line, next
}

// GetRegisterString returns a single-line summary of the register
// contents, for example "A=00 X=00 Y=00 PS=[nv-bdIzc] SP=FD PC=C000".
func GetRegisterString(r cpu.Registers) string {
	return fmt.Sprintf("A=%02X X=%02X Y=%02X PS=[%s] SP=%02X PC=%04X",
		r.A, r.X, r.Y, r.PS, r.SP, r.PC)
}
