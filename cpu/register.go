// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Status holds the processor status bits. Each flag occupies a single bit
// so the whole register can be pushed and pulled as one byte.
type Status byte

// Bits assigned to the processor status byte
const (
	Carry            Status = 1 << 0 // C
	Zero             Status = 1 << 1 // Z
	InterruptDisable Status = 1 << 2 // I
	Decimal          Status = 1 << 3 // D
	Break            Status = 1 << 4 // B
	Reserved         Status = 1 << 5 // always reads as 1
	Overflow         Status = 1 << 6 // V
	Negative         Status = 1 << 7 // N
)

// The status register value loaded by a reset.
const resetStatus = Reserved | InterruptDisable

var statusChars = [8]byte{'C', 'Z', 'I', 'D', 'B', '-', 'V', 'N'}

// String returns the status bits as "NV-BDIZC", using upper case letters
// for set flags and lower case letters for clear flags.
func (s Status) String() string {
	var b [8]byte
	for i := 0; i < 8; i++ {
		ch := statusChars[7-i]
		if ch != '-' && s&(1<<(7-i)) == 0 {
			ch += 'a' - 'A'
		}
		b[i] = ch
	}
	return string(b[:])
}

// Registers contains the state of all 6502 registers.
type Registers struct {
	A  byte   // accumulator
	X  byte   // X indexing register
	Y  byte   // Y indexing register
	SP byte   // stack pointer ($100 + SP = stack memory location)
	PC uint16 // program counter
	PS Status // processor status bits
}

// IsSet returns true if every bit in 's' is set in the status register.
func (r *Registers) IsSet(s Status) bool {
	return r.PS&s == s
}

// SetStatus sets the status bits 's' if 'on' is true, otherwise it clears
// them. Bits not named in 's' are left untouched.
func (r *Registers) SetStatus(s Status, on bool) {
	if on {
		r.PS |= s
	} else {
		r.PS &^= s
	}
}

// Update the Zero and Negative flags based on the value of 'v'.
func (r *Registers) updateNZ(v byte) {
	r.SetStatus(Zero, v == 0)
	r.SetStatus(Negative, v&0x80 != 0)
}

// Update the Carry and Overflow flags from the 9-bit result of adding 'a'
// and 'b'. Overflow means both inputs share a sign the sum does not.
func (r *Registers) updateCV(a, b, sum uint16) {
	r.SetStatus(Carry, sum > 0xff)
	r.SetStatus(Overflow, (a^sum)&(b^sum)&0x80 != 0)
}

// pushPS returns the status byte as it appears when written to the stack.
func (r *Registers) pushPS(brk bool) byte {
	ps := r.PS | Reserved
	if brk {
		ps |= Break
	} else {
		ps &^= Break
	}
	return byte(ps)
}

// pullPS restores the status register from a byte pulled off the stack.
// The break bit has no storage in the real register, so it is dropped.
func (r *Registers) pullPS(v byte) {
	r.PS = (Status(v) &^ Break) | Reserved
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
