package cpu_test

import (
	"errors"
	"testing"

	"github.com/beevik/nes6502/cpu"
)

func loadCPU(origin uint16, code ...byte) *cpu.CPU {
	mem := cpu.NewFlatMemory()
	c := cpu.NewCPU(mem)
	mem.StoreBytes(origin, code)
	c.SetPC(origin)
	c.SetSP(0xfd)
	return c
}

func stepCPU(t *testing.T, c *cpu.CPU, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if _, err := c.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func runCPU(t *testing.T, steps int, code ...byte) *cpu.CPU {
	t.Helper()
	c := loadCPU(0x1000, code...)
	stepCPU(t, c, steps)
	return c
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if got := c.Registers().PC; got != pc {
		t.Errorf("PC incorrect. exp: $%04X, got: $%04X", pc, got)
	}
}

func expectCycles(t *testing.T, c *cpu.CPU, cycles uint64) {
	t.Helper()
	if c.Cycles() != cycles {
		t.Errorf("Cycles incorrect. exp: %d, got: %d", cycles, c.Cycles())
	}
}

func expectACC(t *testing.T, c *cpu.CPU, acc byte) {
	t.Helper()
	if got := c.Registers().A; got != acc {
		t.Errorf("Accumulator incorrect. exp: $%02X, got: $%02X", acc, got)
	}
}

func expectX(t *testing.T, c *cpu.CPU, x byte) {
	t.Helper()
	if got := c.Registers().X; got != x {
		t.Errorf("X register incorrect. exp: $%02X, got: $%02X", x, got)
	}
}

func expectSP(t *testing.T, c *cpu.CPU, sp byte) {
	t.Helper()
	if got := c.Registers().SP; got != sp {
		t.Errorf("stack pointer incorrect. exp: $%02X, got $%02X", sp, got)
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got := c.Mem().LoadByte(addr)
	if got != v {
		t.Errorf("Memory at $%04X incorrect. exp: $%02X, got: $%02X", addr, v, got)
	}
}

func expectFlags(t *testing.T, c *cpu.CPU, set, clear cpu.Status) {
	t.Helper()
	ps := c.Registers().PS
	if ps&set != set {
		t.Errorf("flags %v expected set, status is %v", set, ps)
	}
	if ps&clear != 0 {
		t.Errorf("flags %v expected clear, status is %v", clear, ps)
	}
}

func TestNewCPU(t *testing.T) {
	c := cpu.NewCPU(cpu.NewFlatMemory())
	if r := c.Registers(); r != (cpu.Registers{}) {
		t.Errorf("registers not zeroed: %+v", r)
	}
	expectCycles(t, c, 0)
	if c.Halted() != nil {
		t.Error("new CPU is halted")
	}
}

func TestAccumulator(t *testing.T) {
	c := runCPU(t, 3,
		0xa9, 0x5e, // LDA #$5E
		0x85, 0x15, // STA $15
		0x8d, 0x00, 0x15, // STA $1500
	)

	expectPC(t, c, 0x1007)
	expectCycles(t, c, 9)
	expectACC(t, c, 0x5e)
	expectMem(t, c, 0x15, 0x5e)
	expectMem(t, c, 0x1500, 0x5e)
}

func TestLoadStoreIncrement(t *testing.T) {
	c := runCPU(t, 3,
		0xa9, 0x05, // LDA #$05
		0x85, 0x10, // STA $10
		0xa2, 0x00, // LDX #$00
		0xe8, // INX
	)
	expectPC(t, c, 0x1006)
	expectCycles(t, c, 7)
	expectACC(t, c, 0x05)
	expectMem(t, c, 0x10, 0x05)
	expectX(t, c, 0x00)
	expectFlags(t, c, cpu.Zero, cpu.Negative)

	stepCPU(t, c, 1)
	expectX(t, c, 0x01)
	expectPC(t, c, 0x1007)
	expectFlags(t, c, 0, cpu.Zero|cpu.Negative)
}

func TestJumpAbsolute(t *testing.T) {
	c := loadCPU(0xfffc, 0x4c, 0x00, 0x10) // JMP $1000
	n, err := c.Step()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("JMP cycles incorrect. exp: 3, got: %d", n)
	}
	expectPC(t, c, 0x1000)
}

func TestBranch(t *testing.T) {
	c := runCPU(t, 2,
		0x18,       // CLC
		0x90, 0x04, // BCC +4
	)
	expectPC(t, c, 0x1007)
	expectCycles(t, c, 5)

	// Not taken
	c = runCPU(t, 2,
		0x38,       // SEC
		0x90, 0x04, // BCC +4
	)
	expectPC(t, c, 0x1003)
	expectCycles(t, c, 4)

	// Backward, onto itself
	c = runCPU(t, 1, 0xd0, 0xfe) // BNE -2
	expectPC(t, c, 0x1000)
	expectCycles(t, c, 3)
}

func TestBranchPageCross(t *testing.T) {
	c := loadCPU(0x10fd, 0x90, 0x04) // BCC +4
	n, err := c.Step()
	if err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x1103)
	if n != 4 {
		t.Errorf("branch cycles incorrect. exp: 4, got: %d", n)
	}
}

func TestLoadFlags(t *testing.T) {
	c := runCPU(t, 1, 0xa9, 0x00) // LDA #$00
	expectFlags(t, c, cpu.Zero, cpu.Negative)

	c = runCPU(t, 1, 0xa9, 0x80) // LDA #$80
	expectFlags(t, c, cpu.Negative, cpu.Zero)
}

func TestStack(t *testing.T) {
	c := loadCPU(0x1000,
		0xa9, 0x11, // LDA #$11
		0x48,       // PHA
		0xa9, 0x12, // LDA #$12
		0x48,       // PHA
		0xa9, 0x13, // LDA #$13
		0x48, // PHA

		0x68,             // PLA
		0x8d, 0x00, 0x20, // STA $2000
		0x68,             // PLA
		0x8d, 0x01, 0x20, // STA $2001
		0x68,             // PLA
		0x8d, 0x02, 0x20, // STA $2002
	)
	c.SetSP(0xff)
	stepCPU(t, c, 6)

	expectSP(t, c, 0xfc)
	expectACC(t, c, 0x13)
	expectMem(t, c, 0x1ff, 0x11)
	expectMem(t, c, 0x1fe, 0x12)
	expectMem(t, c, 0x1fd, 0x13)

	stepCPU(t, c, 6)
	expectACC(t, c, 0x11)
	expectSP(t, c, 0xff)
	expectMem(t, c, 0x2000, 0x13)
	expectMem(t, c, 0x2001, 0x12)
	expectMem(t, c, 0x2002, 0x11)
}

func TestStackWrap(t *testing.T) {
	c := loadCPU(0x1000,
		0xa9, 0x77, // LDA #$77
		0x48, // PHA
		0x68, // PLA
	)
	c.SetSP(0x00)
	stepCPU(t, c, 2)
	expectMem(t, c, 0x100, 0x77)
	expectSP(t, c, 0xff)
	stepCPU(t, c, 1)
	expectSP(t, c, 0x00)
}

func TestSubroutine(t *testing.T) {
	c := loadCPU(0x1000, 0x20, 0x00, 0x20) // JSR $2000
	c.Mem().StoreByte(0x2000, 0x60)        // RTS

	stepCPU(t, c, 1)
	expectPC(t, c, 0x2000)
	expectSP(t, c, 0xfb)
	expectMem(t, c, 0x1fd, 0x10)
	expectMem(t, c, 0x1fc, 0x02)

	stepCPU(t, c, 1)
	expectPC(t, c, 0x1003)
	expectSP(t, c, 0xfd)
	expectCycles(t, c, 12)
}

func TestIndirect(t *testing.T) {
	c := runCPU(t, 14,
		0xa2, 0x80, // LDX #$80
		0xa0, 0x40, // LDY #$40
		0xa9, 0xee, // LDA #$EE
		0x9d, 0x00, 0x20, // STA $2000,X
		0x99, 0x00, 0x20, // STA $2000,Y

		0xa9, 0x11, // LDA #$11
		0x85, 0x06, // STA $06
		0xa9, 0x05, // LDA #$05
		0x85, 0x07, // STA $07
		0xa2, 0x01, // LDX #$01
		0xa0, 0x01, // LDY #$01
		0xa9, 0xbb, // LDA #$BB
		0x81, 0x05, // STA ($05,X)
		0x91, 0x06, // STA ($06),Y
	)
	expectMem(t, c, 0x2080, 0xee)
	expectMem(t, c, 0x2040, 0xee)
	expectMem(t, c, 0x0511, 0xbb)
	expectMem(t, c, 0x0512, 0xbb)
}

func TestIndirectJumpPageWrap(t *testing.T) {
	c := loadCPU(0x1000, 0x6c, 0xff, 0x12) // JMP ($12FF)
	c.Mem().StoreByte(0x12ff, 0x34)
	c.Mem().StoreByte(0x1200, 0x56)
	c.Mem().StoreByte(0x1300, 0x99)

	stepCPU(t, c, 1)
	expectPC(t, c, 0x5634)
	expectCycles(t, c, 5)
}

func TestZeroPageWrap(t *testing.T) {
	c := loadCPU(0x1000,
		0xa2, 0xff, // LDX #$FF
		0xb5, 0x80, // LDA $80,X
		0xa2, 0x00, // LDX #$00
		0xa1, 0xff, // LDA ($FF,X)
	)
	c.Mem().StoreByte(0x7f, 0x42)
	c.Mem().StoreByte(0xff, 0x00)
	c.Mem().StoreByte(0x00, 0x30)
	c.Mem().StoreByte(0x3000, 0x99)

	stepCPU(t, c, 2)
	expectACC(t, c, 0x42)
	stepCPU(t, c, 2)
	expectACC(t, c, 0x99)
}

func TestPageCross(t *testing.T) {
	c := runCPU(t, 5,
		0xa9, 0x55, // LDA #$55		; 2 cycles
		0x8d, 0x01, 0x11, // STA $1101	; 4 cycles
		0xa9, 0x00, // LDA #$00		; 2 cycles
		0xa2, 0xff, // LDX #$FF		; 2 cycles
		0xbd, 0x02, 0x10, // LDA $1002,X	; 5 cycles
	)

	expectPC(t, c, 0x100c)
	expectCycles(t, c, 15)
	expectACC(t, c, 0x55)
	expectMem(t, c, 0x1101, 0x55)
}

func TestStorePageCrossCycles(t *testing.T) {
	c := runCPU(t, 2,
		0xa2, 0xff, // LDX #$FF
		0x9d, 0x02, 0x10, // STA $1002,X
	)
	expectCycles(t, c, 7)
}

func TestAddWithCarry(t *testing.T) {
	c := runCPU(t, 3,
		0x18,       // CLC
		0xa9, 0x50, // LDA #$50
		0x69, 0x50, // ADC #$50
	)
	expectACC(t, c, 0xa0)
	expectFlags(t, c, cpu.Overflow|cpu.Negative, cpu.Carry|cpu.Zero)

	c = runCPU(t, 3,
		0x18,       // CLC
		0xa9, 0xff, // LDA #$FF
		0x69, 0x01, // ADC #$01
	)
	expectACC(t, c, 0x00)
	expectFlags(t, c, cpu.Carry|cpu.Zero, cpu.Overflow|cpu.Negative)

	c = runCPU(t, 3,
		0x38,       // SEC
		0xa9, 0x01, // LDA #$01
		0x69, 0x01, // ADC #$01
	)
	expectACC(t, c, 0x03)
}

func TestSubtractWithCarry(t *testing.T) {
	c := runCPU(t, 3,
		0x38,       // SEC
		0xa9, 0x50, // LDA #$50
		0xe9, 0xb0, // SBC #$B0
	)
	expectACC(t, c, 0xa0)
	expectFlags(t, c, cpu.Overflow|cpu.Negative, cpu.Carry)

	c = runCPU(t, 3,
		0x38,       // SEC
		0xa9, 0x05, // LDA #$05
		0xe9, 0x03, // SBC #$03
	)
	expectACC(t, c, 0x02)
	expectFlags(t, c, cpu.Carry, cpu.Overflow|cpu.Negative|cpu.Zero)

	// Borrow in
	c = runCPU(t, 3,
		0x18,       // CLC
		0xa9, 0x05, // LDA #$05
		0xe9, 0x03, // SBC #$03
	)
	expectACC(t, c, 0x01)
}

func TestDecimalIgnored(t *testing.T) {
	c := runCPU(t, 4,
		0xf8,       // SED
		0x18,       // CLC
		0xa9, 0x09, // LDA #$09
		0x69, 0x01, // ADC #$01
	)
	expectACC(t, c, 0x0a)
	expectFlags(t, c, cpu.Decimal, 0)
}

func TestCompare(t *testing.T) {
	c := runCPU(t, 2,
		0xa9, 0x40, // LDA #$40
		0xc9, 0x40, // CMP #$40
	)
	expectFlags(t, c, cpu.Zero|cpu.Carry, cpu.Negative)

	c = runCPU(t, 2,
		0xa9, 0x40, // LDA #$40
		0xc9, 0x41, // CMP #$41
	)
	expectFlags(t, c, cpu.Negative, cpu.Zero|cpu.Carry)

	c = runCPU(t, 2,
		0xa0, 0x10, // LDY #$10
		0xc0, 0x01, // CPY #$01
	)
	expectFlags(t, c, cpu.Carry, cpu.Zero|cpu.Negative)
}

func TestShiftRotate(t *testing.T) {
	c := runCPU(t, 3,
		0x38,       // SEC
		0xa9, 0x81, // LDA #$81
		0x2a, // ROL A
	)
	expectACC(t, c, 0x03)
	expectFlags(t, c, cpu.Carry, cpu.Zero|cpu.Negative)

	c = runCPU(t, 3,
		0x38,       // SEC
		0xa9, 0x03, // LDA #$03
		0x6a, // ROR A
	)
	expectACC(t, c, 0x81)
	expectFlags(t, c, cpu.Carry|cpu.Negative, cpu.Zero)

	c = runCPU(t, 2,
		0xa9, 0x01, // LDA #$01
		0x4a, // LSR A
	)
	expectACC(t, c, 0x00)
	expectFlags(t, c, cpu.Carry|cpu.Zero, cpu.Negative)

	c = runCPU(t, 3,
		0xa9, 0xc0, // LDA #$C0
		0x85, 0x20, // STA $20
		0x06, 0x20, // ASL $20
	)
	expectMem(t, c, 0x20, 0x80)
	expectACC(t, c, 0xc0)
	expectFlags(t, c, cpu.Carry|cpu.Negative, cpu.Zero)
}

func TestIncDecMemory(t *testing.T) {
	c := loadCPU(0x1000,
		0xe6, 0x10, // INC $10
		0xc6, 0x11, // DEC $11
	)
	c.Mem().StoreByte(0x10, 0xff)
	stepCPU(t, c, 1)
	expectMem(t, c, 0x10, 0x00)
	expectFlags(t, c, cpu.Zero, cpu.Negative)
	stepCPU(t, c, 1)
	expectMem(t, c, 0x11, 0xff)
	expectFlags(t, c, cpu.Negative, cpu.Zero)
}

func TestBit(t *testing.T) {
	c := loadCPU(0x1000,
		0xa9, 0x01, // LDA #$01
		0x24, 0x10, // BIT $10
	)
	c.Mem().StoreByte(0x10, 0xc0)
	stepCPU(t, c, 2)
	expectFlags(t, c, cpu.Zero|cpu.Negative|cpu.Overflow, 0)
	expectACC(t, c, 0x01)
}

func TestTransfers(t *testing.T) {
	c := runCPU(t, 4,
		0xa2, 0x80, // LDX #$80
		0x9a,       // TXS
		0xa2, 0x00, // LDX #$00
		0xba, // TSX
	)
	expectSP(t, c, 0x80)
	expectX(t, c, 0x80)
	expectFlags(t, c, cpu.Negative, cpu.Zero)
}

func TestStatusPushPull(t *testing.T) {
	c := loadCPU(0x1000,
		0x08, // PHP
		0x28, // PLP
	)
	c.SetStatus(cpu.Carry)
	stepCPU(t, c, 1)
	expectMem(t, c, 0x1fd, byte(cpu.Carry|cpu.Break|cpu.Reserved))

	c.Mem().StoreByte(0x1fd, 0xff)
	stepCPU(t, c, 1)
	if ps := c.Registers().PS; ps != 0xff&^cpu.Break {
		t.Errorf("PLP status incorrect. exp: %v, got: %v", 0xff&^cpu.Break, ps)
	}
}

func TestBreakAndReturn(t *testing.T) {
	c := loadCPU(0x1000,
		0x00, 0xea, // BRK, padding
	)
	c.Mem().StoreAddress(0xfffe, 0x3000)
	c.Mem().StoreByte(0x3000, 0x40) // RTI
	c.SetStatus(cpu.Carry)

	n, err := c.Step()
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("BRK cycles incorrect. exp: 7, got: %d", n)
	}
	expectPC(t, c, 0x3000)
	expectSP(t, c, 0xfa)
	expectMem(t, c, 0x1fd, 0x10)
	expectMem(t, c, 0x1fc, 0x02)
	expectMem(t, c, 0x1fb, byte(cpu.Carry|cpu.Break|cpu.Reserved))
	expectFlags(t, c, cpu.InterruptDisable, cpu.Break)

	stepCPU(t, c, 1)
	expectPC(t, c, 0x1002)
	expectSP(t, c, 0xfd)
	expectFlags(t, c, cpu.Carry|cpu.Reserved, cpu.InterruptDisable|cpu.Break)
}

func TestIllegalOpcode(t *testing.T) {
	c := loadCPU(0x1000, 0x02)
	_, err := c.Step()
	if !errors.Is(err, cpu.ErrUnimplementedOpcode) {
		t.Fatalf("expected unimplemented opcode error, got %v", err)
	}
	var e *cpu.ExecError
	if !errors.As(err, &e) {
		t.Fatalf("expected *ExecError, got %T", err)
	}
	if e.PC != 0x1000 || e.Opcode != 0x02 {
		t.Errorf("error context incorrect: %+v", e)
	}

	// The CPU stays halted until reset.
	_, err2 := c.Step()
	if err2 == nil {
		t.Error("halted CPU stepped")
	}
	expectPC(t, c, 0x1000)
	if c.Halted() == nil {
		t.Error("Halted returned nil")
	}
	if c.NMI() != 0 {
		t.Error("halted CPU accepted an NMI")
	}

	c.Reset()
	if c.Halted() != nil {
		t.Error("Reset did not clear the halt")
	}
}

func TestReset(t *testing.T) {
	mem := cpu.NewFlatMemory()
	mem.StoreAddress(0xfffc, 0x8000)
	c := cpu.NewCPU(mem)
	c.SetA(0x12)
	c.Reset()

	expectPC(t, c, 0x8000)
	expectSP(t, c, 0xfd)
	expectACC(t, c, 0x12)
	expectCycles(t, c, 7)
	if ps := c.Registers().PS; ps != cpu.Reserved|cpu.InterruptDisable {
		t.Errorf("reset status incorrect: %v", ps)
	}
}

func TestInterrupts(t *testing.T) {
	c := loadCPU(0x1234)
	c.Mem().StoreAddress(0xfffa, 0x4000)
	c.Mem().StoreAddress(0xfffe, 0x5000)

	c.SetFlag(cpu.InterruptDisable, true)
	if n := c.IRQ(); n != 0 {
		t.Errorf("masked IRQ consumed %d cycles", n)
	}
	expectPC(t, c, 0x1234)

	if n := c.NMI(); n != 7 {
		t.Errorf("NMI cycles incorrect. exp: 7, got: %d", n)
	}
	expectPC(t, c, 0x4000)
	expectSP(t, c, 0xfa)
	expectMem(t, c, 0x1fd, 0x12)
	expectMem(t, c, 0x1fc, 0x34)
	expectMem(t, c, 0x1fb, byte(cpu.InterruptDisable|cpu.Reserved))

	c.SetPC(0x1234)
	c.SetSP(0xfd)
	c.SetFlag(cpu.InterruptDisable, false)
	if n := c.IRQ(); n != 7 {
		t.Errorf("IRQ cycles incorrect. exp: 7, got: %d", n)
	}
	expectPC(t, c, 0x5000)
	expectMem(t, c, 0x1fb, byte(cpu.Reserved))
	expectFlags(t, c, cpu.InterruptDisable, 0)
	expectCycles(t, c, 14)
}

func TestSetFlagKeepsReserved(t *testing.T) {
	c := loadCPU(0x1000)
	c.SetFlag(cpu.Reserved|cpu.Carry, false)
	expectFlags(t, c, cpu.Reserved, cpu.Carry)
	c.SetStatus(cpu.Break)
	expectFlags(t, c, cpu.Reserved, cpu.Break)
}

func TestInstructionSet(t *testing.T) {
	set := cpu.GetInstructionSet()
	legal := 0
	for i := 0; i < 256; i++ {
		inst := set.Lookup(byte(i))
		if inst.Opcode != byte(i) {
			t.Errorf("opcode $%02X stored as $%02X", i, inst.Opcode)
		}
		if !inst.Illegal {
			legal++
		}
	}
	if legal != 151 {
		t.Errorf("documented opcodes incorrect. exp: 151, got: %d", legal)
	}
	if n := len(set.GetInstructions("lda")); n != 8 {
		t.Errorf("LDA variants incorrect. exp: 8, got: %d", n)
	}
}

func TestEveryOpcodeSteps(t *testing.T) {
	set := cpu.GetInstructionSet()
	for i := 0; i < 256; i++ {
		inst := set.Lookup(byte(i))
		if inst.Illegal {
			continue
		}
		c := loadCPU(0x1000, byte(i), 0x00, 0x00)
		n, err := c.Step()
		if err != nil {
			t.Errorf("%s %v ($%02X): %v", inst.Name, inst.Mode, i, err)
			continue
		}
		if n < int(inst.Cycles) {
			t.Errorf("%s ($%02X) consumed %d cycles, table says %d", inst.Name, i, n, inst.Cycles)
		}
	}
}

func TestNextAddr(t *testing.T) {
	c := loadCPU(0x1000, 0xad, 0x00, 0x20, 0xea, 0x02)
	if a := c.NextAddr(0x1000); a != 0x1003 {
		t.Errorf("NextAddr incorrect. exp: $1003, got: $%04X", a)
	}
	if a := c.NextAddr(0x1003); a != 0x1004 {
		t.Errorf("NextAddr incorrect. exp: $1004, got: $%04X", a)
	}
	if !c.GetInstruction(0x1004).Illegal {
		t.Error("opcode $02 should be illegal")
	}
}
