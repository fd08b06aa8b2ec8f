// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the 6502 instruction set as found in the 2A03
// processor of the NES. The decimal flag exists but has no effect on
// arithmetic.
//
// A CPU is not safe for concurrent use. Callers that inspect a CPU from
// another goroutine while it runs must provide their own synchronization.
package cpu

// CPU represents a single 6502 CPU. It contains a pointer to the
// memory associated with the CPU.
type CPU struct {
	reg         Registers       // CPU registers
	mem         Memory          // assigned memory
	cycles      uint64          // total executed CPU cycles
	lastPC      uint16          // address of the most recent instruction
	instSet     *InstructionSet // instruction set used by the CPU
	effAddr     uint16          // effective address resolved for the current instruction
	operand     byte            // immediate value or branch offset of the current instruction
	pageCrossed bool
	deltaCycles int
	fault       error      // fatal condition raised by an instruction handler
	halt        *ExecError // set once the CPU has stopped
	debugger    *Debugger
	storeByte   func(cpu *CPU, addr uint16, v byte)
}

// Interrupt vectors
const (
	vectorNMI   = 0xfffa
	vectorReset = 0xfffc
	vectorIRQ   = 0xfffe
)

// Number of cycles consumed entering an interrupt or reset sequence.
const interruptCycles = 7

// Number of operand bytes following the opcode for each addressing mode.
var modeOperandBytes = [...]byte{
	IMM: 1,
	IMP: 0,
	REL: 1,
	ZPG: 1,
	ZPX: 1,
	ZPY: 1,
	ABS: 2,
	ABX: 2,
	ABY: 2,
	IND: 2,
	IDX: 1,
	IDY: 1,
	ACC: 0,
}

// NewCPU creates an emulated 6502 CPU bound to the specified memory. All
// registers and the cycle counter start at zero; call Reset to load the
// program counter from the reset vector.
func NewCPU(m Memory) *CPU {
	return &CPU{
		mem:       m,
		instSet:   GetInstructionSet(),
		storeByte: (*CPU).storeByteNormal,
	}
}

// Registers returns a copy of the current register contents.
func (cpu *CPU) Registers() Registers {
	return cpu.reg
}

// Mem returns the memory the CPU is bound to.
func (cpu *CPU) Mem() Memory {
	return cpu.mem
}

// Cycles returns the total number of cycles executed since the CPU was
// created.
func (cpu *CPU) Cycles() uint64 {
	return cpu.cycles
}

// LastPC returns the address of the most recently executed instruction.
func (cpu *CPU) LastPC() uint16 {
	return cpu.lastPC
}

// Halted returns the error that stopped the CPU, or nil if the CPU is able
// to execute instructions.
func (cpu *CPU) Halted() error {
	if cpu.halt == nil {
		return nil
	}
	return cpu.halt
}

// SetPC updates the CPU program counter to 'addr'.
func (cpu *CPU) SetPC(addr uint16) {
	cpu.reg.PC = addr
}

// SetSP updates the stack pointer.
func (cpu *CPU) SetSP(sp byte) {
	cpu.reg.SP = sp
}

// SetA updates the accumulator.
func (cpu *CPU) SetA(v byte) {
	cpu.reg.A = v
}

// SetX updates the X register.
func (cpu *CPU) SetX(v byte) {
	cpu.reg.X = v
}

// SetY updates the Y register.
func (cpu *CPU) SetY(v byte) {
	cpu.reg.Y = v
}

// SetStatus replaces the whole status register. The reserved bit is always
// set and the break bit, which only exists on the stack, is dropped.
func (cpu *CPU) SetStatus(ps Status) {
	cpu.reg.pullPS(byte(ps))
}

// SetFlag sets or clears the status bits in 's'. The reserved bit cannot be
// cleared.
func (cpu *CPU) SetFlag(s Status, on bool) {
	cpu.reg.SetStatus(s, on)
	cpu.reg.PS |= Reserved
}

// Flag returns true if all of the status bits in 's' are set.
func (cpu *CPU) Flag(s Status) bool {
	return cpu.reg.IsSet(s)
}

// GetInstruction returns the instruction opcode at the requested address.
func (cpu *CPU) GetInstruction(addr uint16) *Instruction {
	opcode := cpu.mem.LoadByte(addr)
	return cpu.instSet.Lookup(opcode)
}

// NextAddr returns the address of the next instruction following the
// instruction at addr.
func (cpu *CPU) NextAddr(addr uint16) uint16 {
	return addr + uint16(cpu.GetInstruction(addr).Length)
}

// Step the cpu by one instruction and return the number of cycles it
// consumed. If the instruction cannot be executed, Step returns an
// *ExecError and the CPU halts; further calls return the same error until
// Reset is called.
func (cpu *CPU) Step() (int, error) {
	if cpu.halt != nil {
		return 0, cpu.halt
	}

	// Grab the next opcode at the current PC
	pc := cpu.reg.PC
	inst := cpu.instSet.Lookup(cpu.mem.LoadByte(pc))
	if inst.fn == nil {
		return 0, cpu.stop(ErrUnimplementedOpcode, inst, pc)
	}

	// Resolve the operand, then advance the PC past the whole instruction
	// so that handlers see the address of the next instruction.
	cpu.lastPC = pc
	if err := cpu.resolve(inst); err != nil {
		return 0, cpu.stop(err, inst, pc)
	}
	cpu.reg.PC = pc + uint16(inst.Length)

	// Execute the instruction
	cpu.deltaCycles = 0
	cpu.fault = nil
	inst.fn(cpu, inst)
	if cpu.fault != nil {
		return 0, cpu.stop(cpu.fault, inst, pc)
	}

	// Update the CPU cycle counter, with special-case logic
	// to handle a page boundary crossing
	cycles := int(inst.Cycles) + cpu.deltaCycles
	if cpu.pageCrossed {
		cycles += int(inst.BPCycles)
	}
	cpu.cycles += uint64(cycles)

	// Update the debugger so it handle breakpoints.
	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.reg.PC)
	}
	return cycles, nil
}

// Reset emulates the reset signal. The stack pointer and status register
// take their power-up values and the program counter is loaded from the
// reset vector. A halted CPU becomes runnable again.
func (cpu *CPU) Reset() {
	cpu.halt = nil
	cpu.reg.SP = 0xfd
	cpu.reg.PS = resetStatus
	cpu.reg.PC = cpu.mem.LoadAddress(vectorReset)
	cpu.cycles += interruptCycles
}

// NMI generates a non-maskable interrupt and returns the number of cycles
// it consumed.
func (cpu *CPU) NMI() int {
	if cpu.halt != nil {
		return 0
	}
	cpu.handleInterrupt(false, vectorNMI)
	cpu.cycles += interruptCycles
	return interruptCycles
}

// IRQ generates a maskable interrupt request. The request is ignored while
// the interrupt disable flag is set, in which case IRQ returns 0.
func (cpu *CPU) IRQ() int {
	if cpu.halt != nil || cpu.reg.IsSet(InterruptDisable) {
		return 0
	}
	cpu.handleInterrupt(false, vectorIRQ)
	cpu.cycles += interruptCycles
	return interruptCycles
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or stores a byte
// to memory.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
}

// Latch a fatal condition. The program counter is left on the offending
// instruction.
func (cpu *CPU) stop(err error, inst *Instruction, pc uint16) error {
	cpu.reg.PC = pc
	cpu.halt = &ExecError{
		Err:    err,
		Opcode: inst.Opcode,
		Mode:   inst.Mode,
		PC:     pc,
		Cycles: cpu.cycles,
	}
	return cpu.halt
}

// Record a fatal condition raised while an instruction handler runs.
func (cpu *CPU) fail(err error) {
	if cpu.fault == nil {
		cpu.fault = err
	}
}

// Resolve the operand of the instruction at lastPC into the effective
// address and operand scratch fields. Registers are not modified.
func (cpu *CPU) resolve(inst *Instruction) error {
	var buf [2]byte
	operand := buf[:inst.Length-1]
	cpu.mem.LoadBytes(cpu.lastPC+1, operand)

	cpu.pageCrossed = false
	switch inst.Mode {
	case IMP, ACC:
	case IMM, REL:
		cpu.operand = operand[0]
	case ZPG:
		cpu.effAddr = operandToAddress(operand)
	case ZPX:
		cpu.effAddr = offsetZeroPage(operand[0], cpu.reg.X)
	case ZPY:
		cpu.effAddr = offsetZeroPage(operand[0], cpu.reg.Y)
	case ABS:
		cpu.effAddr = operandToAddress(operand)
	case ABX:
		cpu.effAddr, cpu.pageCrossed = offsetAddress(operandToAddress(operand), cpu.reg.X)
	case ABY:
		cpu.effAddr, cpu.pageCrossed = offsetAddress(operandToAddress(operand), cpu.reg.Y)
	case IND:
		cpu.effAddr = cpu.mem.LoadAddress(operandToAddress(operand))
	case IDX:
		zpaddr := offsetZeroPage(operand[0], cpu.reg.X)
		cpu.effAddr = cpu.mem.LoadAddress(zpaddr)
	case IDY:
		addr := cpu.mem.LoadAddress(operandToAddress(operand))
		cpu.effAddr, cpu.pageCrossed = offsetAddress(addr, cpu.reg.Y)
	default:
		return ErrInvalidMode
	}
	return nil
}

// Load a byte value using the addressing mode of the current instruction.
func (cpu *CPU) load(mode Mode) byte {
	switch mode {
	case IMM:
		return cpu.operand
	case ACC:
		return cpu.reg.A
	case ZPG, ZPX, ZPY, ABS, ABX, ABY, IDX, IDY:
		return cpu.mem.LoadByte(cpu.effAddr)
	default:
		cpu.fail(ErrInvalidMode)
		return 0
	}
}

// Store a byte value using the addressing mode of the current instruction.
func (cpu *CPU) store(mode Mode, v byte) {
	switch mode {
	case ACC:
		cpu.reg.A = v
	case ZPG, ZPX, ZPY, ABS, ABX, ABY, IDX, IDY:
		cpu.storeByte(cpu, cpu.effAddr, v)
	default:
		cpu.fail(ErrInvalidMode)
	}
}

// Execute a branch using the relative offset of the current instruction.
func (cpu *CPU) branch(inst *Instruction, cond bool) {
	if inst.Mode != REL {
		cpu.fail(ErrInvalidMode)
		return
	}
	if !cond {
		return
	}
	oldPC := cpu.reg.PC
	cpu.reg.PC += uint16(int8(cpu.operand))
	cpu.deltaCycles++
	if ((cpu.reg.PC ^ oldPC) & 0xff00) != 0 {
		cpu.deltaCycles++
	}
}

// Store the byte value 'v' add the address 'addr'.
func (cpu *CPU) storeByteNormal(addr uint16, v byte) {
	cpu.mem.StoreByte(addr, v)
}

// Store the byte value 'v' add the address 'addr'.
func (cpu *CPU) storeByteDebugger(addr uint16, v byte) {
	cpu.debugger.onDataStore(cpu, addr, v)
	cpu.mem.StoreByte(addr, v)
}

// Push a value 'v' onto the stack.
func (cpu *CPU) push(v byte) {
	cpu.storeByte(cpu, stackAddress(cpu.reg.SP), v)
	cpu.reg.SP--
}

// Push the address 'addr' onto the stack.
func (cpu *CPU) pushAddress(addr uint16) {
	cpu.push(byte(addr >> 8))
	cpu.push(byte(addr))
}

// Pop a value from the stack and return it.
func (cpu *CPU) pop() byte {
	cpu.reg.SP++
	return cpu.mem.LoadByte(stackAddress(cpu.reg.SP))
}

// Pop a 16-bit address off the stack.
func (cpu *CPU) popAddress() uint16 {
	lo := cpu.pop()
	hi := cpu.pop()
	return uint16(lo) | (uint16(hi) << 8)
}

// Handle an interrupt by storing the program counter and status flags on
// the stack. Then switch the program counter to the requested address.
func (cpu *CPU) handleInterrupt(brk bool, addr uint16) {
	cpu.pushAddress(cpu.reg.PC)
	cpu.push(cpu.reg.pushPS(brk))
	cpu.reg.SetStatus(InterruptDisable, true)
	cpu.reg.PC = cpu.mem.LoadAddress(addr)
}

// Add 'v' and the carry bit to the accumulator, updating C, V, N and Z.
func (cpu *CPU) addWithCarry(v byte) {
	acc := uint16(cpu.reg.A)
	add := uint16(v)
	sum := acc + add + uint16(boolToByte(cpu.reg.IsSet(Carry)))
	cpu.reg.updateCV(acc, add, sum)
	cpu.reg.A = byte(sum)
	cpu.reg.updateNZ(cpu.reg.A)
}

// Compare register value 'r' against 'v'.
func (cpu *CPU) compare(r, v byte) {
	cpu.reg.SetStatus(Carry, r >= v)
	cpu.reg.updateNZ(r - v)
}

// Add with carry
func (cpu *CPU) adc(inst *Instruction) {
	cpu.addWithCarry(cpu.load(inst.Mode))
}

// Boolean AND
func (cpu *CPU) and(inst *Instruction) {
	cpu.reg.A &= cpu.load(inst.Mode)
	cpu.reg.updateNZ(cpu.reg.A)
}

// Arithmetic Shift Left
func (cpu *CPU) asl(inst *Instruction) {
	v := cpu.load(inst.Mode)
	cpu.reg.SetStatus(Carry, v&0x80 != 0)
	v <<= 1
	cpu.reg.updateNZ(v)
	cpu.store(inst.Mode, v)
}

// Branch if Carry Clear
func (cpu *CPU) bcc(inst *Instruction) {
	cpu.branch(inst, !cpu.reg.IsSet(Carry))
}

// Branch if Carry Set
func (cpu *CPU) bcs(inst *Instruction) {
	cpu.branch(inst, cpu.reg.IsSet(Carry))
}

// Branch if EQual (to zero)
func (cpu *CPU) beq(inst *Instruction) {
	cpu.branch(inst, cpu.reg.IsSet(Zero))
}

// Bit Test
func (cpu *CPU) bit(inst *Instruction) {
	v := cpu.load(inst.Mode)
	cpu.reg.SetStatus(Zero, v&cpu.reg.A == 0)
	cpu.reg.SetStatus(Negative, v&0x80 != 0)
	cpu.reg.SetStatus(Overflow, v&0x40 != 0)
}

// Branch if MInus (negative)
func (cpu *CPU) bmi(inst *Instruction) {
	cpu.branch(inst, cpu.reg.IsSet(Negative))
}

// Branch if Not Equal (not zero)
func (cpu *CPU) bne(inst *Instruction) {
	cpu.branch(inst, !cpu.reg.IsSet(Zero))
}

// Branch if PLus (positive)
func (cpu *CPU) bpl(inst *Instruction) {
	cpu.branch(inst, !cpu.reg.IsSet(Negative))
}

// Break. The byte following BRK is skipped.
func (cpu *CPU) brk(inst *Instruction) {
	cpu.reg.PC++
	cpu.handleInterrupt(true, vectorIRQ)
}

// Branch if oVerflow Clear
func (cpu *CPU) bvc(inst *Instruction) {
	cpu.branch(inst, !cpu.reg.IsSet(Overflow))
}

// Branch if oVerflow Set
func (cpu *CPU) bvs(inst *Instruction) {
	cpu.branch(inst, cpu.reg.IsSet(Overflow))
}

// Clear Carry flag
func (cpu *CPU) clc(inst *Instruction) {
	cpu.reg.SetStatus(Carry, false)
}

// Clear Decimal flag
func (cpu *CPU) cld(inst *Instruction) {
	cpu.reg.SetStatus(Decimal, false)
}

// Clear InterruptDisable flag
func (cpu *CPU) cli(inst *Instruction) {
	cpu.reg.SetStatus(InterruptDisable, false)
}

// Clear oVerflow flag
func (cpu *CPU) clv(inst *Instruction) {
	cpu.reg.SetStatus(Overflow, false)
}

// Compare to accumulator
func (cpu *CPU) cmp(inst *Instruction) {
	cpu.compare(cpu.reg.A, cpu.load(inst.Mode))
}

// Compare to X register
func (cpu *CPU) cpx(inst *Instruction) {
	cpu.compare(cpu.reg.X, cpu.load(inst.Mode))
}

// Compare to Y register
func (cpu *CPU) cpy(inst *Instruction) {
	cpu.compare(cpu.reg.Y, cpu.load(inst.Mode))
}

// Decrement memory value
func (cpu *CPU) dec(inst *Instruction) {
	v := cpu.load(inst.Mode) - 1
	cpu.reg.updateNZ(v)
	cpu.store(inst.Mode, v)
}

// Decrement X register
func (cpu *CPU) dex(inst *Instruction) {
	cpu.reg.X--
	cpu.reg.updateNZ(cpu.reg.X)
}

// Decrement Y register
func (cpu *CPU) dey(inst *Instruction) {
	cpu.reg.Y--
	cpu.reg.updateNZ(cpu.reg.Y)
}

// Boolean XOR
func (cpu *CPU) eor(inst *Instruction) {
	cpu.reg.A ^= cpu.load(inst.Mode)
	cpu.reg.updateNZ(cpu.reg.A)
}

// Increment memory value
func (cpu *CPU) inc(inst *Instruction) {
	v := cpu.load(inst.Mode) + 1
	cpu.reg.updateNZ(v)
	cpu.store(inst.Mode, v)
}

// Increment X register
func (cpu *CPU) inx(inst *Instruction) {
	cpu.reg.X++
	cpu.reg.updateNZ(cpu.reg.X)
}

// Increment Y register
func (cpu *CPU) iny(inst *Instruction) {
	cpu.reg.Y++
	cpu.reg.updateNZ(cpu.reg.Y)
}

// Jump to memory address. The indirect form keeps the NMOS page-wrap
// behavior of LoadAddress: JMP ($12FF) reads its high byte from $1200.
func (cpu *CPU) jmp(inst *Instruction) {
	switch inst.Mode {
	case ABS, IND:
		cpu.reg.PC = cpu.effAddr
	default:
		cpu.fail(ErrInvalidMode)
	}
}

// Jump to subroutine. The address pushed is that of the last byte of the
// JSR instruction; RTS adds one when it returns.
func (cpu *CPU) jsr(inst *Instruction) {
	if inst.Mode != ABS {
		cpu.fail(ErrInvalidMode)
		return
	}
	cpu.pushAddress(cpu.reg.PC - 1)
	cpu.reg.PC = cpu.effAddr
}

// load Accumulator
func (cpu *CPU) lda(inst *Instruction) {
	cpu.reg.A = cpu.load(inst.Mode)
	cpu.reg.updateNZ(cpu.reg.A)
}

// load the X register
func (cpu *CPU) ldx(inst *Instruction) {
	cpu.reg.X = cpu.load(inst.Mode)
	cpu.reg.updateNZ(cpu.reg.X)
}

// load the Y register
func (cpu *CPU) ldy(inst *Instruction) {
	cpu.reg.Y = cpu.load(inst.Mode)
	cpu.reg.updateNZ(cpu.reg.Y)
}

// Logical Shift Right
func (cpu *CPU) lsr(inst *Instruction) {
	v := cpu.load(inst.Mode)
	cpu.reg.SetStatus(Carry, v&1 == 1)
	v >>= 1
	cpu.reg.updateNZ(v)
	cpu.store(inst.Mode, v)
}

// No-operation
func (cpu *CPU) nop(inst *Instruction) {
	// Do nothing
}

// Boolean OR
func (cpu *CPU) ora(inst *Instruction) {
	cpu.reg.A |= cpu.load(inst.Mode)
	cpu.reg.updateNZ(cpu.reg.A)
}

// Push Accumulator
func (cpu *CPU) pha(inst *Instruction) {
	cpu.push(cpu.reg.A)
}

// Push Processor flags
func (cpu *CPU) php(inst *Instruction) {
	cpu.push(cpu.reg.pushPS(true))
}

// Pull (pop) Accumulator
func (cpu *CPU) pla(inst *Instruction) {
	cpu.reg.A = cpu.pop()
	cpu.reg.updateNZ(cpu.reg.A)
}

// Pull (pop) Processor flags
func (cpu *CPU) plp(inst *Instruction) {
	cpu.reg.pullPS(cpu.pop())
}

// Rotate Left
func (cpu *CPU) rol(inst *Instruction) {
	tmp := cpu.load(inst.Mode)
	v := (tmp << 1) | boolToByte(cpu.reg.IsSet(Carry))
	cpu.reg.SetStatus(Carry, tmp&0x80 != 0)
	cpu.reg.updateNZ(v)
	cpu.store(inst.Mode, v)
}

// Rotate Right
func (cpu *CPU) ror(inst *Instruction) {
	tmp := cpu.load(inst.Mode)
	v := (tmp >> 1) | (boolToByte(cpu.reg.IsSet(Carry)) << 7)
	cpu.reg.SetStatus(Carry, tmp&1 != 0)
	cpu.reg.updateNZ(v)
	cpu.store(inst.Mode, v)
}

// Return from Interrupt
func (cpu *CPU) rti(inst *Instruction) {
	cpu.reg.pullPS(cpu.pop())
	cpu.reg.PC = cpu.popAddress()
}

// Return from Subroutine
func (cpu *CPU) rts(inst *Instruction) {
	cpu.reg.PC = cpu.popAddress() + 1
}

// Subtract with Carry. The 6502 subtracts by adding the one's complement.
func (cpu *CPU) sbc(inst *Instruction) {
	cpu.addWithCarry(^cpu.load(inst.Mode))
}

// Set Carry flag
func (cpu *CPU) sec(inst *Instruction) {
	cpu.reg.SetStatus(Carry, true)
}

// Set Decimal flag
func (cpu *CPU) sed(inst *Instruction) {
	cpu.reg.SetStatus(Decimal, true)
}

// Set InterruptDisable flag
func (cpu *CPU) sei(inst *Instruction) {
	cpu.reg.SetStatus(InterruptDisable, true)
}

// Store Accumulator
func (cpu *CPU) sta(inst *Instruction) {
	cpu.store(inst.Mode, cpu.reg.A)
}

// Store X register
func (cpu *CPU) stx(inst *Instruction) {
	cpu.store(inst.Mode, cpu.reg.X)
}

// Store Y register
func (cpu *CPU) sty(inst *Instruction) {
	cpu.store(inst.Mode, cpu.reg.Y)
}

// Transfer Accumulator to X register
func (cpu *CPU) tax(inst *Instruction) {
	cpu.reg.X = cpu.reg.A
	cpu.reg.updateNZ(cpu.reg.X)
}

// Transfer Accumulator to Y register
func (cpu *CPU) tay(inst *Instruction) {
	cpu.reg.Y = cpu.reg.A
	cpu.reg.updateNZ(cpu.reg.Y)
}

// Transfer stack pointer to X register
func (cpu *CPU) tsx(inst *Instruction) {
	cpu.reg.X = cpu.reg.SP
	cpu.reg.updateNZ(cpu.reg.X)
}

// Transfer X register to Accumulator
func (cpu *CPU) txa(inst *Instruction) {
	cpu.reg.A = cpu.reg.X
	cpu.reg.updateNZ(cpu.reg.A)
}

// Transfer X register to the stack pointer
func (cpu *CPU) txs(inst *Instruction) {
	cpu.reg.SP = cpu.reg.X
}

// Transfer Y register to the Accumulator
func (cpu *CPU) tya(inst *Instruction) {
	cpu.reg.A = cpu.reg.Y
	cpu.reg.updateNZ(cpu.reg.A)
}
