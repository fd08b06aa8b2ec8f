// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements a monitor for a console-class 6502 system: a CPU,
// 64K of flat memory, an iNES cartridge loader and a built-in debugger.
//
// Within the host it is possible to load cartridges and raw machine code,
// step and run the CPU under breakpoint control, measure the number of CPU
// cycles elapsed, signal interrupts, dump and modify memory, disassemble
// code and inspect or change CPU registers.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/beevik/cmd"
	"github.com/beevik/nes6502/cpu"
	"github.com/beevik/nes6502/disasm"
	"github.com/beevik/nes6502/ines"
	"github.com/beevik/nes6502/logger"
	"github.com/beevik/prefixtree/v2"
)

var errQuit = errors.New("exiting program")

type displayFlags uint8

const (
	displayRegisters displayFlags = 1 << iota
	displayCycles
	displayAnnotations

	displayAll = displayRegisters | displayCycles | displayAnnotations
)

type state int32

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateStepOverBreakpoint
	stateInterrupted
	stateLimited
	stateHalted
)

// Status flags that may be changed with the register command.
var flagNames = map[string]cpu.Status{
	"n": cpu.Negative,
	"v": cpu.Overflow,
	"d": cpu.Decimal,
	"i": cpu.InterruptDisable,
	"z": cpu.Zero,
	"c": cpu.Carry,
}

// A Host represents a fully emulated 6502 system with 64K of memory and a
// built-in debugger.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	mem         *cpu.FlatMemory
	cpu         *cpu.CPU
	debugger    *cpu.Debugger
	lastCmd     *cmd.Selection
	state       atomic.Int32 // written by Break from other goroutines
	settings    *settings
	annotations map[uint16]string
}

// New creates a new 6502 host environment.
func New() *Host {
	h := &Host{
		output:      bufio.NewWriter(io.Discard),
		settings:    newSettings(),
		annotations: make(map[uint16]string),
	}

	// Create the emulated CPU and memory.
	h.mem = cpu.NewFlatMemory()
	h.cpu = cpu.NewCPU(h.mem)

	// Create a CPU debugger and attach it to the CPU.
	h.debugger = cpu.NewDebugger(debugHandler{host: h})
	h.cpu.AttachDebugger(h.debugger)
	return h
}

// CPU returns the host's emulated CPU.
func (h *Host) CPU() *cpu.CPU {
	return h.cpu
}

// LoadCartridge loads an iNES image into memory and resets the CPU so that
// it starts at the cartridge's reset vector.
func (h *Host) LoadCartridge(filename string) error {
	cart, err := ines.LoadFile(filename)
	if err != nil {
		return err
	}
	if err := cart.Load(h.mem); err != nil {
		return err
	}
	h.cpu.Reset()
	return nil
}

// Execute runs the CPU without the command interpreter for at most 'steps'
// instructions, or until the CPU halts if 'steps' is 0. With trace set,
// each instruction is disassembled to 'w' before it executes. Execute
// returns the number of instructions executed and the error that halted
// the CPU, if any. Break stops the run early.
func (h *Host) Execute(w io.Writer, steps int, trace bool) (int, error) {
	out := bufio.NewWriter(w)
	defer out.Flush()

	h.setState(stateRunning)
	defer h.setState(stateProcessingCommands)

	n := 0
	for ; (steps == 0 || n < steps) && h.getState() == stateRunning; n++ {
		if trace {
			line, _ := h.disassemble(h.cpu.Registers().PC, displayRegisters|displayCycles)
			fmt.Fprintln(out, line)
		}
		if _, err := h.cpu.Step(); err != nil {
			logger.Log("cpu", err.Error())
			return n, err
		}
	}
	return n, nil
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println()
	}
	h.displayPC()

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				h.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			case c.Command == nil:
				// A command group without a subcommand.
				h.displayHelp(line)
				continue
			}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}

		h.lastCmd = &c
		handler := c.Command.Data.(func(*Host, cmd.Selection) error)
		if err := handler(h, c); err != nil {
			break
		}
	}
	h.flush()
}

// Break interrupts a running CPU. It is safe to call from any goroutine.
func (h *Host) Break() {
	h.state.CompareAndSwap(int32(stateRunning), int32(stateInterrupted))
}

func (h *Host) getState() state {
	return state(h.state.Load())
}

func (h *Host) setState(s state) {
	h.state.Store(int32(s))
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return strings.TrimSpace(h.input.Text()), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

func (h *Host) displayPC() {
	if h.interactive {
		d, _ := h.disassemble(h.cpu.Registers().PC, displayAll)
		h.println(d)
	}
}

func (h *Host) cmdAnnotate(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c.Command)
		return nil
	}

	addr, err := h.parseAddr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	annotation := strings.Join(c.Args[1:], " ")
	if annotation == "" {
		delete(h.annotations, addr)
		h.printf("Annotation removed at $%04X.\n", addr)
	} else {
		h.annotations[addr] = annotation
		h.printf("Annotation added at $%04X.\n", addr)
	}
	return nil
}

func (h *Host) cmdBreakpointList(c cmd.Selection) error {
	h.println("Addr  Enabled")
	h.println("----- -------")
	for _, b := range h.debugger.GetBreakpoints() {
		h.printf("$%04X %v\n", b.Address, !b.Disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c cmd.Selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at $%04X.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointRemove(c cmd.Selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	if h.debugger.GetBreakpoint(addr) == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}
	h.debugger.RemoveBreakpoint(addr)
	h.printf("Breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointEnable(c cmd.Selection) error {
	return h.enableBreakpoint(c, true)
}

func (h *Host) cmdBreakpointDisable(c cmd.Selection) error {
	return h.enableBreakpoint(c, false)
}

func (h *Host) enableBreakpoint(c cmd.Selection, enable bool) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}
	b.Disabled = !enable
	h.printf("Breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func (h *Host) cmdDataBreakpointList(c cmd.Selection) error {
	h.println("Addr  Enabled  Value")
	h.println("----- -------  -----")
	for _, b := range h.debugger.GetDataBreakpoints() {
		if b.Conditional {
			h.printf("$%04X %-5v    $%02X\n", b.Address, !b.Disabled, b.Value)
		} else {
			h.printf("$%04X %-5v    <none>\n", b.Address, !b.Disabled)
		}
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c cmd.Selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}

	if len(c.Args) > 1 {
		value, err := h.parseByte(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.debugger.AddConditionalDataBreakpoint(addr, value)
		h.printf("Conditional data breakpoint added at $%04X for value $%02X.\n", addr, value)
	} else {
		h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at $%04X.\n", addr)
	}
	return nil
}

func (h *Host) cmdDataBreakpointRemove(c cmd.Selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	if h.debugger.GetDataBreakpoint(addr) == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}
	h.debugger.RemoveDataBreakpoint(addr)
	h.printf("Data breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c cmd.Selection) error {
	return h.enableDataBreakpoint(c, true)
}

func (h *Host) cmdDataBreakpointDisable(c cmd.Selection) error {
	return h.enableDataBreakpoint(c, false)
}

func (h *Host) enableDataBreakpoint(c cmd.Selection, enable bool) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}
	b.Disabled = !enable
	h.printf("Data breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint16
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextDisasmAddr
		if addr == 0 {
			addr = h.cpu.Registers().PC
		}
	default:
		a, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	lines := h.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := h.parseCount(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = l
	}

	for i := 0; i < lines; i++ {
		d, next := h.disassemble(addr, displayAnnotations)
		h.println(d)
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.displayTopics(helpTopics)
		return nil
	}
	h.displayHelp(strings.Join(c.Args, " "))
	return nil
}

func (h *Host) cmdInterruptNMI(c cmd.Selection) error {
	if h.cpu.NMI() == 0 {
		h.println("CPU is halted.")
		return nil
	}
	h.printf("NMI taken, PC=$%04X.\n", h.cpu.Registers().PC)
	h.displayPC()
	return nil
}

func (h *Host) cmdInterruptIRQ(c cmd.Selection) error {
	switch {
	case h.cpu.Halted() != nil:
		h.println("CPU is halted.")
	case h.cpu.IRQ() == 0:
		h.println("IRQ ignored, interrupts are disabled.")
	default:
		h.printf("IRQ taken, PC=$%04X.\n", h.cpu.Registers().PC)
		h.displayPC()
	}
	return nil
}

func (h *Host) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c.Command)
		return nil
	}

	filename := c.Args[0]
	if len(c.Args) < 2 {
		if filepath.Ext(filename) == "" {
			filename += ".nes"
		}
		if err := h.LoadCartridge(filename); err != nil {
			h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
			return nil
		}
		h.printf("Loaded '%s', reset to $%04X.\n", filepath.Base(filename), h.cpu.Registers().PC)
		h.settings.NextDisasmAddr = h.cpu.Registers().PC
		return nil
	}

	addr, err := h.parseAddr(c.Args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	code, err := os.ReadFile(filename)
	if err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
		return nil
	}
	if len(code) == 0 || len(code) > 0x10000 {
		h.printf("File '%s' does not fit in memory.\n", filepath.Base(filename))
		return nil
	}

	h.mem.StoreBytes(addr, code)
	h.cpu.SetPC(addr)
	end := addr + uint16(len(code)-1)
	h.printf("Loaded '%s' to $%04X..$%04X.\n", filepath.Base(filename), addr, end)
	logger.Logf("host", "loaded %s to $%04X..$%04X", filepath.Base(filename), addr, end)
	h.settings.NextDisasmAddr = addr
	return nil
}

func (h *Host) cmdLog(c cmd.Selection) error {
	count := 20
	if len(c.Args) > 0 {
		n, err := h.parseCount(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = n
	}
	logger.Tail(h.output, count)
	h.flush()
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint16
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextMemDumpAddr
	default:
		a, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	bytes := h.settings.MemDumpBytes
	if len(c.Args) > 1 {
		n, err := h.parseCount(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		bytes = n
	}

	h.dumpMemory(addr, bytes)
	h.settings.NextMemDumpAddr = addr + uint16(bytes)
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayUsage(c.Command)
		return nil
	}

	addr, err := h.parseAddr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := make([]byte, 0, len(c.Args)-1)
	for _, s := range c.Args[1:] {
		v, err := h.parseByte(s)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		b = append(b, v)
	}
	h.mem.StoreBytes(addr, b)
	h.printf("Memory set at $%04X..$%04X.\n", addr, addr+uint16(len(b)-1))
	return nil
}

func (h *Host) cmdMemoryCopy(c cmd.Selection) error {
	if len(c.Args) < 3 {
		h.displayUsage(c.Command)
		return nil
	}

	var addr [3]uint16
	for i := range addr {
		a, err := h.parseAddr(c.Args[i])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr[i] = a
	}
	dst, begin, end := addr[0], addr[1], addr[2]
	if end < begin {
		h.println("Source range is empty.")
		return nil
	}

	b := make([]byte, int(end)-int(begin)+1)
	h.mem.LoadBytes(begin, b)
	h.mem.StoreBytes(dst, b)
	h.printf("Copied $%04X..$%04X to $%04X.\n", begin, end, dst)
	return nil
}

func (h *Host) cmdOpcodes(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c.Command)
		return nil
	}

	name := strings.ToUpper(c.Args[0])
	insts := cpu.GetInstructionSet().GetInstructions(name)
	if len(insts) == 0 {
		h.printf("Unknown instruction '%s'.\n", c.Args[0])
		return nil
	}

	h.printf("%s opcodes:\n", name)
	h.println("    Opcode  Mode          Length  Cycles")
	for _, inst := range insts {
		cycles := fmt.Sprintf("%d", inst.Cycles)
		if inst.BPCycles > 0 {
			cycles += fmt.Sprintf("+%d", inst.BPCycles)
		}
		h.printf("    $%02X     %-13s %-7d %s\n", inst.Opcode, inst.Mode, inst.Length, cycles)
	}
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errQuit
}

func (h *Host) cmdRegister(c cmd.Selection) error {
	if len(c.Args) == 0 {
		d, _ := h.disassemble(h.cpu.Registers().PC, displayAll)
		h.println(d)
		return nil
	}
	if len(c.Args) < 2 {
		h.displayUsage(c.Command)
		return nil
	}

	key, value := strings.ToLower(c.Args[0]), c.Args[1]
	if flag, ok := flagNames[key]; ok {
		on, err := stringToBool(value)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetFlag(flag, on)
		h.printf("Flag %s set to %v.\n", strings.ToUpper(key), on)
		return nil
	}

	switch key {
	case "a", "x", "y", "sp":
		v, err := h.parseByte(value)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		switch key {
		case "a":
			h.cpu.SetA(v)
		case "x":
			h.cpu.SetX(v)
		case "y":
			h.cpu.SetY(v)
		case "sp":
			h.cpu.SetSP(v)
		}
		h.printf("Register %s set to $%02X.\n", strings.ToUpper(key), v)
	case "pc", ".":
		v, err := h.parseAddr(value)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetPC(v)
		h.settings.NextDisasmAddr = v
		h.printf("Register PC set to $%04X.\n", v)
	default:
		h.printf("Unknown register '%s'.\n", c.Args[0])
	}
	return nil
}

func (h *Host) cmdReset(c cmd.Selection) error {
	h.cpu.Reset()
	pc := h.cpu.Registers().PC
	h.settings.NextDisasmAddr = pc
	h.printf("CPU reset, PC=$%04X.\n", pc)
	logger.Logf("host", "reset to $%04X", pc)
	h.displayPC()
	return nil
}

func (h *Host) cmdRun(c cmd.Selection) error {
	if len(c.Args) > 0 {
		pc, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetPC(pc)
	}

	h.printf("Running from $%04X. Press ctrl-C to break.\n", h.cpu.Registers().PC)

	h.setState(stateRunning)
	h.runUntilStopped()
	h.finishRun()
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()
		return nil
	case 1:
		h.displayUsage(c.Command)
		return nil
	}

	key, value := c.Args[0], strings.Join(c.Args[1:], " ")

	var err error
	switch h.settings.Kind(key) {
	case reflect.Invalid:
		err = fmt.Errorf("setting '%s' not found", key)
	case reflect.Bool:
		var v bool
		v, err = stringToBool(value)
		if err == nil {
			err = h.settings.Set(key, v)
		}
	case reflect.Uint16:
		var v uint16
		v, err = h.parseAddr(value)
		if err == nil {
			err = h.settings.Set(key, v)
		}
	default:
		var v int
		v, err = h.parseCount(value)
		if err == nil {
			err = h.settings.Set(key, v)
		}
	}

	if err == nil {
		h.println("Setting updated.")
	} else {
		h.printf("%v\n", err)
	}
	return nil
}

func (h *Host) cmdStepIn(c cmd.Selection) error {
	return h.stepCount(c, h.step)
}

func (h *Host) cmdStepOver(c cmd.Selection) error {
	return h.stepCount(c, h.stepOver)
}

// Run the step function 'count' times, where the count is an optional
// argument of the command.
func (h *Host) stepCount(c cmd.Selection, step func()) error {
	count := 1
	if len(c.Args) > 0 {
		n, err := h.parseCount(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = n
	}

	h.setState(stateRunning)
	for i := count - 1; i >= 0 && h.getState() == stateRunning; i-- {
		step()
		switch {
		case i == h.settings.MaxStepLines:
			h.println("...")
		case i < h.settings.MaxStepLines:
			h.displayPC()
		}
	}
	h.finishRun()
	return nil
}

func (h *Host) cmdStepOut(c cmd.Selection) error {
	h.setState(stateRunning)
	h.stepOut()
	h.displayPC()
	h.finishRun()
	return nil
}

// Step the CPU by a single instruction. A CPU fault halts the run.
func (h *Host) step() {
	if _, err := h.cpu.Step(); err != nil {
		h.setState(stateHalted)
		h.printf("CPU halted: %v.\n", err)
		logger.Log("cpu", err.Error())
	}
}

// Step the CPU until the run is stopped or the step limit is reached.
func (h *Host) runUntilStopped() {
	limit := h.settings.RunStepLimit
	for n := 0; h.getState() == stateRunning; n++ {
		if limit > 0 && n == limit {
			h.setState(stateLimited)
			h.printf("Step limit of %d reached at $%04X.\n", limit, h.cpu.Registers().PC)
			return
		}
		h.step()
	}
}

func (h *Host) stepOver() {
	pc := h.cpu.Registers().PC

	// JSR instructions need to be handled specially.
	inst := h.cpu.GetInstruction(pc)
	if inst.Name != "JSR" {
		h.step()
		return
	}

	// Place a step-over breakpoint on the instruction following the JSR.
	// Either modify an already existing breakpoint on that instruction, or
	// create a temporary one.
	next := pc + uint16(inst.Length)
	b := h.debugger.GetBreakpoint(next)
	tmpBreakpointCreated := b == nil
	if tmpBreakpointCreated {
		b = h.debugger.AddBreakpoint(next)
	}
	disabled := b.Disabled
	b.StepOver, b.Disabled = true, false

	// Run until interrupted.
	h.runUntilStopped()
	b.StepOver, b.Disabled = false, disabled

	// If we were interrupted by the temporary step-over breakpoint,
	// then continue as normal.
	h.state.CompareAndSwap(int32(stateStepOverBreakpoint), int32(stateRunning))

	if tmpBreakpointCreated {
		h.debugger.RemoveBreakpoint(next)
	}
}

// Step until the current subroutine or interrupt handler returns.
func (h *Host) stepOut() {
	limit := h.settings.RunStepLimit
	depth := 0
	for n := 0; h.getState() == stateRunning; n++ {
		if limit > 0 && n == limit {
			h.setState(stateLimited)
			h.printf("Step limit of %d reached at $%04X.\n", limit, h.cpu.Registers().PC)
			return
		}

		inst := h.cpu.GetInstruction(h.cpu.Registers().PC)
		h.step()
		switch inst.Name {
		case "JSR", "BRK":
			depth++
		case "RTS", "RTI":
			if depth == 0 {
				return
			}
			depth--
		}
	}
}

// Report how a run ended and return to command processing.
func (h *Host) finishRun() {
	if h.getState() == stateInterrupted {
		h.println("Interrupted.")
		h.displayPC()
	}
	h.setState(stateProcessingCommands)
	h.settings.NextDisasmAddr = h.cpu.Registers().PC
}

func (h *Host) onBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	if b.StepOver {
		h.setState(stateStepOverBreakpoint)
		return
	}
	h.setState(stateBreakpoint)
	h.printf("Breakpoint hit at $%04X.\n", b.Address)
	logger.Logf("host", "breakpoint hit at $%04X", b.Address)
	h.displayPC()
}

func (h *Host) onDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.printf("Data breakpoint hit on address $%04X.\n", b.Address)
	logger.Logf("host", "data breakpoint hit on $%04X", b.Address)

	h.setState(stateBreakpoint)

	// The store happens while the instruction executes, so show it too.
	if h.interactive {
		d, _ := h.disassemble(c.LastPC(), displayAnnotations)
		h.println(d)
	}
}

func (h *Host) parseAddr(s string) (uint16, error) {
	v, err := h.parseValue(s, 16)
	return uint16(v), err
}

func (h *Host) parseByte(s string) (byte, error) {
	v, err := h.parseValue(s, 8)
	return byte(v), err
}

func (h *Host) parseCount(s string) (int, error) {
	v, err := h.parseValue(s, 31)
	return int(v), err
}

// Parse an expression argument whose value must fit in 'bits' bits.
func (h *Host) parseValue(s string, bits int) (uint64, error) {
	e := exprEvaluator{hexMode: h.settings.HexMode, resolve: h.resolveIdentifier}
	v, err := e.evaluate(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value '%s': %v", s, err)
	}
	if v < 0 || v >= 1<<bits {
		return 0, fmt.Errorf("value '%s' out of range", s)
	}
	return uint64(v), nil
}

// Register names stand for the register's value. In hex mode a, x and y
// never get here because they read as hex digits.
func (h *Host) resolveIdentifier(id string) (int64, error) {
	r := h.cpu.Registers()
	switch strings.ToLower(id) {
	case "a":
		return int64(r.A), nil
	case "x":
		return int64(r.X), nil
	case "y":
		return int64(r.Y), nil
	case "sp":
		return 0x100 | int64(r.SP), nil
	case "pc", ".":
		return int64(r.PC), nil
	}
	return 0, fmt.Errorf("identifier '%s' not found", id)
}

// Parse the address argument of a command, displaying its usage if the
// argument is missing.
func (h *Host) addrArg(c cmd.Selection) (uint16, bool) {
	if len(c.Args) < 1 {
		h.displayUsage(c.Command)
		return 0, false
	}
	addr, err := h.parseAddr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return 0, false
	}
	return addr, true
}

func (h *Host) disassemble(addr uint16, flags displayFlags) (str string, next uint16) {
	var line string
	line, next = disasm.Disassemble(h.mem, addr)

	b := make([]byte, next-addr)
	h.mem.LoadBytes(addr, b)

	str = fmt.Sprintf("%04X-   %-8s    %-15s", addr, codeString(b), line)

	if (flags & displayRegisters) != 0 {
		str += " " + disasm.GetRegisterString(h.cpu.Registers())
	}

	if (flags & displayCycles) != 0 {
		str += fmt.Sprintf(" C=%d", h.cpu.Cycles())
	}

	if (flags & displayAnnotations) != 0 {
		if anno, ok := h.annotations[addr]; ok {
			str += " ; " + anno
		}
	}

	return strings.TrimRight(str, " "), next
}

func (h *Host) dumpMemory(addr0 uint16, bytes int) {
	if bytes <= 0 {
		return
	}

	addr1 := uint16(min(int(addr0)+bytes-1, 0xffff))

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := int(addr0), 6, 32; a <= int(addr1); a, c1, c2 = a+1, c1+3, c2+1 {
			m := h.mem.LoadByte(uint16(a))
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(strings.TrimRight(string(buf), " "))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := int(addr0) & 0xfff8
	stop := min((int(addr1)+8)&0x1fff8, 0x10000)

	a := start
	for r := start; r < stop; r += 8 {
		addrToBuf(uint16(a), buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= int(addr0) && a <= int(addr1) {
				m := h.mem.LoadByte(uint16(a))
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(strings.TrimRight(string(buf), " "))
	}
}

func (h *Host) displayUsage(c *cmd.Command) {
	if c.Usage != "" {
		h.printf("Syntax: %s\n", c.Usage)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) displayHelp(line string) {
	t, err := helpTopics.find(line)
	switch {
	case errors.Is(err, prefixtree.ErrPrefixAmbiguous):
		h.println("Command is ambiguous.")
	case err != nil || t == nil:
		h.println("Command not found.")
	case t.sub != nil:
		h.displayTopics(t.sub)
	default:
		if t.usage != "" {
			h.printf("Syntax: %s\n\n", t.usage)
		}
		switch {
		case t.description != "":
			h.printf("Description:\n%s\n\n", indentWrap(3, 78, t.description))
		case t.brief != "":
			h.printf("Description:\n%s.\n\n", indentWrap(3, 78, t.brief))
		}
	}
}

func (h *Host) displayTopics(t *topicTree) {
	h.printf("%s:\n", t.title)
	for _, c := range t.topics {
		if c.brief != "" {
			h.printf("    %-15s  %s\n", c.name, c.brief)
		}
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
