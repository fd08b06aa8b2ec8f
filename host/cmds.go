// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/prefixtree/v2"
)

var (
	cmds       *cmd.Tree
	helpTopics *topicTree
	shortcuts  = make(map[string]string)
)

// A helpTopic mirrors a command or subtree registered with the command
// tree so that the help command can describe it.
type helpTopic struct {
	name        string
	brief       string
	description string
	usage       string
	sub         *topicTree
}

// A topicTree holds the help topics at one level of the command hierarchy
// in registration order, and finds them by unambiguous prefix.
type topicTree struct {
	title  string
	topics []*helpTopic
	tree   *prefixtree.Tree[*helpTopic]
}

func newTopicTree(title string) *topicTree {
	return &topicTree{
		title: title,
		tree:  prefixtree.New[*helpTopic](),
	}
}

func (t *topicTree) add(topic *helpTopic) {
	t.topics = append(t.topics, topic)
	t.tree.Add(topic.name, topic)
}

// Find the topic for a command line such as "bp add" or "mem". A trailing
// word that does not name a subcommand is ignored.
func (t *topicTree) find(line string) (*helpTopic, error) {
	words := strings.Fields(line)
	if len(words) > 0 {
		if full, ok := shortcuts[strings.ToLower(words[0])]; ok {
			words = append(strings.Fields(full), words[1:]...)
		}
	}

	var topic *helpTopic
	for tree := t; tree != nil && len(words) > 0; words = words[1:] {
		var err error
		topic, err = tree.tree.FindValue(strings.ToLower(words[0]))
		if err != nil {
			return nil, err
		}
		tree = topic.sub
	}
	return topic, nil
}

// A commandTree registers commands with both the cmd tree and the help
// topics.
type commandTree struct {
	tree *cmd.Tree
	help *topicTree
}

func (t commandTree) command(d cmd.CommandDescriptor) {
	t.tree.AddCommand(d)
	t.help.add(&helpTopic{
		name:        d.Name,
		brief:       d.Brief,
		description: d.Description,
		usage:       d.Usage,
	})
}

func (t commandTree) subtree(d cmd.TreeDescriptor) commandTree {
	sub := newTopicTree(d.Brief)
	t.help.add(&helpTopic{name: d.Name, brief: d.Brief, sub: sub})
	return commandTree{tree: t.tree.AddSubtree(d), help: sub}
}

func (t commandTree) shortcut(short, target string) {
	t.tree.AddShortcut(short, target)
	shortcuts[short] = target
}

func init() {
	root := commandTree{
		tree: cmd.NewTree(cmd.TreeDescriptor{Name: "nes6502"}),
		help: newTopicTree("nes6502 commands"),
	}
	root.command(cmd.CommandDescriptor{
		Name:        "help",
		Brief:       "Display help for a command",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Host).cmdHelp,
	})
	root.command(cmd.CommandDescriptor{
		Name:  "annotate",
		Brief: "Annotate an address",
		Description: "Provide a code annotation at a memory address." +
			" When disassembling code at this address, the annotation will" +
			" be displayed. An annotation without text removes it.",
		Usage: "annotate <address> [<string>]",
		Data:  (*Host).cmdAnnotate,
	})

	// Breakpoint commands
	bp := root.subtree(cmd.TreeDescriptor{Name: "breakpoint", Brief: "Breakpoint commands"})
	bp.command(cmd.CommandDescriptor{
		Name:        "list",
		Brief:       "List breakpoints",
		Description: "List all current breakpoints.",
		Usage:       "breakpoint list",
		Data:        (*Host).cmdBreakpointList,
	})
	bp.command(cmd.CommandDescriptor{
		Name:  "add",
		Brief: "Add a breakpoint",
		Description: "Add a breakpoint at the specified address." +
			" The breakpoint starts enabled.",
		Usage: "breakpoint add <address>",
		Data:  (*Host).cmdBreakpointAdd,
	})
	bp.command(cmd.CommandDescriptor{
		Name:        "remove",
		Brief:       "Remove a breakpoint",
		Description: "Remove a breakpoint at the specified address.",
		Usage:       "breakpoint remove <address>",
		Data:        (*Host).cmdBreakpointRemove,
	})
	bp.command(cmd.CommandDescriptor{
		Name:        "enable",
		Brief:       "Enable a breakpoint",
		Description: "Enable a previously added breakpoint.",
		Usage:       "breakpoint enable <address>",
		Data:        (*Host).cmdBreakpointEnable,
	})
	bp.command(cmd.CommandDescriptor{
		Name:  "disable",
		Brief: "Disable a breakpoint",
		Description: "Disable a previously added breakpoint. This" +
			" prevents the breakpoint from being hit when running the" +
			" CPU.",
		Usage: "breakpoint disable <address>",
		Data:  (*Host).cmdBreakpointDisable,
	})

	// Data breakpoint commands
	db := root.subtree(cmd.TreeDescriptor{Name: "databreakpoint", Brief: "Data breakpoint commands"})
	db.command(cmd.CommandDescriptor{
		Name:        "list",
		Brief:       "List data breakpoints",
		Description: "List all current data breakpoints.",
		Usage:       "databreakpoint list",
		Data:        (*Host).cmdDataBreakpointList,
	})
	db.command(cmd.CommandDescriptor{
		Name:  "add",
		Brief: "Add a data breakpoint",
		Description: "Add a new data breakpoint at the specified" +
			" memory address. When the CPU stores data at this address, the" +
			" breakpoint will stop the CPU. Optionally, a byte" +
			" value may be specified, and the CPU will stop only" +
			" when this value is stored. The data breakpoint starts" +
			" enabled.",
		Usage: "databreakpoint add <address> [<value>]",
		Data:  (*Host).cmdDataBreakpointAdd,
	})
	db.command(cmd.CommandDescriptor{
		Name:  "remove",
		Brief: "Remove a data breakpoint",
		Description: "Remove a previously added data breakpoint at" +
			" the specified memory address.",
		Usage: "databreakpoint remove <address>",
		Data:  (*Host).cmdDataBreakpointRemove,
	})
	db.command(cmd.CommandDescriptor{
		Name:        "enable",
		Brief:       "Enable a data breakpoint",
		Description: "Enable a previously added data breakpoint.",
		Usage:       "databreakpoint enable <address>",
		Data:        (*Host).cmdDataBreakpointEnable,
	})
	db.command(cmd.CommandDescriptor{
		Name:        "disable",
		Brief:       "Disable a data breakpoint",
		Description: "Disable a previously added data breakpoint.",
		Usage:       "databreakpoint disable <address>",
		Data:        (*Host).cmdDataBreakpointDisable,
	})

	root.command(cmd.CommandDescriptor{
		Name:  "disassemble",
		Brief: "Disassemble code",
		Description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off.",
		Usage: "disassemble [<address>] [<lines>]",
		Data:  (*Host).cmdDisassemble,
	})

	// Interrupt commands
	in := root.subtree(cmd.TreeDescriptor{Name: "interrupt", Brief: "Interrupt commands"})
	in.command(cmd.CommandDescriptor{
		Name:        "nmi",
		Brief:       "Signal a non-maskable interrupt",
		Description: "Push the program counter and status and jump through the NMI vector at $FFFA.",
		Usage:       "interrupt nmi",
		Data:        (*Host).cmdInterruptNMI,
	})
	in.command(cmd.CommandDescriptor{
		Name:  "irq",
		Brief: "Signal an interrupt request",
		Description: "Push the program counter and status and jump through the IRQ vector" +
			" at $FFFE. The request is ignored while the interrupt disable flag is set.",
		Usage: "interrupt irq",
		Data:  (*Host).cmdInterruptIRQ,
	})

	root.command(cmd.CommandDescriptor{
		Name:  "load",
		Brief: "Load a cartridge or binary file",
		Description: "Load an iNES cartridge image into the emulated" +
			" system's memory and reset the CPU. If an address is specified," +
			" the file is instead treated as raw binary data and copied to memory" +
			" at that address.",
		Usage: "load <filename> [<address>]",
		Data:  (*Host).cmdLoad,
	})
	root.command(cmd.CommandDescriptor{
		Name:  "log",
		Brief: "Display the log",
		Description: "Display the most recent entries of the emulator log." +
			" The number of entries may be specified as an option.",
		Usage: "log [<count>]",
		Data:  (*Host).cmdLog,
	})

	// Memory commands
	me := root.subtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	me.command(cmd.CommandDescriptor{
		Name:  "dump",
		Brief: "Dump memory at address",
		Description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		Usage: "memory dump [<address>] [<bytes>]",
		Data:  (*Host).cmdMemoryDump,
	})
	me.command(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set memory at address",
		Description: "Set the contents of memory starting from the specified" +
			" address. The values to assign should be a series of" +
			" space-separated byte values.",
		Usage: "memory set <address> <byte> [<byte> ...]",
		Data:  (*Host).cmdMemorySet,
	})
	me.command(cmd.CommandDescriptor{
		Name:  "copy",
		Brief: "Copy memory",
		Description: "Copy memory from one range of addresses to another. You" +
			" must specify the destination address, the first byte of the source" +
			" address, and the last byte of the source address.",
		Usage: "memory copy <dst addr> <src addr begin> <src addr end>",
		Data:  (*Host).cmdMemoryCopy,
	})

	root.command(cmd.CommandDescriptor{
		Name:  "opcodes",
		Brief: "List the opcodes of an instruction",
		Description: "List every opcode of the named instruction together with" +
			" its addressing mode, length and cycle cost. A cost such as 4+1" +
			" takes an extra cycle when the effective address crosses a page.",
		Usage: "opcodes <mnemonic>",
		Data:  (*Host).cmdOpcodes,
	})
	root.command(cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        (*Host).cmdQuit,
	})
	root.command(cmd.CommandDescriptor{
		Name:  "register",
		Brief: "View or change register values",
		Description: "When used without arguments, this command displays the current" +
			" contents of the CPU registers. When used with arguments, this" +
			" command changes the value of a register or one of the CPU's status" +
			" flags. Allowed register names include A, X, Y, PC and SP. Allowed status" +
			" flag names include N (Negative), V (Overflow), D (Decimal)," +
			" I (InterruptDisable), Z (Zero) and C (Carry).",
		Usage: "register [<name> <value>]",
		Data:  (*Host).cmdRegister,
	})
	root.command(cmd.CommandDescriptor{
		Name:  "reset",
		Brief: "Reset the CPU",
		Description: "Signal a CPU reset. The program counter is loaded from" +
			" the reset vector at $FFFC and a halted CPU may run again.",
		Usage: "reset",
		Data:  (*Host).cmdReset,
	})
	root.command(cmd.CommandDescriptor{
		Name:  "run",
		Brief: "Run the CPU",
		Description: "Run the CPU until a breakpoint is hit, the CPU halts," +
			" the RunStepLimit setting is reached or the user types Ctrl-C." +
			" An optional address sets the program counter first.",
		Usage: "run [<address>]",
		Data:  (*Host).cmdRun,
	})
	root.command(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		Usage: "set [<var> <value>]",
		Data:  (*Host).cmdSet,
	})

	// Step commands
	st := root.subtree(cmd.TreeDescriptor{Name: "step", Brief: "Step the debugger"})
	st.command(cmd.CommandDescriptor{
		Name:  "in",
		Brief: "Step into next instruction",
		Description: "Step the CPU by a single instruction. If the" +
			" instruction is a subroutine call, step into the subroutine." +
			" The number of steps may be specified as an option.",
		Usage: "step in [<count>]",
		Data:  (*Host).cmdStepIn,
	})
	st.command(cmd.CommandDescriptor{
		Name:  "over",
		Brief: "Step over next instruction",
		Description: "Step the CPU by a single instruction. If the" +
			" instruction is a subroutine call, step over the subroutine." +
			" The number of steps may be specified as an option.",
		Usage: "step over [<count>]",
		Data:  (*Host).cmdStepOver,
	})
	st.command(cmd.CommandDescriptor{
		Name:  "out",
		Brief: "Step out of the current subroutine",
		Description: "Step the CPU until it executes an RTS or RTI" +
			" instruction. This has the effect of stepping until the" +
			" currently running subroutine has returned.",
		Usage: "step out",
		Data:  (*Host).cmdStepOut,
	})

	// Add command shortcuts.
	root.shortcut("b", "breakpoint")
	root.shortcut("bp", "breakpoint")
	root.shortcut("ba", "breakpoint add")
	root.shortcut("br", "breakpoint remove")
	root.shortcut("bl", "breakpoint list")
	root.shortcut("be", "breakpoint enable")
	root.shortcut("bd", "breakpoint disable")
	root.shortcut("d", "disassemble")
	root.shortcut("db", "databreakpoint")
	root.shortcut("dbl", "databreakpoint list")
	root.shortcut("dba", "databreakpoint add")
	root.shortcut("dbr", "databreakpoint remove")
	root.shortcut("dbe", "databreakpoint enable")
	root.shortcut("dbd", "databreakpoint disable")
	root.shortcut("m", "memory dump")
	root.shortcut("mc", "memory copy")
	root.shortcut("ms", "memory set")
	root.shortcut("r", "register")
	root.shortcut("s", "step over")
	root.shortcut("si", "step in")
	root.shortcut("so", "step out")
	root.shortcut("?", "help")
	root.shortcut(".", "register")

	cmds = root.tree
	helpTopics = root.help
}
