// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/nes6502/host"
	"github.com/beevik/nes6502/logger"
	"github.com/beevik/term"
)

var (
	steps    int
	startPC  string
	headless bool
	trace    bool
	dumpLog  bool
)

func init() {
	flag.IntVar(&steps, "steps", 0, "max instructions to run headless (0 = until halted)")
	flag.StringVar(&startPC, "pc", "", "start address overriding the reset vector")
	flag.BoolVar(&headless, "headless", false, "run the cartridge without the monitor")
	flag.BoolVar(&trace, "trace", false, "disassemble each instruction in headless mode")
	flag.BoolVar(&dumpLog, "log", false, "write the log to stderr on exit")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: nes6502 [options] [rom.nes] [script] ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	h := host.New()
	if dumpLog {
		defer logger.Write(os.Stderr)
	}

	// The first argument is a cartridge when it carries the .nes extension.
	args := flag.Args()
	if len(args) > 0 && strings.EqualFold(filepath.Ext(args[0]), ".nes") {
		if err := h.LoadCartridge(args[0]); err != nil {
			exitOnError(err)
		}
		args = args[1:]
	}

	if startPC != "" {
		pc, err := strconv.ParseUint(strings.TrimPrefix(startPC, "$"), 16, 16)
		if err != nil {
			exitOnError(fmt.Errorf("invalid start address '%s'", startPC))
		}
		h.CPU().SetPC(uint16(pc))
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	if headless {
		n, err := h.Execute(os.Stdout, steps, trace)
		fmt.Fprintf(os.Stderr, "Executed %d instructions, %d cycles.\n", n, h.CPU().Cycles())
		if err != nil {
			exitOnError(err)
		}
		return
	}

	// Run commands contained in command-line files.
	for _, filename := range args {
		file, err := os.Open(filename)
		if err != nil {
			exitOnError(err)
		}
		h.RunCommands(file, os.Stdout, false)
		file.Close()
	}

	// Run commands interactively when stdin is a terminal.
	h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	if dumpLog {
		logger.Write(os.Stderr)
	}
	os.Exit(1)
}
