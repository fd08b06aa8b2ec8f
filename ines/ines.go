// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ines reads cartridge images in the iNES format and places their
// program ROM into a CPU address space.
package ines

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/beevik/nes6502/cpu"
	"github.com/beevik/nes6502/logger"
)

// Errors
var (
	ErrBadMagic          = errors.New("ines: not an iNES image")
	ErrTruncated         = errors.New("ines: image is truncated")
	ErrUnsupportedMapper = errors.New("ines: unsupported mapper")
)

// Bank sizes
const (
	PRGBankSize = 16 * 1024
	CHRBankSize = 8 * 1024
	trainerSize = 512
)

// Flags 6 bits
const (
	flagVertical   = 1 << 0
	flagBattery    = 1 << 1
	flagTrainer    = 1 << 2
	flagFourScreen = 1 << 3
)

// Header is the 16-byte iNES file header.
type Header struct {
	Magic          [4]byte
	PRGRom16kBanks byte
	CHRRom8kBanks  byte
	Flags6         byte
	Flags7         byte
	PRGRam8kBanks  byte
	Flags9         byte
	Flags10        byte
	Zero           [5]byte
}

// Mirroring describes the nametable layout wired by the cartridge.
type Mirroring byte

// Nametable mirroring arrangements
const (
	Horizontal Mirroring = iota
	Vertical
	FourScreen
)

func (m Mirroring) String() string {
	switch m {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "four-screen"
	}
}

// A Cartridge holds the contents of an iNES image.
type Cartridge struct {
	Header Header
	PRG    []byte // program ROM
	CHR    []byte // character ROM
}

// Parse reads an iNES image from 'r'.
func Parse(r io.Reader) (*Cartridge, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, truncated(err)
	}
	if string(h.Magic[:]) != "NES\x1a" {
		return nil, ErrBadMagic
	}

	if h.Flags6&flagTrainer != 0 {
		if _, err := io.CopyN(io.Discard, r, trainerSize); err != nil {
			return nil, truncated(err)
		}
	}

	c := &Cartridge{
		Header: h,
		PRG:    make([]byte, int(h.PRGRom16kBanks)*PRGBankSize),
		CHR:    make([]byte, int(h.CHRRom8kBanks)*CHRBankSize),
	}
	if _, err := io.ReadFull(r, c.PRG); err != nil {
		return nil, truncated(err)
	}
	if _, err := io.ReadFull(r, c.CHR); err != nil {
		return nil, truncated(err)
	}
	return c, nil
}

// Short reads are reported as ErrTruncated; other read errors pass through.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

// LoadFile parses the iNES image stored in 'filename'.
func LoadFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	c, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	battery := ""
	if c.HasBattery() {
		battery = ", battery-backed RAM"
	}
	logger.Logf("ines", "%s: mapper %d, %d PRG bank(s), %d CHR bank(s), %v mirroring%s",
		filename, c.Mapper(), c.Header.PRGRom16kBanks, c.Header.CHRRom8kBanks, c.Mirroring(), battery)
	return c, nil
}

// Mapper returns the mapper number of the cartridge.
func (c *Cartridge) Mapper() byte {
	return c.Header.Flags7&0xf0 | c.Header.Flags6>>4
}

// Mirroring returns the nametable mirroring of the cartridge.
func (c *Cartridge) Mirroring() Mirroring {
	switch {
	case c.Header.Flags6&flagFourScreen != 0:
		return FourScreen
	case c.Header.Flags6&flagVertical != 0:
		return Vertical
	default:
		return Horizontal
	}
}

// HasBattery returns true if the cartridge has battery-backed RAM.
func (c *Cartridge) HasBattery() bool {
	return c.Header.Flags6&flagBattery != 0
}

// Load places the cartridge program ROM into 'm'. Only mapper 0 (NROM) is
// supported: a single 16K bank appears at both $8000 and $C000, while two
// banks fill $8000-$FFFF.
func (c *Cartridge) Load(m cpu.Memory) error {
	if c.Mapper() != 0 {
		return fmt.Errorf("%w %d", ErrUnsupportedMapper, c.Mapper())
	}

	switch len(c.PRG) {
	case PRGBankSize:
		m.StoreBytes(0x8000, c.PRG)
		m.StoreBytes(0xc000, c.PRG)
	case 2 * PRGBankSize:
		m.StoreBytes(0x8000, c.PRG)
	default:
		return fmt.Errorf("%w: NROM with %d PRG bank(s)", ErrUnsupportedMapper, c.Header.PRGRom16kBanks)
	}

	logger.Logf("ines", "loaded NROM, reset vector $%04X", m.LoadAddress(0xfffc))
	return nil
}
