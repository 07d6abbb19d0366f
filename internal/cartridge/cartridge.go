// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize  = 16
	trainerSize = 512
	prgBankSize = 0x4000
	chrBankSize = 0x2000
	prgRAMSize  = 0x2000
)

var (
	// ErrTooSmall is returned when the image ends before the sizes its header declares.
	ErrTooSmall = errors.New("ROM image too small")
	// ErrInvalidMagic is returned when the image does not start with "NES\x1A".
	ErrInvalidMagic = errors.New("invalid iNES header")
	// ErrNoPRG is returned for headers declaring zero PRG ROM banks.
	ErrNoPRG = errors.New("PRG ROM size cannot be zero")
	// ErrUnsupportedMapper is returned for any mapper other than NROM.
	ErrUnsupportedMapper = errors.New("unsupported mapper")
)

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleScreen0:
		return "single-0"
	case MirrorSingleScreen1:
		return "single-1"
	case MirrorFourScreen:
		return "four-screen"
	}
	return fmt.Sprintf("mirror(%d)", uint8(m))
}

// Mapper translates CPU and PPU bus addresses into cartridge memory.
type Mapper interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// Cartridge represents a NES cartridge
type Cartridge struct {
	prgROM []uint8
	chr    []uint8
	prgRAM [prgRAMSize]uint8

	mapperID uint8
	mapper   Mapper
	mirror   MirrorMode

	hasBattery bool
	hasCHRRAM  bool
}

type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // 16KB units
	CHRROMSize uint8 // 8KB units
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// Parse loads a cartridge from an in-memory iNES image.
func Parse(data []byte) (*Cartridge, error) {
	return Load(bytes.NewReader(data))
}

// Load reads an iNES image from r.
func Load(r io.Reader) (*Cartridge, error) {
	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: need %d header bytes", ErrTooSmall, headerSize)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	if string(header.Magic[:]) != "NES\x1A" {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidMagic, header.Magic[:])
	}
	if header.PRGROMSize == 0 {
		return nil, ErrNoPRG
	}

	cart := &Cartridge{
		mapperID:   (header.Flags6 >> 4) | (header.Flags7 & 0xF0),
		hasBattery: header.Flags6&0x02 != 0,
	}

	switch {
	case header.Flags6&0x08 != 0:
		cart.mirror = MirrorFourScreen
	case header.Flags6&0x01 != 0:
		cart.mirror = MirrorVertical
	default:
		cart.mirror = MirrorHorizontal
	}

	mapper, err := newMapper(cart.mapperID, cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper

	if header.Flags6&0x04 != 0 {
		if _, err := io.CopyN(io.Discard, r, trainerSize); err != nil {
			return nil, fmt.Errorf("%w: trainer truncated", ErrTooSmall)
		}
	}

	cart.prgROM = make([]uint8, int(header.PRGROMSize)*prgBankSize)
	if n, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, fmt.Errorf("%w: PRG ROM needs %d bytes, got %d", ErrTooSmall, len(cart.prgROM), n)
	}

	if header.CHRROMSize == 0 {
		cart.chr = make([]uint8, chrBankSize)
		cart.hasCHRRAM = true
	} else {
		cart.chr = make([]uint8, int(header.CHRROMSize)*chrBankSize)
		if n, err := io.ReadFull(r, cart.chr); err != nil {
			return nil, fmt.Errorf("%w: CHR ROM needs %d bytes, got %d", ErrTooSmall, len(cart.chr), n)
		}
	}

	return cart, nil
}

func newMapper(id uint8, cart *Cartridge) (Mapper, error) {
	switch id {
	case 0:
		return newNROM(cart), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMapper, id)
	}
}

// ReadPRG reads from PRG ROM/RAM
func (c *Cartridge) ReadPRG(address uint16) uint8 { return c.mapper.ReadPRG(address) }

// WritePRG writes to PRG RAM or mapper registers
func (c *Cartridge) WritePRG(address uint16, value uint8) { c.mapper.WritePRG(address, value) }

// ReadCHR reads from CHR ROM/RAM
func (c *Cartridge) ReadCHR(address uint16) uint8 { return c.mapper.ReadCHR(address) }

// WriteCHR writes to CHR RAM
func (c *Cartridge) WriteCHR(address uint16, value uint8) { c.mapper.WriteCHR(address, value) }

func (c *Cartridge) Mirror() MirrorMode { return c.mirror }
func (c *Cartridge) MapperID() uint8    { return c.mapperID }
func (c *Cartridge) HasBattery() bool   { return c.hasBattery }
func (c *Cartridge) HasCHRRAM() bool    { return c.hasCHRRAM }
func (c *Cartridge) PRGSize() int       { return len(c.prgROM) }
func (c *Cartridge) CHRSize() int       { return len(c.chr) }

// State holds the writable parts of a cartridge.
type State struct {
	PRGRAM []byte
	CHRRAM []byte
}

// SaveState copies the cartridge's writable memory.
func (c *Cartridge) SaveState() State {
	s := State{PRGRAM: append([]byte(nil), c.prgRAM[:]...)}
	if c.hasCHRRAM {
		s.CHRRAM = append([]byte(nil), c.chr...)
	}
	return s
}

// LoadState restores memory captured by SaveState.
func (c *Cartridge) LoadState(s State) error {
	if len(s.PRGRAM) != prgRAMSize {
		return fmt.Errorf("cartridge state: PRG RAM is %d bytes, want %d", len(s.PRGRAM), prgRAMSize)
	}
	if c.hasCHRRAM {
		if len(s.CHRRAM) != len(c.chr) {
			return fmt.Errorf("cartridge state: CHR RAM is %d bytes, want %d", len(s.CHRRAM), len(c.chr))
		}
		copy(c.chr, s.CHRRAM)
	}
	copy(c.prgRAM[:], s.PRGRAM)
	return nil
}
