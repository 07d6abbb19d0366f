// Package console wires the NES components into a control deck.
package console

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"nesprobe/internal/apu"
	"nesprobe/internal/cartridge"
	"nesprobe/internal/cpu"
	"nesprobe/internal/input"
	"nesprobe/internal/memory"
	"nesprobe/internal/ppu"
	"nesprobe/internal/savestate"
)

// ErrNoROM is returned by operations that need a loaded cartridge.
var ErrNoROM = errors.New("console: no ROM loaded")

// OAM DMA halts the CPU for 513 cycles, plus one when it starts on an odd cycle.
const dmaCycles = 513

// Console connects all NES components together
type Console struct {
	cpu    *cpu.CPU
	ppu    *ppu.PPU
	apu    *apu.APU
	memory *memory.Memory
	vram   *memory.PPUMemory
	input  *input.InputState
	cart   *cartridge.Cartridge

	name   string
	romCRC uint32

	// CPU cycles including DMA stalls
	cycles     uint64
	dmaStall   uint64
	nmiPending bool
}

// New creates a powered-on deck with no cartridge. Audio capture starts
// disabled.
func New() *Console {
	c := &Console{
		ppu:   ppu.New(),
		apu:   apu.New(),
		input: input.NewInputState(),
	}
	c.apu.SetSampleRate(0)
	c.attach(nil)
	return c
}

// attach rebuilds the CPU address space around cart.
func (c *Console) attach(cart *cartridge.Cartridge) {
	var bus memory.CartridgeInterface
	if cart != nil {
		bus = cart
	}
	c.memory = memory.New(c.ppu, c.apu, bus)
	c.memory.SetInputSystem(c.input)
	c.memory.SetDMACallback(c.startDMA)
	c.cpu = cpu.New(c.memory)

	c.apu.SetMemoryReader(c.memory.Read)
	c.ppu.SetNMICallback(func() { c.nmiPending = true })

	if cart != nil {
		c.vram = memory.NewPPUMemory(cart, mirrorMode(cart.Mirror()))
		c.ppu.SetMemory(c.vram)
	}
}

func mirrorMode(m cartridge.MirrorMode) memory.MirrorMode {
	switch m {
	case cartridge.MirrorVertical:
		return memory.MirrorVertical
	case cartridge.MirrorSingleScreen0:
		return memory.MirrorSingleScreen0
	case cartridge.MirrorSingleScreen1:
		return memory.MirrorSingleScreen1
	case cartridge.MirrorFourScreen:
		return memory.MirrorFourScreen
	}
	return memory.MirrorHorizontal
}

// LoadROM parses an iNES image from r, inserts it and resets the deck.
// name identifies the image in messages.
func (c *Console) LoadROM(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	cart, err := cartridge.Parse(data)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}

	c.cart = cart
	c.name = filepath.Base(name)
	c.romCRC = savestate.Checksum(data)
	c.attach(cart)
	c.reset()
	return nil
}

// Loaded reports whether a cartridge is inserted.
func (c *Console) Loaded() bool { return c.cart != nil }

// ROMName returns the base name the current ROM was loaded under.
func (c *Console) ROMName() string { return c.name }

// Cartridge returns the inserted cartridge, or nil.
func (c *Console) Cartridge() *cartridge.Cartridge { return c.cart }

// Reset presses the reset button. Work RAM keeps its contents.
func (c *Console) Reset() error {
	if c.cart == nil {
		return ErrNoROM
	}
	c.reset()
	return nil
}

func (c *Console) reset() {
	c.ppu.Reset()
	c.apu.Reset()
	c.input.Reset()
	c.cpu.Reset()
	c.cycles = 0
	c.dmaStall = 0
	c.nmiPending = false
}

// startDMA runs when the CPU writes $4014.
func (c *Console) startDMA(page uint8) {
	c.memory.OAMDMA(page)
	c.dmaStall = dmaCycles
	if c.cycles%2 == 1 {
		c.dmaStall++
	}
}

// Step executes one CPU instruction, or one stalled cycle during DMA, and
// advances the PPU and APU to match. It returns the CPU cycles consumed.
func (c *Console) Step() (uint64, error) {
	if c.cart == nil {
		return 0, ErrNoROM
	}

	var cycles uint64
	if c.dmaStall > 0 {
		cycles = 1
		c.dmaStall--
	} else {
		if c.nmiPending {
			c.cpu.TriggerNMI()
			c.nmiPending = false
		}
		c.cpu.SetIRQ(c.apu.IRQ())

		n, err := c.cpu.Step()
		if err != nil {
			return 0, err
		}
		cycles = n
	}

	for i := uint64(0); i < cycles*3; i++ {
		c.ppu.Step()
	}
	for i := uint64(0); i < cycles; i++ {
		c.apu.Step()
	}
	c.cycles += cycles
	return cycles, nil
}

// ClockFrame runs until the PPU completes the current frame. A jammed CPU
// stops the frame early and its *cpu.JamError is returned.
func (c *Console) ClockFrame() error {
	if c.cart == nil {
		return ErrNoROM
	}
	start := c.ppu.GetFrameCount()
	for c.ppu.GetFrameCount() == start {
		if _, err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunFrames clocks n frames, stopping at the first error.
func (c *Console) RunFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := c.ClockFrame(); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns the number of completed frames since reset.
func (c *Console) Frame() uint64 { return c.ppu.GetFrameCount() }

// Cycles returns the CPU cycles since reset, DMA stalls included.
func (c *Console) Cycles() uint64 { return c.cycles }

// WRAM returns a copy of the 2KB work RAM.
func (c *Console) WRAM() []byte {
	return append([]byte(nil), c.memory.RAM()...)
}

// Peek reads the CPU address space without side effects.
func (c *Console) Peek(address uint16) uint8 {
	return c.memory.Peek(address)
}

// PeekPPU reads the PPU address space. Reads there have no side effects.
func (c *Console) PeekPPU(address uint16) uint8 {
	if c.vram == nil {
		return 0
	}
	return c.vram.Read(address & 0x3FFF)
}

// CPUState returns the CPU registers.
func (c *Console) CPUState() cpu.State { return c.cpu.SaveState() }

// PPUState returns the PPU registers and timing.
func (c *Console) PPUState() ppu.Registers { return c.ppu.Registers() }

// OAM returns sprite memory.
func (c *Console) OAM() [256]uint8 { return c.ppu.OAM() }

// Palette returns palette RAM as stored, without mirroring.
func (c *Console) Palette() [32]uint8 {
	if c.vram == nil {
		return [32]uint8{}
	}
	return c.vram.Palette()
}

// FrameBuffer returns the last rendered frame as 0x00RRGGBB pixels.
func (c *Console) FrameBuffer() []uint32 { return c.ppu.FrameBuffer() }

// Disassemble decodes the instruction at address.
func (c *Console) Disassemble(address uint16) (string, int) {
	return cpu.Disassemble(c.memory, address)
}

// SetSampleRate turns audio capture on at rate Hz, or off when rate is 0.
// Captured samples accumulate until DrainSamples.
func (c *Console) SetSampleRate(rate int) {
	c.apu.SetSampleRate(rate)
	c.apu.DrainSamples()
}

// SampleRate returns the capture rate, 0 when disabled.
func (c *Console) SampleRate() int { return c.apu.SampleRate() }

// DrainSamples returns and clears the captured audio.
func (c *Console) DrainSamples() []float32 { return c.apu.DrainSamples() }

// SetButton presses or releases a button on port 1 or 2.
func (c *Console) SetButton(port int, button input.Button, pressed bool) error {
	pad := c.input.Controller(port)
	if pad == nil {
		return fmt.Errorf("console: no controller port %d", port)
	}
	pad.SetButton(button, pressed)
	return nil
}

// SetButtons replaces the held buttons on port 1 or 2.
func (c *Console) SetButtons(port int, mask uint8) error {
	pad := c.input.Controller(port)
	if pad == nil {
		return fmt.Errorf("console: no controller port %d", port)
	}
	pad.SetButtons(mask)
	return nil
}

// Controllers returns the held buttons of both ports.
func (c *Console) Controllers() [2]uint8 {
	return [2]uint8{c.input.Controller1.Buttons(), c.input.Controller2.Buttons()}
}

// State is everything needed to resume emulation.
type State struct {
	CPU        cpu.State
	PPU        ppu.State
	VRAM       memory.PPUState
	APU        apu.State
	Memory     memory.State
	Cartridge  cartridge.State
	Input      [2]input.ControllerState
	Cycles     uint64
	DMAStall   uint64
	NMIPending bool
}

// Snapshot captures the deck state.
func (c *Console) Snapshot() (State, error) {
	if c.cart == nil {
		return State{}, ErrNoROM
	}
	return State{
		CPU:        c.cpu.SaveState(),
		PPU:        c.ppu.SaveState(),
		VRAM:       c.vram.SaveState(),
		APU:        c.apu.SaveState(),
		Memory:     c.memory.SaveState(),
		Cartridge:  c.cart.SaveState(),
		Input:      c.input.SaveState(),
		Cycles:     c.cycles,
		DMAStall:   c.dmaStall,
		NMIPending: c.nmiPending,
	}, nil
}

// Restore puts the deck back into a captured state.
func (c *Console) Restore(s State) error {
	if c.cart == nil {
		return ErrNoROM
	}
	if err := c.cart.LoadState(s.Cartridge); err != nil {
		return err
	}
	c.cpu.LoadState(s.CPU)
	c.ppu.LoadState(s.PPU)
	c.vram.LoadState(s.VRAM)
	c.apu.LoadState(s.APU)
	c.memory.LoadState(s.Memory)
	c.input.LoadState(s.Input)
	c.cycles = s.Cycles
	c.dmaStall = s.DMAStall
	c.nmiPending = s.NMIPending
	return nil
}

// SaveState writes a snapshot file to path.
func (c *Console) SaveState(path string) error {
	s, err := c.Snapshot()
	if err != nil {
		return err
	}
	return savestate.WriteFile(path, c.romCRC, s)
}

// LoadState restores the snapshot file at path. The file must come from
// the ROM currently loaded.
func (c *Console) LoadState(path string) error {
	if c.cart == nil {
		return ErrNoROM
	}
	var s State
	if err := savestate.ReadFile(path, c.romCRC, &s); err != nil {
		return err
	}
	return c.Restore(s)
}

// EncodeState writes a snapshot to w.
func (c *Console) EncodeState(w io.Writer) error {
	s, err := c.Snapshot()
	if err != nil {
		return err
	}
	return savestate.Encode(w, c.romCRC, s)
}

// DecodeState restores a snapshot read from r.
func (c *Console) DecodeState(r io.Reader) error {
	if c.cart == nil {
		return ErrNoROM
	}
	var s State
	if err := savestate.Decode(r, c.romCRC, &s); err != nil {
		return err
	}
	return c.Restore(s)
}

