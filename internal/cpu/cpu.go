// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"errors"
	"fmt"
)

// ErrJammed is returned by Step once a KIL opcode has halted the CPU.
var ErrJammed = errors.New("cpu jammed")

// JamError records where the CPU halted.
type JamError struct {
	PC     uint16
	Opcode uint8
}

func (e *JamError) Error() string {
	return fmt.Sprintf("cpu jammed by opcode $%02X at $%04X", e.Opcode, e.PC)
}

func (e *JamError) Unwrap() error { return ErrJammed }

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE

	interruptCycles = 7
)

// MemoryInterface defines the interface for CPU memory access
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CPU represents the 6502 processor used in the NES
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C bool // Carry
	Z bool // Zero
	I bool // Interrupt disable
	D bool // Decimal (ignored by the ALU on the NES)
	B bool // Break
	V bool // Overflow
	N bool // Negative

	memory MemoryInterface
	cycles uint64

	nmiPending bool
	irqLine    bool

	// extra cycles added by the instruction currently executing
	extra uint64
	jam   *JamError
}

// New creates a new CPU instance
func New(memory MemoryInterface) *CPU {
	return &CPU{memory: memory, SP: 0xFD}
}

// Reset performs the 7-cycle reset sequence and loads PC from $FFFC.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.SetStatusByte(0x34)
	cpu.nmiPending = false
	cpu.irqLine = false
	cpu.jam = nil
	cpu.PC = cpu.read16(resetVector)
	cpu.cycles += interruptCycles
}

// Cycles returns the number of cycles executed since power on.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }

// Jammed reports whether a KIL opcode halted the CPU.
func (cpu *CPU) Jammed() bool { return cpu.jam != nil }

// TriggerNMI latches a non-maskable interrupt for the next Step.
func (cpu *CPU) TriggerNMI() { cpu.nmiPending = true }

// SetIRQ drives the level-sensitive IRQ line.
func (cpu *CPU) SetIRQ(asserted bool) { cpu.irqLine = asserted }

// Step services a pending interrupt or executes one instruction and
// returns the cycles consumed.
func (cpu *CPU) Step() (uint64, error) {
	if cpu.jam != nil {
		return 0, cpu.jam
	}

	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.interrupt(nmiVector)
		return interruptCycles, nil
	}
	if cpu.irqLine && !cpu.I {
		cpu.interrupt(irqVector)
		return interruptCycles, nil
	}

	pc := cpu.PC
	opcode := cpu.memory.Read(pc)
	ins := &instructions[opcode]

	address, pageCrossed := cpu.operandAddress(ins.mode, pc+1)
	cpu.PC = pc + uint16(ins.size)
	cpu.extra = 0

	ins.exec(cpu, address, ins.mode)
	if cpu.jam != nil {
		cpu.jam.PC = pc
		cpu.jam.Opcode = opcode
		return 0, cpu.jam
	}

	cycles := uint64(ins.cycles) + cpu.extra
	if pageCrossed && ins.pageCycle {
		cycles++
	}
	cpu.cycles += cycles
	return cycles, nil
}

// operandAddress resolves the effective address for mode with operands at pc.
func (cpu *CPU) operandAddress(mode AddressingMode, pc uint16) (uint16, bool) {
	switch mode {
	case Immediate:
		return pc, false
	case ZeroPage:
		return uint16(cpu.memory.Read(pc)), false
	case ZeroPageX:
		return uint16(cpu.memory.Read(pc) + cpu.X), false
	case ZeroPageY:
		return uint16(cpu.memory.Read(pc) + cpu.Y), false
	case Relative:
		offset := int8(cpu.memory.Read(pc))
		return uint16(int32(pc+1) + int32(offset)), false
	case Absolute:
		return cpu.read16(pc), false
	case AbsoluteX:
		base := cpu.read16(pc)
		address := base + uint16(cpu.X)
		return address, pagesDiffer(base, address)
	case AbsoluteY:
		base := cpu.read16(pc)
		address := base + uint16(cpu.Y)
		return address, pagesDiffer(base, address)
	case Indirect:
		return cpu.read16Bug(cpu.read16(pc)), false
	case IndexedIndirect:
		return cpu.read16Bug(uint16(cpu.memory.Read(pc) + cpu.X)), false
	case IndirectIndexed:
		base := cpu.read16Bug(uint16(cpu.memory.Read(pc)))
		address := base + uint16(cpu.Y)
		return address, pagesDiffer(base, address)
	}
	return 0, false
}

func pagesDiffer(a, b uint16) bool { return a&0xFF00 != b&0xFF00 }

func (cpu *CPU) read16(address uint16) uint16 {
	lo := uint16(cpu.memory.Read(address))
	hi := uint16(cpu.memory.Read(address + 1))
	return hi<<8 | lo
}

// read16Bug reads a pointer without carrying into the high byte, which
// matches both JMP ($xxFF) and zero-page pointer wrap.
func (cpu *CPU) read16Bug(address uint16) uint16 {
	lo := uint16(cpu.memory.Read(address))
	hi := uint16(cpu.memory.Read(address&0xFF00 | uint16(uint8(address)+1)))
	return hi<<8 | lo
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase|uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pull() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase | uint16(cpu.SP))
}

func (cpu *CPU) push16(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value))
}

func (cpu *CPU) pull16() uint16 {
	lo := uint16(cpu.pull())
	hi := uint16(cpu.pull())
	return hi<<8 | lo
}

func (cpu *CPU) interrupt(vector uint16) {
	cpu.push16(cpu.PC)
	cpu.push(cpu.GetStatusByte()&^bFlagMask | unusedMask)
	cpu.I = true
	cpu.PC = cpu.read16(vector)
	cpu.cycles += interruptCycles
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = value&nFlagMask != 0
}

// GetStatusByte packs the flags into the P register layout.
func (cpu *CPU) GetStatusByte() uint8 {
	status := uint8(unusedMask)
	for _, f := range []struct {
		set  bool
		mask uint8
	}{
		{cpu.N, nFlagMask}, {cpu.V, vFlagMask}, {cpu.B, bFlagMask}, {cpu.D, dFlagMask},
		{cpu.I, iFlagMask}, {cpu.Z, zFlagMask}, {cpu.C, cFlagMask},
	} {
		if f.set {
			status |= f.mask
		}
	}
	return status
}

// SetStatusByte unpacks a P register value into the flags.
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = status&nFlagMask != 0
	cpu.V = status&vFlagMask != 0
	cpu.B = status&bFlagMask != 0
	cpu.D = status&dFlagMask != 0
	cpu.I = status&iFlagMask != 0
	cpu.Z = status&zFlagMask != 0
	cpu.C = status&cFlagMask != 0
}

// State is a register-level snapshot of the CPU.
type State struct {
	A, X, Y, SP uint8
	PC          uint16
	P           uint8
	Cycles      uint64
	NMIPending  bool
	IRQLine     bool
	Jammed      bool
	JamPC       uint16
	JamOpcode   uint8
}

func (cpu *CPU) SaveState() State {
	s := State{
		A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP, PC: cpu.PC,
		P:          cpu.GetStatusByte(),
		Cycles:     cpu.cycles,
		NMIPending: cpu.nmiPending,
		IRQLine:    cpu.irqLine,
	}
	if cpu.jam != nil {
		s.Jammed, s.JamPC, s.JamOpcode = true, cpu.jam.PC, cpu.jam.Opcode
	}
	return s
}

func (cpu *CPU) LoadState(s State) {
	cpu.A, cpu.X, cpu.Y, cpu.SP, cpu.PC = s.A, s.X, s.Y, s.SP, s.PC
	cpu.SetStatusByte(s.P)
	cpu.cycles = s.Cycles
	cpu.nmiPending = s.NMIPending
	cpu.irqLine = s.IRQLine
	cpu.jam = nil
	if s.Jammed {
		cpu.jam = &JamError{PC: s.JamPC, Opcode: s.JamOpcode}
	}
}
