package cpu

import "fmt"

// Peeker reads memory without side effects.
type Peeker interface {
	Peek(address uint16) uint8
}

// Disassemble formats the instruction at address and returns its size.
func Disassemble(mem Peeker, address uint16) (string, int) {
	opcode := mem.Peek(address)
	ins := &instructions[opcode]
	lo := uint16(mem.Peek(address + 1))
	hi := uint16(mem.Peek(address + 2))
	word := hi<<8 | lo

	var operand string
	switch ins.mode {
	case Accumulator:
		operand = "A"
	case Immediate:
		operand = fmt.Sprintf("#$%02X", lo)
	case ZeroPage:
		operand = fmt.Sprintf("$%02X", lo)
	case ZeroPageX:
		operand = fmt.Sprintf("$%02X,X", lo)
	case ZeroPageY:
		operand = fmt.Sprintf("$%02X,Y", lo)
	case Relative:
		operand = fmt.Sprintf("$%04X", uint16(int32(address+2)+int32(int8(lo))))
	case Absolute:
		operand = fmt.Sprintf("$%04X", word)
	case AbsoluteX:
		operand = fmt.Sprintf("$%04X,X", word)
	case AbsoluteY:
		operand = fmt.Sprintf("$%04X,Y", word)
	case Indirect:
		operand = fmt.Sprintf("($%04X)", word)
	case IndexedIndirect:
		operand = fmt.Sprintf("($%02X,X)", lo)
	case IndirectIndexed:
		operand = fmt.Sprintf("($%02X),Y", lo)
	}

	if operand == "" {
		return ins.name, int(ins.size)
	}
	return ins.name + " " + operand, int(ins.size)
}
