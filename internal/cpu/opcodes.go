package cpu

// AddressingMode represents the different 6502 addressing modes
type AddressingMode uint8

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

type execFunc func(cpu *CPU, address uint16, mode AddressingMode)

type instruction struct {
	name      string
	mode      AddressingMode
	size      uint8
	cycles    uint8
	pageCycle bool
	exec      execFunc
}

const (
	imp = Implied
	acc = Accumulator
	imm = Immediate
	zp  = ZeroPage
	zpx = ZeroPageX
	zpy = ZeroPageY
	rel = Relative
	abs = Absolute
	abx = AbsoluteX
	aby = AbsoluteY
	ind = Indirect
	izx = IndexedIndirect
	izy = IndirectIndexed
)

var opcodeNames = [256]string{
	"BRK", "ORA", "KIL", "SLO", "NOP", "ORA", "ASL", "SLO", "PHP", "ORA", "ASL", "ANC", "NOP", "ORA", "ASL", "SLO",
	"BPL", "ORA", "KIL", "SLO", "NOP", "ORA", "ASL", "SLO", "CLC", "ORA", "NOP", "SLO", "NOP", "ORA", "ASL", "SLO",
	"JSR", "AND", "KIL", "RLA", "BIT", "AND", "ROL", "RLA", "PLP", "AND", "ROL", "ANC", "BIT", "AND", "ROL", "RLA",
	"BMI", "AND", "KIL", "RLA", "NOP", "AND", "ROL", "RLA", "SEC", "AND", "NOP", "RLA", "NOP", "AND", "ROL", "RLA",
	"RTI", "EOR", "KIL", "SRE", "NOP", "EOR", "LSR", "SRE", "PHA", "EOR", "LSR", "ALR", "JMP", "EOR", "LSR", "SRE",
	"BVC", "EOR", "KIL", "SRE", "NOP", "EOR", "LSR", "SRE", "CLI", "EOR", "NOP", "SRE", "NOP", "EOR", "LSR", "SRE",
	"RTS", "ADC", "KIL", "RRA", "NOP", "ADC", "ROR", "RRA", "PLA", "ADC", "ROR", "ARR", "JMP", "ADC", "ROR", "RRA",
	"BVS", "ADC", "KIL", "RRA", "NOP", "ADC", "ROR", "RRA", "SEI", "ADC", "NOP", "RRA", "NOP", "ADC", "ROR", "RRA",
	"NOP", "STA", "NOP", "SAX", "STY", "STA", "STX", "SAX", "DEY", "NOP", "TXA", "XAA", "STY", "STA", "STX", "SAX",
	"BCC", "STA", "KIL", "AHX", "STY", "STA", "STX", "SAX", "TYA", "STA", "TXS", "TAS", "SHY", "STA", "SHX", "AHX",
	"LDY", "LDA", "LDX", "LAX", "LDY", "LDA", "LDX", "LAX", "TAY", "LDA", "TAX", "LAX", "LDY", "LDA", "LDX", "LAX",
	"BCS", "LDA", "KIL", "LAX", "LDY", "LDA", "LDX", "LAX", "CLV", "LDA", "TSX", "LAS", "LDY", "LDA", "LDX", "LAX",
	"CPY", "CMP", "NOP", "DCP", "CPY", "CMP", "DEC", "DCP", "INY", "CMP", "DEX", "AXS", "CPY", "CMP", "DEC", "DCP",
	"BNE", "CMP", "KIL", "DCP", "NOP", "CMP", "DEC", "DCP", "CLD", "CMP", "NOP", "DCP", "NOP", "CMP", "DEC", "DCP",
	"CPX", "SBC", "NOP", "ISB", "CPX", "SBC", "INC", "ISB", "INX", "SBC", "NOP", "SBC", "CPX", "SBC", "INC", "ISB",
	"BEQ", "SBC", "KIL", "ISB", "NOP", "SBC", "INC", "ISB", "SED", "SBC", "NOP", "ISB", "NOP", "SBC", "INC", "ISB",
}

var opcodeModes = [256]AddressingMode{
	imp, izx, imp, izx, zp, zp, zp, zp, imp, imm, acc, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpx, zpx, imp, aby, imp, aby, abx, abx, abx, abx,
	abs, izx, imp, izx, zp, zp, zp, zp, imp, imm, acc, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpx, zpx, imp, aby, imp, aby, abx, abx, abx, abx,
	imp, izx, imp, izx, zp, zp, zp, zp, imp, imm, acc, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpx, zpx, imp, aby, imp, aby, abx, abx, abx, abx,
	imp, izx, imp, izx, zp, zp, zp, zp, imp, imm, acc, imm, ind, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpx, zpx, imp, aby, imp, aby, abx, abx, abx, abx,
	imm, izx, imm, izx, zp, zp, zp, zp, imp, imm, imp, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpy, zpy, imp, aby, imp, aby, abx, abx, aby, aby,
	imm, izx, imm, izx, zp, zp, zp, zp, imp, imm, imp, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpy, zpy, imp, aby, imp, aby, abx, abx, aby, aby,
	imm, izx, imm, izx, zp, zp, zp, zp, imp, imm, imp, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpx, zpx, imp, aby, imp, aby, abx, abx, abx, abx,
	imm, izx, imm, izx, zp, zp, zp, zp, imp, imm, imp, imm, abs, abs, abs, abs,
	rel, izy, imp, izy, zpx, zpx, zpx, zpx, imp, aby, imp, aby, abx, abx, abx, abx,
}

// Base cycle counts. Stores and read-modify-write instructions already
// include the indexing cycle.
var opcodeCycles = [256]uint8{
	7, 6, 2, 8, 3, 3, 5, 5, 3, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	6, 6, 2, 8, 3, 3, 5, 5, 4, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	6, 6, 2, 8, 3, 3, 5, 5, 3, 2, 2, 2, 3, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	6, 6, 2, 8, 3, 3, 5, 5, 4, 2, 2, 2, 5, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	2, 6, 2, 6, 3, 3, 3, 3, 2, 2, 2, 2, 4, 4, 4, 4,
	2, 6, 2, 6, 4, 4, 4, 4, 2, 5, 2, 5, 5, 5, 5, 5,
	2, 6, 2, 6, 3, 3, 3, 3, 2, 2, 2, 2, 4, 4, 4, 4,
	2, 5, 2, 5, 4, 4, 4, 4, 2, 4, 2, 4, 4, 4, 4, 4,
	2, 6, 2, 8, 3, 3, 5, 5, 2, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	2, 6, 2, 8, 3, 3, 5, 5, 2, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
}

// Instructions that only read their operand pay a cycle when indexing
// crosses a page.
var pageCrossReaders = map[string]bool{
	"ADC": true, "AND": true, "CMP": true, "EOR": true, "LDA": true, "LDX": true,
	"LDY": true, "ORA": true, "SBC": true, "LAX": true, "LAS": true, "NOP": true,
}

var handlers = map[string]execFunc{
	"ADC": (*CPU).adc, "AND": (*CPU).and, "ASL": (*CPU).asl, "BCC": (*CPU).bcc,
	"BCS": (*CPU).bcs, "BEQ": (*CPU).beq, "BIT": (*CPU).bit, "BMI": (*CPU).bmi,
	"BNE": (*CPU).bne, "BPL": (*CPU).bpl, "BRK": (*CPU).brk, "BVC": (*CPU).bvc,
	"BVS": (*CPU).bvs, "CLC": (*CPU).clc, "CLD": (*CPU).cld, "CLI": (*CPU).cli,
	"CLV": (*CPU).clv, "CMP": (*CPU).cmp, "CPX": (*CPU).cpx, "CPY": (*CPU).cpy,
	"DEC": (*CPU).dec, "DEX": (*CPU).dex, "DEY": (*CPU).dey, "EOR": (*CPU).eor,
	"INC": (*CPU).inc, "INX": (*CPU).inx, "INY": (*CPU).iny, "JMP": (*CPU).jmp,
	"JSR": (*CPU).jsr, "LDA": (*CPU).lda, "LDX": (*CPU).ldx, "LDY": (*CPU).ldy,
	"LSR": (*CPU).lsr, "NOP": (*CPU).nop, "ORA": (*CPU).ora, "PHA": (*CPU).pha,
	"PHP": (*CPU).php, "PLA": (*CPU).pla, "PLP": (*CPU).plp, "ROL": (*CPU).rol,
	"ROR": (*CPU).ror, "RTI": (*CPU).rti, "RTS": (*CPU).rts, "SBC": (*CPU).sbc,
	"SEC": (*CPU).sec, "SED": (*CPU).sed, "SEI": (*CPU).sei, "STA": (*CPU).sta,
	"STX": (*CPU).stx, "STY": (*CPU).sty, "TAX": (*CPU).tax, "TAY": (*CPU).tay,
	"TSX": (*CPU).tsx, "TXA": (*CPU).txa, "TXS": (*CPU).txs, "TYA": (*CPU).tya,

	"KIL": (*CPU).kil, "LAX": (*CPU).lax, "SAX": (*CPU).sax, "DCP": (*CPU).dcp,
	"ISB": (*CPU).isb, "SLO": (*CPU).slo, "RLA": (*CPU).rla, "SRE": (*CPU).sre,
	"RRA": (*CPU).rra, "ANC": (*CPU).anc, "ALR": (*CPU).alr, "ARR": (*CPU).arr,
	"AXS": (*CPU).axs, "LAS": (*CPU).las,

	// Unstable stores; executed as NOPs of the right length.
	"XAA": (*CPU).nop, "AHX": (*CPU).nop, "TAS": (*CPU).nop, "SHY": (*CPU).nop,
	"SHX": (*CPU).nop,
}

var instructions [256]instruction

func init() {
	for op := range instructions {
		name := opcodeNames[op]
		mode := opcodeModes[op]
		instructions[op] = instruction{
			name:      name,
			mode:      mode,
			size:      modeSize(mode),
			cycles:    opcodeCycles[op],
			pageCycle: pageCrossReaders[name],
			exec:      handlers[name],
		}
	}
}

func modeSize(mode AddressingMode) uint8 {
	switch mode {
	case Implied, Accumulator:
		return 1
	case Absolute, AbsoluteX, AbsoluteY, Indirect:
		return 3
	default:
		return 2
	}
}
