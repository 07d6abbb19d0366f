package cpu

func (cpu *CPU) load(address uint16, mode AddressingMode) uint8 {
	if mode == Accumulator {
		return cpu.A
	}
	return cpu.memory.Read(address)
}

func (cpu *CPU) store(address uint16, mode AddressingMode, value uint8) {
	if mode == Accumulator {
		cpu.A = value
		return
	}
	cpu.memory.Write(address, value)
}

func (cpu *CPU) branch(taken bool, target uint16) {
	if !taken {
		return
	}
	cpu.extra++
	if pagesDiffer(cpu.PC, target) {
		cpu.extra++
	}
	cpu.PC = target
}

func (cpu *CPU) compare(register, value uint8) {
	cpu.C = register >= value
	cpu.setZN(register - value)
}

func (cpu *CPU) addWithCarry(value uint8) {
	a := cpu.A
	sum := uint16(a) + uint16(value)
	if cpu.C {
		sum++
	}
	result := uint8(sum)
	cpu.C = sum > 0xFF
	cpu.V = (a^value)&0x80 == 0 && (a^result)&0x80 != 0
	cpu.A = result
	cpu.setZN(result)
}

// Loads and stores

func (cpu *CPU) lda(address uint16, mode AddressingMode) {
	cpu.A = cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) ldx(address uint16, mode AddressingMode) {
	cpu.X = cpu.memory.Read(address)
	cpu.setZN(cpu.X)
}

func (cpu *CPU) ldy(address uint16, mode AddressingMode) {
	cpu.Y = cpu.memory.Read(address)
	cpu.setZN(cpu.Y)
}

func (cpu *CPU) sta(address uint16, mode AddressingMode) { cpu.memory.Write(address, cpu.A) }
func (cpu *CPU) stx(address uint16, mode AddressingMode) { cpu.memory.Write(address, cpu.X) }
func (cpu *CPU) sty(address uint16, mode AddressingMode) { cpu.memory.Write(address, cpu.Y) }

// Transfers

func (cpu *CPU) tax(address uint16, mode AddressingMode) { cpu.X = cpu.A; cpu.setZN(cpu.X) }
func (cpu *CPU) tay(address uint16, mode AddressingMode) { cpu.Y = cpu.A; cpu.setZN(cpu.Y) }
func (cpu *CPU) txa(address uint16, mode AddressingMode) { cpu.A = cpu.X; cpu.setZN(cpu.A) }
func (cpu *CPU) tya(address uint16, mode AddressingMode) { cpu.A = cpu.Y; cpu.setZN(cpu.A) }
func (cpu *CPU) tsx(address uint16, mode AddressingMode) { cpu.X = cpu.SP; cpu.setZN(cpu.X) }
func (cpu *CPU) txs(address uint16, mode AddressingMode) { cpu.SP = cpu.X }

// Stack

func (cpu *CPU) pha(address uint16, mode AddressingMode) { cpu.push(cpu.A) }

func (cpu *CPU) php(address uint16, mode AddressingMode) {
	cpu.push(cpu.GetStatusByte() | bFlagMask | unusedMask)
}

func (cpu *CPU) pla(address uint16, mode AddressingMode) {
	cpu.A = cpu.pull()
	cpu.setZN(cpu.A)
}

func (cpu *CPU) plp(address uint16, mode AddressingMode) {
	cpu.SetStatusByte(cpu.pull()&^bFlagMask | unusedMask)
}

// Arithmetic and logic

func (cpu *CPU) adc(address uint16, mode AddressingMode) {
	cpu.addWithCarry(cpu.memory.Read(address))
}

func (cpu *CPU) sbc(address uint16, mode AddressingMode) {
	cpu.addWithCarry(^cpu.memory.Read(address))
}

func (cpu *CPU) and(address uint16, mode AddressingMode) {
	cpu.A &= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) ora(address uint16, mode AddressingMode) {
	cpu.A |= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) eor(address uint16, mode AddressingMode) {
	cpu.A ^= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) bit(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address)
	cpu.Z = cpu.A&value == 0
	cpu.V = value&vFlagMask != 0
	cpu.N = value&nFlagMask != 0
}

func (cpu *CPU) cmp(address uint16, mode AddressingMode) {
	cpu.compare(cpu.A, cpu.memory.Read(address))
}

func (cpu *CPU) cpx(address uint16, mode AddressingMode) {
	cpu.compare(cpu.X, cpu.memory.Read(address))
}

func (cpu *CPU) cpy(address uint16, mode AddressingMode) {
	cpu.compare(cpu.Y, cpu.memory.Read(address))
}

// Increments and decrements

func (cpu *CPU) inc(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
}

func (cpu *CPU) dec(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.setZN(value)
}

func (cpu *CPU) inx(address uint16, mode AddressingMode) { cpu.X++; cpu.setZN(cpu.X) }
func (cpu *CPU) iny(address uint16, mode AddressingMode) { cpu.Y++; cpu.setZN(cpu.Y) }
func (cpu *CPU) dex(address uint16, mode AddressingMode) { cpu.X--; cpu.setZN(cpu.X) }
func (cpu *CPU) dey(address uint16, mode AddressingMode) { cpu.Y--; cpu.setZN(cpu.Y) }

// Shifts

func (cpu *CPU) asl(address uint16, mode AddressingMode) {
	value := cpu.load(address, mode)
	cpu.C = value&0x80 != 0
	value <<= 1
	cpu.store(address, mode, value)
	cpu.setZN(value)
}

func (cpu *CPU) lsr(address uint16, mode AddressingMode) {
	value := cpu.load(address, mode)
	cpu.C = value&0x01 != 0
	value >>= 1
	cpu.store(address, mode, value)
	cpu.setZN(value)
}

func (cpu *CPU) rol(address uint16, mode AddressingMode) {
	value := cpu.load(address, mode)
	carry := cpu.C
	cpu.C = value&0x80 != 0
	value <<= 1
	if carry {
		value |= 0x01
	}
	cpu.store(address, mode, value)
	cpu.setZN(value)
}

func (cpu *CPU) ror(address uint16, mode AddressingMode) {
	value := cpu.load(address, mode)
	carry := cpu.C
	cpu.C = value&0x01 != 0
	value >>= 1
	if carry {
		value |= 0x80
	}
	cpu.store(address, mode, value)
	cpu.setZN(value)
}

// Jumps and calls

func (cpu *CPU) jmp(address uint16, mode AddressingMode) { cpu.PC = address }

func (cpu *CPU) jsr(address uint16, mode AddressingMode) {
	cpu.push16(cpu.PC - 1)
	cpu.PC = address
}

func (cpu *CPU) rts(address uint16, mode AddressingMode) { cpu.PC = cpu.pull16() + 1 }

func (cpu *CPU) rti(address uint16, mode AddressingMode) {
	cpu.SetStatusByte(cpu.pull()&^bFlagMask | unusedMask)
	cpu.PC = cpu.pull16()
}

func (cpu *CPU) brk(address uint16, mode AddressingMode) {
	cpu.push16(cpu.PC + 1)
	cpu.push(cpu.GetStatusByte() | bFlagMask | unusedMask)
	cpu.I = true
	cpu.PC = cpu.read16(irqVector)
}

// Branches

func (cpu *CPU) bcc(address uint16, mode AddressingMode) { cpu.branch(!cpu.C, address) }
func (cpu *CPU) bcs(address uint16, mode AddressingMode) { cpu.branch(cpu.C, address) }
func (cpu *CPU) beq(address uint16, mode AddressingMode) { cpu.branch(cpu.Z, address) }
func (cpu *CPU) bne(address uint16, mode AddressingMode) { cpu.branch(!cpu.Z, address) }
func (cpu *CPU) bmi(address uint16, mode AddressingMode) { cpu.branch(cpu.N, address) }
func (cpu *CPU) bpl(address uint16, mode AddressingMode) { cpu.branch(!cpu.N, address) }
func (cpu *CPU) bvc(address uint16, mode AddressingMode) { cpu.branch(!cpu.V, address) }
func (cpu *CPU) bvs(address uint16, mode AddressingMode) { cpu.branch(cpu.V, address) }

// Flags

func (cpu *CPU) clc(address uint16, mode AddressingMode) { cpu.C = false }
func (cpu *CPU) cld(address uint16, mode AddressingMode) { cpu.D = false }
func (cpu *CPU) cli(address uint16, mode AddressingMode) { cpu.I = false }
func (cpu *CPU) clv(address uint16, mode AddressingMode) { cpu.V = false }
func (cpu *CPU) sec(address uint16, mode AddressingMode) { cpu.C = true }
func (cpu *CPU) sed(address uint16, mode AddressingMode) { cpu.D = true }
func (cpu *CPU) sei(address uint16, mode AddressingMode) { cpu.I = true }

func (cpu *CPU) nop(address uint16, mode AddressingMode) {}

// Unofficial opcodes

func (cpu *CPU) kil(address uint16, mode AddressingMode) { cpu.jam = &JamError{} }

func (cpu *CPU) lax(address uint16, mode AddressingMode) {
	cpu.A = cpu.memory.Read(address)
	cpu.X = cpu.A
	cpu.setZN(cpu.A)
}

func (cpu *CPU) sax(address uint16, mode AddressingMode) {
	cpu.memory.Write(address, cpu.A&cpu.X)
}

func (cpu *CPU) dcp(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address) - 1
	cpu.memory.Write(address, value)
	cpu.compare(cpu.A, value)
}

func (cpu *CPU) isb(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address) + 1
	cpu.memory.Write(address, value)
	cpu.addWithCarry(^value)
}

func (cpu *CPU) slo(address uint16, mode AddressingMode) {
	cpu.asl(address, mode)
	cpu.A |= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) rla(address uint16, mode AddressingMode) {
	cpu.rol(address, mode)
	cpu.A &= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) sre(address uint16, mode AddressingMode) {
	cpu.lsr(address, mode)
	cpu.A ^= cpu.memory.Read(address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) rra(address uint16, mode AddressingMode) {
	cpu.ror(address, mode)
	cpu.addWithCarry(cpu.memory.Read(address))
}

func (cpu *CPU) anc(address uint16, mode AddressingMode) {
	cpu.and(address, mode)
	cpu.C = cpu.N
}

func (cpu *CPU) alr(address uint16, mode AddressingMode) {
	cpu.A &= cpu.memory.Read(address)
	cpu.lsr(address, Accumulator)
}

func (cpu *CPU) arr(address uint16, mode AddressingMode) {
	cpu.A &= cpu.memory.Read(address)
	cpu.ror(address, Accumulator)
	cpu.C = cpu.A&0x40 != 0
	cpu.V = (cpu.A>>6^cpu.A>>5)&0x01 != 0
}

func (cpu *CPU) axs(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address)
	ax := cpu.A & cpu.X
	cpu.C = ax >= value
	cpu.X = ax - value
	cpu.setZN(cpu.X)
}

func (cpu *CPU) las(address uint16, mode AddressingMode) {
	value := cpu.memory.Read(address) & cpu.SP
	cpu.A, cpu.X, cpu.SP = value, value, value
	cpu.setZN(value)
}
