// Package memory implements the CPU and PPU address spaces of the NES.
package memory

// WRAMSize is the size of the console's internal work RAM.
const WRAMSize = 0x800

// PPUInterface is the PPU register file as seen from the CPU bus.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
	// PeekRegister returns what a read would return without side effects.
	PeekRegister(address uint16) uint8
}

// APUInterface is the APU register file as seen from the CPU bus.
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
	PeekStatus() uint8
}

// InputInterface is the controller port pair.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface is the cartridge as seen from both buses.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// Memory is the CPU address space.
type Memory struct {
	ram [WRAMSize]uint8

	ppu       PPUInterface
	apu       APUInterface
	input     InputInterface
	cartridge CartridgeInterface

	dmaCallback func(page uint8)

	// Last value driven on the data bus, returned for unmapped reads.
	openBus uint8
}

// New creates a CPU memory map. RAM starts in the power-up pattern.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	m := &Memory{ppu: ppu, apu: apu, cartridge: cart}
	m.fillPowerUpPattern()
	return m
}

// SetInputSystem attaches the controller ports.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.input = input
}

// SetDMACallback installs the $4014 handler. Without one the transfer
// happens immediately with no CPU stall.
func (m *Memory) SetDMACallback(callback func(page uint8)) {
	m.dmaCallback = callback
}

// fillPowerUpPattern gives RAM a fixed, non-zero power-up image so runs
// are reproducible.
func (m *Memory) fillPowerUpPattern() {
	for i := range m.ram {
		switch {
		case i < 0x100:
			if i%2 == 0 {
				m.ram[i] = 0x00
			} else {
				m.ram[i] = 0xFF
			}
		case i < 0x200:
			if i%16 < 2 {
				m.ram[i] = 0xFF
			} else {
				m.ram[i] = 0x00
			}
		case i < 0x300:
			if (i/8)%2 == (i%8)/4 {
				m.ram[i] = 0xAA
			} else {
				m.ram[i] = 0x55
			}
		case i < 0x400:
			if i%8 == 0 {
				m.ram[i] = 0x00
			} else {
				m.ram[i] = 0xFF
			}
		default:
			m.ram[i] = [4]uint8{0x00, 0xFF, 0xAA, 0x55}[i%4]
		}
	}
}

// RAM returns the live work RAM.
func (m *Memory) RAM() []uint8 {
	return m.ram[:]
}

// Read reads a byte from the given address
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]
	case address < 0x4000:
		value = m.ppu.ReadRegister(0x2000 + address&0x0007)
	case address == 0x4015:
		value = m.apu.ReadStatus()
	case address == 0x4016 || address == 0x4017:
		if m.input != nil {
			value = m.input.Read(address)
		}
	case address < 0x6000:
		value = m.openBus
	default:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBus
		}
	}

	m.openBus = value
	return value
}

// Peek returns the byte a read would see, without touching register
// state, controller shift registers or the open bus.
func (m *Memory) Peek(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return m.ram[address&0x07FF]
	case address < 0x4000:
		return m.ppu.PeekRegister(0x2000 + address&0x0007)
	case address == 0x4015:
		return m.apu.PeekStatus()
	case address < 0x6000:
		return m.openBus
	}
	if m.cartridge != nil {
		return m.cartridge.ReadPRG(address)
	}
	return m.openBus
}

// Write writes a byte to the given address
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value
	case address < 0x4000:
		m.ppu.WriteRegister(0x2000+address&0x0007, value)
	case address == 0x4014:
		if m.dmaCallback != nil {
			m.dmaCallback(value)
		} else {
			m.OAMDMA(value)
		}
	case address == 0x4016:
		if m.input != nil {
			m.input.Write(address, value)
		}
	case address <= 0x4013, address == 0x4015, address == 0x4017:
		m.apu.WriteRegister(address, value)
	case address < 0x6000:
		// $4018-$5FFF: test registers and expansion area
	default:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
}

// OAMDMA copies the 256-byte CPU page into OAM through $2004.
func (m *Memory) OAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppu.WriteRegister(0x2004, m.Read(base+i))
	}
}

// State is the serializable part of the CPU address space.
type State struct {
	RAM     []byte
	OpenBus uint8
}

func (m *Memory) SaveState() State {
	return State{RAM: append([]byte(nil), m.ram[:]...), OpenBus: m.openBus}
}

func (m *Memory) LoadState(s State) {
	copy(m.ram[:], s.RAM)
	m.openBus = s.OpenBus
}
