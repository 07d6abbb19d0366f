package cartridge

// nrom implements mapper 0: 16KB or 32KB PRG (16KB mirrored), 8KB CHR
// ROM or RAM, 8KB PRG RAM at $6000-$7FFF.
type nrom struct {
	cart *Cartridge
}

func newNROM(cart *Cartridge) *nrom {
	return &nrom{cart: cart}
}

func (m *nrom) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		size := len(m.cart.prgROM)
		if size == 0 {
			return 0
		}
		return m.cart.prgROM[int(address-0x8000)%size]
	case address >= 0x6000:
		return m.cart.prgRAM[address-0x6000]
	}
	return 0
}

func (m *nrom) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.prgRAM[address-0x6000] = value
	}
}

func (m *nrom) ReadCHR(address uint16) uint8 {
	if int(address) < len(m.cart.chr) {
		return m.cart.chr[address]
	}
	return 0
}

func (m *nrom) WriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM && int(address) < len(m.cart.chr) {
		m.cart.chr[address] = value
	}
}
