package memory

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// PPUMemory is the PPU's 14-bit address space.
type PPUMemory struct {
	vram       [0x1000]uint8 // four-screen needs all 4KB; other modes use 2KB
	paletteRAM [32]uint8
	cartridge  CartridgeInterface
	mirroring  MirrorMode
}

// NewPPUMemory creates a PPU address space backed by cart's CHR.
func NewPPUMemory(cart CartridgeInterface, mirroring MirrorMode) *PPUMemory {
	pm := &PPUMemory{cartridge: cart, mirroring: mirroring}
	for i := 0; i < 32; i += 4 {
		pm.paletteRAM[i] = 0x0F
	}
	return pm
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		return pm.cartridge.ReadCHR(address)
	case address < 0x3F00:
		return pm.vram[pm.nametableIndex(address)]
	default:
		return pm.paletteRAM[paletteIndex(address)]
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		pm.cartridge.WriteCHR(address, value)
	case address < 0x3F00:
		pm.vram[pm.nametableIndex(address)] = value
	default:
		pm.paletteRAM[paletteIndex(address)] = value
	}
}

// nametableIndex folds $2000-$3EFF onto VRAM according to the mirroring mode.
func (pm *PPUMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := address >> 10
	offset := address & 0x03FF

	switch pm.mirroring {
	case MirrorHorizontal:
		return (table>>1)*0x400 + offset
	case MirrorVertical:
		return (table&1)*0x400 + offset
	case MirrorSingleScreen1:
		return 0x400 + offset
	case MirrorFourScreen:
		return table*0x400 + offset
	default:
		return offset
	}
}

// paletteIndex folds $3F00-$3FFF onto the 32 palette entries; sprite
// backdrop slots alias the background ones.
func paletteIndex(address uint16) uint16 {
	index := address & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return index
}

// Palette returns a copy of palette RAM.
func (pm *PPUMemory) Palette() [32]uint8 {
	return pm.paletteRAM
}

// PPUState is the serializable part of the PPU address space.
type PPUState struct {
	VRAM    []byte
	Palette []byte
}

func (pm *PPUMemory) SaveState() PPUState {
	return PPUState{
		VRAM:    append([]byte(nil), pm.vram[:]...),
		Palette: append([]byte(nil), pm.paletteRAM[:]...),
	}
}

func (pm *PPUMemory) LoadState(s PPUState) {
	copy(pm.vram[:], s.VRAM)
	copy(pm.paletteRAM[:], s.Palette)
}
