// Package ppu implements the Picture Processing Unit for the NES.
package ppu

const (
	ScreenWidth  = 256
	ScreenHeight = 240

	cyclesPerScanline = 341
	lastScanline      = 260
	vblankScanline    = 241
)

// PPUCTRL, PPUMASK and PPUSTATUS bits
const (
	ctrlIncrement32   = 0x04
	ctrlSpriteTable   = 0x08
	ctrlBGTable       = 0x10
	ctrlSprite8x16    = 0x20
	ctrlNMI           = 0x80
	maskGrayscale     = 0x01
	maskBGLeft        = 0x02
	maskSpritesLeft   = 0x04
	maskBG            = 0x08
	maskSprites       = 0x10
	statusOverflow    = 0x20
	statusSprite0Hit  = 0x40
	statusVBlank      = 0x80
	oamAttributeWired = 0xE3
)

// MemoryInterface is the PPU's 14-bit address space.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// PPU represents the NES Picture Processing Unit (2C02)
type PPU struct {
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	// Loopy registers
	v uint16 // Current VRAM address (15 bits)
	t uint16 // Temporary VRAM address (15 bits)
	x uint8  // Fine X scroll (3 bits)
	w bool   // First/second write toggle

	// Last value written to any register; write-only registers read back as this.
	latch      uint8
	readBuffer uint8

	memory MemoryInterface

	scanline   int // -1 (pre-render) to 260
	cycle      int // 0 to 340
	frameCount uint64
	oddFrame   bool
	cycleCount uint64

	oam           [256]uint8
	secondaryOAM  [32]uint8
	spriteIndexes [8]uint8
	spriteCount   int

	line scrollLatch

	frameBuffer [ScreenWidth * ScreenHeight]uint32

	nmiCallback           func()
	frameCompleteCallback func()
}

// New creates a new PPU instance
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// Reset resets the PPU to initial state
func (p *PPU) Reset() {
	p.ppuCtrl, p.ppuMask, p.ppuStatus, p.oamAddr = 0, 0, 0, 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.latch, p.readBuffer = 0, 0
	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.cycleCount = 0
	p.spriteCount = 0
	p.oam = [256]uint8{}
	p.frameBuffer = [ScreenWidth * ScreenHeight]uint32{}
}

// SetMemory sets the PPU memory interface
func (p *PPU) SetMemory(memory MemoryInterface) {
	p.memory = memory
}

// SetNMICallback sets the NMI callback function
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback sets the frame complete callback
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// ReadRegister reads from a PPU register (CPU $2000-$2007)
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		status := p.ppuStatus&0xE0 | p.latch&0x1F
		p.ppuStatus &^= statusVBlank
		p.w = false
		p.latch = status
		return status
	case 0x2004:
		p.latch = p.readOAM()
	case 0x2007:
		p.latch = p.readPPUData()
	}
	return p.latch
}

// PeekRegister returns what ReadRegister would without changing any state.
func (p *PPU) PeekRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		return p.ppuStatus&0xE0 | p.latch&0x1F
	case 0x2004:
		return p.readOAM()
	case 0x2007:
		if p.v&0x3FFF >= 0x3F00 && p.memory != nil {
			return p.memory.Read(p.v)
		}
		return p.readBuffer
	}
	return p.latch
}

// WriteRegister writes to a PPU register (CPU $2000-$2007)
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.latch = value
	switch address {
	case 0x2000:
		wasEnabled := p.ppuCtrl&ctrlNMI != 0
		p.ppuCtrl = value
		p.t = p.t&0xF3FF | uint16(value&0x03)<<10
		// Enabling NMI during VBlank raises it immediately.
		if !wasEnabled && value&ctrlNMI != 0 && p.ppuStatus&statusVBlank != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	case 0x2001:
		p.ppuMask = value
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

func (p *PPU) readOAM() uint8 {
	value := p.oam[p.oamAddr]
	if p.oamAddr&0x03 == 2 {
		value &= oamAttributeWired
	}
	return value
}

// writePPUScroll handles writes to PPUSCROLL ($2005)
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = p.t&0xFFE0 | uint16(value)>>3
		p.x = value & 0x07
	} else {
		p.t = p.t&0x8FFF | uint16(value&0x07)<<12
		p.t = p.t&0xFC1F | uint16(value&0xF8)<<2
	}
	p.w = !p.w
}

// writePPUAddr handles writes to PPUADDR ($2006)
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = p.t&0x80FF | uint16(value&0x3F)<<8
	} else {
		p.t = p.t&0xFF00 | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

// readPPUData returns the buffered byte for VRAM and the live byte for
// palette RAM, which refills the buffer from the nametable underneath.
func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory != nil {
		address := p.v & 0x3FFF
		if address >= 0x3F00 {
			data = p.memory.Read(address)
			p.readBuffer = p.memory.Read(address & 0x2FFF)
		} else {
			data = p.readBuffer
			p.readBuffer = p.memory.Read(address)
		}
	}
	p.incrementAddress()
	return data
}

// writePPUData handles writes to PPUDATA ($2007)
func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v&0x3FFF, value)
	}
	p.incrementAddress()
}

func (p *PPU) incrementAddress() {
	if p.ppuCtrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}

// WriteOAM writes to OAM at the specified address
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// OAM returns a copy of object attribute memory.
func (p *PPU) OAM() [256]uint8 {
	return p.oam
}

func (p *PPU) renderingEnabled() bool {
	return p.ppuMask&(maskBG|maskSprites) != 0
}

// Step advances the PPU by one cycle
func (p *PPU) Step() {
	p.cycleCount++

	if p.scanline < ScreenHeight {
		p.renderCycle()
	}

	if p.cycle == 1 {
		switch p.scanline {
		case vblankScanline:
			p.ppuStatus |= statusVBlank
			if p.ppuCtrl&ctrlNMI != 0 && p.nmiCallback != nil {
				p.nmiCallback()
			}
		case -1:
			p.ppuStatus &^= statusVBlank | statusSprite0Hit | statusOverflow
		}
	}

	p.advance()
}

func (p *PPU) advance() {
	p.cycle++
	// Odd frames drop the last pre-render cycle while rendering.
	if p.scanline == -1 && p.cycle == cyclesPerScanline-1 && p.oddFrame && p.renderingEnabled() {
		p.cycle = cyclesPerScanline
	}
	if p.cycle < cyclesPerScanline {
		return
	}
	p.cycle = 0
	p.scanline++
	if p.scanline > lastScanline {
		p.scanline = -1
		p.frameCount++
		p.oddFrame = !p.oddFrame
		if p.frameCompleteCallback != nil {
			p.frameCompleteCallback()
		}
	}
}

// FrameBuffer returns a copy of the last rendered frame as 0x00RRGGBB pixels.
func (p *PPU) FrameBuffer() []uint32 {
	fb := make([]uint32, len(p.frameBuffer))
	copy(fb, p.frameBuffer[:])
	return fb
}

// GetFrameCount returns the number of completed frames
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// GetScanline returns the current scanline
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current cycle
func (p *PPU) GetCycle() int {
	return p.cycle
}

// IsVBlank returns true if the VBlank flag is set
func (p *PPU) IsVBlank() bool {
	return p.ppuStatus&statusVBlank != 0
}

// Registers is a read-only view of the PPU's registers and timing.
type Registers struct {
	Ctrl     uint8
	Mask     uint8
	Status   uint8
	OAMAddr  uint8
	V, T     uint16
	FineX    uint8
	W        bool
	Scanline int
	Cycle    int
	Frame    uint64
}

func (r Registers) NMIOnVBlank() bool { return r.Ctrl&ctrlNMI != 0 }

func (r Registers) SpriteHeight() int {
	if r.Ctrl&ctrlSprite8x16 != 0 {
		return 16
	}
	return 8
}

func (r Registers) BGPatternTable() uint16 {
	if r.Ctrl&ctrlBGTable != 0 {
		return 0x1000
	}
	return 0
}

func (r Registers) SpritePatternTable() uint16 {
	if r.Ctrl&ctrlSpriteTable != 0 {
		return 0x1000
	}
	return 0
}

func (r Registers) AddressIncrement() int {
	if r.Ctrl&ctrlIncrement32 != 0 {
		return 32
	}
	return 1
}

// Registers returns a snapshot of the register file.
func (p *PPU) Registers() Registers {
	return Registers{
		Ctrl: p.ppuCtrl, Mask: p.ppuMask, Status: p.ppuStatus, OAMAddr: p.oamAddr,
		V: p.v, T: p.t, FineX: p.x, W: p.w,
		Scanline: p.scanline, Cycle: p.cycle, Frame: p.frameCount,
	}
}

// State is the serializable part of the PPU.
type State struct {
	Registers
	Latch      uint8
	ReadBuffer uint8
	OddFrame   bool
	CycleCount uint64
	OAM        []byte
}

func (p *PPU) SaveState() State {
	return State{
		Registers:  p.Registers(),
		Latch:      p.latch,
		ReadBuffer: p.readBuffer,
		OddFrame:   p.oddFrame,
		CycleCount: p.cycleCount,
		OAM:        append([]byte(nil), p.oam[:]...),
	}
}

func (p *PPU) LoadState(s State) {
	p.ppuCtrl, p.ppuMask, p.ppuStatus, p.oamAddr = s.Ctrl, s.Mask, s.Status, s.OAMAddr
	p.v, p.t, p.x, p.w = s.V, s.T, s.FineX, s.W
	p.scanline, p.cycle, p.frameCount = s.Scanline, s.Cycle, s.Frame
	p.latch, p.readBuffer = s.Latch, s.ReadBuffer
	p.oddFrame, p.cycleCount = s.OddFrame, s.CycleCount
	copy(p.oam[:], s.OAM)
}
