package ppu

// scrollLatch holds the scroll position decoded from v at the start of a
// visible scanline.
type scrollLatch struct {
	coarseX, coarseY uint16
	fineY            uint16
	ntX, ntY         uint16
	fineX            int
}

// pixel is a 2-bit pattern value plus the palette it selects from.
type pixel struct {
	color   uint8 // 0 is transparent
	palette uint8
	behind  bool // sprite priority bit
	sprite0 bool
}

func (p *PPU) renderCycle() {
	visible := p.scanline >= 0

	if !p.renderingEnabled() {
		if visible && p.cycle >= 1 && p.cycle <= ScreenWidth && p.memory != nil {
			p.frameBuffer[p.scanline*ScreenWidth+p.cycle-1] = p.colorAt(0x3F00)
		}
		return
	}

	if visible && p.cycle == 1 {
		p.latchScroll()
		p.evaluateSprites()
	}
	if visible && p.cycle >= 1 && p.cycle <= ScreenWidth && p.memory != nil {
		p.renderPixel(p.cycle - 1)
	}

	switch {
	case p.cycle == ScreenWidth:
		p.incrementY()
	case p.cycle == ScreenWidth+1:
		p.copyX()
	case p.scanline == -1 && p.cycle >= 280 && p.cycle <= 304:
		p.copyY()
	}
}

func (p *PPU) latchScroll() {
	p.line = scrollLatch{
		coarseX: p.v & 0x001F,
		coarseY: (p.v >> 5) & 0x001F,
		fineY:   (p.v >> 12) & 0x0007,
		ntX:     (p.v >> 10) & 0x0001,
		ntY:     (p.v >> 11) & 0x0001,
		fineX:   int(p.x),
	}
}

func (p *PPU) renderPixel(x int) {
	bg := p.backgroundPixel(x)
	sp := p.spritePixel(x)

	if bg.color != 0 && sp.color != 0 && sp.sprite0 && x != ScreenWidth-1 {
		p.ppuStatus |= statusSprite0Hit
	}

	var address uint16 = 0x3F00
	switch {
	case sp.color != 0 && (bg.color == 0 || !sp.behind):
		address = 0x3F10 + uint16(sp.palette)*4 + uint16(sp.color)
	case bg.color != 0:
		address = 0x3F00 + uint16(bg.palette)*4 + uint16(bg.color)
	}
	p.frameBuffer[p.scanline*ScreenWidth+x] = p.colorAt(address)
}

func (p *PPU) colorAt(paletteAddress uint16) uint32 {
	index := p.memory.Read(paletteAddress) & 0x3F
	if p.ppuMask&maskGrayscale != 0 {
		index &= 0x30
	}
	return NESColorToRGB(index)
}

func (p *PPU) backgroundPixel(x int) pixel {
	if p.ppuMask&maskBG == 0 || (x < 8 && p.ppuMask&maskBGLeft == 0) {
		return pixel{}
	}

	l := &p.line
	sx := int(l.coarseX)*8 + l.fineX + x
	ntX := l.ntX ^ uint16(sx/256)&1
	tileX := uint16(sx%256) / 8
	nametable := 0x2000 | l.ntY<<11 | ntX<<10

	tile := p.memory.Read(nametable | l.coarseY<<5 | tileX)
	attr := p.memory.Read(nametable | 0x03C0 | (l.coarseY>>2)<<3 | tileX>>2)
	shift := (l.coarseY&0x02)<<1 | tileX&0x02
	palette := (attr >> shift) & 0x03

	var base uint16
	if p.ppuCtrl&ctrlBGTable != 0 {
		base = 0x1000
	}
	return pixel{
		color:   p.patternBit(base+uint16(tile)*16+l.fineY, 7-sx%8),
		palette: palette,
	}
}

func (p *PPU) patternBit(address uint16, bit int) uint8 {
	lo := p.memory.Read(address)
	hi := p.memory.Read(address + 8)
	return (hi>>bit&1)<<1 | lo>>bit&1
}

func (p *PPU) spriteHeight() int {
	if p.ppuCtrl&ctrlSprite8x16 != 0 {
		return 16
	}
	return 8
}

// evaluateSprites copies up to eight sprites covering the current scanline
// into secondary OAM. Sprites are drawn one line below their OAM Y.
func (p *PPU) evaluateSprites() {
	p.spriteCount = 0
	if p.ppuMask&maskSprites == 0 {
		return
	}

	height := p.spriteHeight()
	for i := 0; i < 64; i++ {
		y := int(p.oam[i*4])
		row := p.scanline - (y + 1)
		if row < 0 || row >= height {
			continue
		}
		if p.spriteCount == 8 {
			p.ppuStatus |= statusOverflow
			break
		}
		copy(p.secondaryOAM[p.spriteCount*4:], p.oam[i*4:i*4+4])
		p.spriteIndexes[p.spriteCount] = uint8(i)
		p.spriteCount++
	}
}

// spritePixel returns the first opaque sprite pixel at x, lowest OAM index first.
func (p *PPU) spritePixel(x int) pixel {
	if p.ppuMask&maskSprites == 0 || (x < 8 && p.ppuMask&maskSpritesLeft == 0) {
		return pixel{}
	}

	height := p.spriteHeight()
	for i := 0; i < p.spriteCount; i++ {
		entry := p.secondaryOAM[i*4 : i*4+4]
		col := x - int(entry[3])
		if col < 0 || col >= 8 {
			continue
		}
		row := p.scanline - (int(entry[0]) + 1)
		attributes := entry[2]
		if attributes&0x40 != 0 {
			col = 7 - col
		}
		if attributes&0x80 != 0 {
			row = height - 1 - row
		}

		color := p.patternBit(p.spritePatternAddress(entry[1], row), 7-col)
		if color == 0 {
			continue
		}
		return pixel{
			color:   color,
			palette: attributes & 0x03,
			behind:  attributes&0x20 != 0,
			sprite0: p.spriteIndexes[i] == 0,
		}
	}
	return pixel{}
}

func (p *PPU) spritePatternAddress(tile uint8, row int) uint16 {
	if p.ppuCtrl&ctrlSprite8x16 == 0 {
		var base uint16
		if p.ppuCtrl&ctrlSpriteTable != 0 {
			base = 0x1000
		}
		return base + uint16(tile)*16 + uint16(row)
	}

	// 8x16: bit 0 of the tile selects the table, rows 8-15 use the next tile.
	base := uint16(tile&0x01) * 0x1000
	tile &= 0xFE
	if row >= 8 {
		tile++
		row -= 8
	}
	return base + uint16(tile)*16 + uint16(row)
}

// incrementY increments fine Y, and if it overflows, increments coarse Y
func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = p.v&^0x03E0 | y<<5
}

// copyX copies all X-related bits from t to v (bits 10, 4-0)
func (p *PPU) copyX() {
	p.v = p.v&0xFBE0 | p.t&0x041F
}

// copyY copies all Y-related bits from t to v (bits 11, 14-5)
func (p *PPU) copyY() {
	p.v = p.v&0x841F | p.t&0x7BE0
}

// 2C02 NTSC palette, 0x00RRGGBB
var nesColorPalette = [64]uint32{
	0x666666, 0x002A88, 0x1412A7, 0x3B00A4, 0x5C007E, 0x6E0040, 0x6C0600, 0x561D00,
	0x333500, 0x0B4800, 0x005200, 0x004F08, 0x00404D, 0x000000, 0x000000, 0x000000,
	0xADADAD, 0x155FD9, 0x4240FF, 0x7527FE, 0xA01ACC, 0xB71E7B, 0xB53120, 0x994E00,
	0x6B6D00, 0x388700, 0x0C9300, 0x008F32, 0x007C8D, 0x000000, 0x000000, 0x000000,
	0xFFFEFF, 0x64B0FF, 0x9290FF, 0xC676FF, 0xF36AFF, 0xFE6ECC, 0xFE8170, 0xEA9E22,
	0xBCBE00, 0x88D800, 0x5CE430, 0x45E082, 0x48CDDE, 0x4F4F4F, 0x000000, 0x000000,
	0xFFFEFF, 0xC0DFFF, 0xD3D2FF, 0xE8C8FF, 0xFBC2FF, 0xFEC4EA, 0xFECCC5, 0xF7D8A5,
	0xE4E594, 0xCFF29B, 0xBEFBB3, 0xB8F8D8, 0xB8F8F8, 0x000000, 0x000000, 0x000000,
}

// NESColorToRGB converts a NES color index to RGB value
func NESColorToRGB(colorIndex uint8) uint32 {
	return nesColorPalette[colorIndex&0x3F]
}
