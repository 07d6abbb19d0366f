package probe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"nesprobe/internal/audio"
	"nesprobe/internal/cpu"
	"nesprobe/internal/ppu"
)

// SampleSize is the number of WRAM bytes copied into a report.
const SampleSize = 16

// Sample returns a copy of the first SampleSize bytes of wram, or all of
// it when shorter.
func Sample(wram []byte) []byte {
	n := len(wram)
	if n > SampleSize {
		n = SampleSize
	}
	return append(make([]byte, 0, n), wram[:n]...)
}

// Bytes encodes as a JSON array of integers instead of base64.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return json.Marshal(out)
}

// Report is the JSON document printed at the end of a run. Only the first
// three fields are always present.
type Report struct {
	WRAMSample Bytes `json:"wram_sample"`
	WRAMSize   int   `json:"wram_size"`
	StateSaved bool  `json:"state_saved"`

	Memory  *MemoryDump    `json:"memory,omitempty"`
	CPU     *CPUReport     `json:"cpu,omitempty"`
	PPU     *PPUReport     `json:"ppu,omitempty"`
	OAM     Bytes          `json:"oam,omitempty"`
	Palette *PaletteReport `json:"palette,omitempty"`
	Audio   *AudioReport   `json:"audio,omitempty"`
}

// MemoryDump is an inclusive CPU address range read with peeks.
type MemoryDump struct {
	Start uint16 `json:"start"`
	End   uint16 `json:"end"`
	Bytes Bytes  `json:"bytes"`
}

type CPUReport struct {
	PC     uint16 `json:"pc"`
	A      uint8  `json:"a"`
	X      uint8  `json:"x"`
	Y      uint8  `json:"y"`
	SP     uint8  `json:"sp"`
	Status uint8  `json:"status"`
	Cycles uint64 `json:"cycles"`
}

func newCPUReport(s cpu.State) *CPUReport {
	return &CPUReport{PC: s.PC, A: s.A, X: s.X, Y: s.Y, SP: s.SP, Status: s.P, Cycles: s.Cycles}
}

type PPUReport struct {
	Ctrl           uint8  `json:"ctrl"`
	Mask           uint8  `json:"mask"`
	Status         uint8  `json:"status"`
	Scanline       int    `json:"scanline"`
	Cycle          int    `json:"cycle"`
	Frame          uint64 `json:"frame"`
	NMIOnVBlank    bool   `json:"nmi_on_vblank"`
	SpriteSize     int    `json:"sprite_size"`
	BGPatternTable uint16 `json:"bg_pattern_table"`
	SPPatternTable uint16 `json:"sp_pattern_table"`
	AddrInc        int    `json:"addr_inc"`
}

func newPPUReport(r ppu.Registers) *PPUReport {
	return &PPUReport{
		Ctrl:           r.Ctrl,
		Mask:           r.Mask,
		Status:         r.Status,
		Scanline:       r.Scanline,
		Cycle:          r.Cycle,
		Frame:          r.Frame,
		NMIOnVBlank:    r.NMIOnVBlank(),
		SpriteSize:     r.SpriteHeight(),
		BGPatternTable: r.BGPatternTable(),
		SPPatternTable: r.SpritePatternTable(),
		AddrInc:        r.AddressIncrement(),
	}
}

// PaletteReport groups palette RAM as read through the PPU bus.
type PaletteReport struct {
	Backdrop   Bytes    `json:"backdrop"`
	Background [4]Bytes `json:"background"`
	Sprite     [4]Bytes `json:"sprite"`
}

func newPaletteReport(peek func(uint16) uint8) *PaletteReport {
	p := &PaletteReport{Backdrop: make(Bytes, 8)}
	for i := range p.Backdrop {
		p.Backdrop[i] = peek(0x3F00 + uint16(i)*4)
	}
	for i := 0; i < 4; i++ {
		p.Background[i] = make(Bytes, 4)
		p.Sprite[i] = make(Bytes, 4)
		for j := 0; j < 4; j++ {
			p.Background[i][j] = peek(0x3F00 + uint16(i*4+j))
			p.Sprite[i][j] = peek(0x3F10 + uint16(i*4+j))
		}
	}
	return p
}

// AudioReport describes the samples captured with -wav.
type AudioReport struct {
	Path string `json:"path"`
	audio.Stats
}

// Range is an inclusive CPU address range.
type Range struct {
	Start, End uint16
}

// ParseRange parses "START:END" with hexadecimal addresses. A "$" or "0x"
// prefix is accepted.
func ParseRange(s string) (Range, error) {
	lo, hi, found := strings.Cut(s, ":")
	if !found {
		return Range{}, fmt.Errorf("range %q: expected START:END", s)
	}
	start, err := parseAddress(lo)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	end, err := parseAddress(hi)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if start > end {
		return Range{}, fmt.Errorf("range %q: start after end", s)
	}
	return Range{Start: start, End: end}, nil
}

func parseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return uint16(v), nil
}

// String formats r the way ParseRange reads it.
func (r Range) String() string {
	return fmt.Sprintf("%04X:%04X", r.Start, r.End)
}

func dump(r Range, peek func(uint16) uint8) *MemoryDump {
	d := &MemoryDump{Start: r.Start, End: r.End, Bytes: make(Bytes, 0, int(r.End)-int(r.Start)+1)}
	for addr := uint32(r.Start); addr <= uint32(r.End); addr++ {
		d.Bytes = append(d.Bytes, peek(uint16(addr)))
	}
	return d
}
