package harness

import "nesprobe/internal/console"

// State is the getState payload.
type State struct {
	Frame       uint64           `json:"frame"`
	CPU         CPUState         `json:"cpu"`
	PPU         PPUState         `json:"ppu"`
	OAM         []int            `json:"oam"`
	Controllers map[string][]int `json:"controllers"`
}

type CPUState struct {
	PC     uint16 `json:"pc"`
	A      uint8  `json:"a"`
	X      uint8  `json:"x"`
	Y      uint8  `json:"y"`
	SP     uint8  `json:"sp"`
	Status uint8  `json:"status"`
	Mem    []int  `json:"mem"`
}

type PPUState struct {
	Ctrl           uint8 `json:"ctrl"`
	Mask           uint8 `json:"mask"`
	Status         uint8 `json:"status"`
	NMIOnVBlank    int   `json:"nmiOnVblank"`
	SpriteSize     int   `json:"spriteSize"`
	BGPatternTable int   `json:"bgPatternTable"`
	SPPatternTable int   `json:"spPatternTable"`
}

// ints keeps byte slices as JSON number arrays instead of base64.
func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}

// buttonStates expands a controller mask into eight 0/1 entries in
// A, B, Select, Start, Up, Down, Left, Right order.
func buttonStates(mask uint8) []int {
	out := make([]int, 8)
	for i := range out {
		out[i] = int(mask>>i) & 1
	}
	return out
}

func snapshot(emu *console.Console) State {
	c := emu.CPUState()
	r := emu.PPUState()
	oam := emu.OAM()
	pads := emu.Controllers()

	return State{
		Frame: emu.Frame(),
		CPU: CPUState{
			PC: c.PC, A: c.A, X: c.X, Y: c.Y, SP: c.SP, Status: c.P,
			Mem: ints(emu.WRAM()),
		},
		PPU: PPUState{
			Ctrl:           r.Ctrl,
			Mask:           r.Mask,
			Status:         r.Status,
			NMIOnVBlank:    bit(r.NMIOnVBlank()),
			SpriteSize:     bit(r.SpriteHeight() == 16),
			BGPatternTable: bit(r.BGPatternTable() != 0),
			SPPatternTable: bit(r.SpritePatternTable() != 0),
		},
		OAM: ints(oam[:]),
		Controllers: map[string][]int{
			"1": buttonStates(pads[0]),
			"2": buttonStates(pads[1]),
		},
	}
}
