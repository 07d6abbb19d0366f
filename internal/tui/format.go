package tui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"nesprobe/internal/cartridge"
	"nesprobe/internal/cpu"
	"nesprobe/internal/ppu"
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// Flags renders the status register as NV-BDIZC, with clear bits as '.'.
func Flags(p uint8) string {
	const names = "NV-BDIZC"
	var b strings.Builder
	for i := 0; i < 8; i++ {
		if p&(0x80>>i) != 0 {
			b.WriteByte(names[i])
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// FormatCPU renders the register file followed by the upcoming
// instructions.
func FormatCPU(s cpu.State, code []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC: %s  SP: %s  P: %s %s\n",
		white(fmt.Sprintf("$%04X", s.PC)), white(fmt.Sprintf("$%02X", s.SP)),
		white(fmt.Sprintf("$%02X", s.P)), Flags(s.P))
	fmt.Fprintf(&b, "A: %s  X: %s  Y: %s  cyc: %d\n",
		white(fmt.Sprintf("$%02X", s.A)), white(fmt.Sprintf("$%02X", s.X)),
		white(fmt.Sprintf("$%02X", s.Y)), s.Cycles)
	if s.Jammed {
		fmt.Fprintf(&b, "%s at $%04X (opcode $%02X)\n", red("JAMMED"), s.JamPC, s.JamOpcode)
	}
	for i, line := range code {
		if i == 0 {
			fmt.Fprintf(&b, "%s %s\n", green(">"), line)
		} else {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

// FormatPPU renders the PPU registers and beam position.
func FormatPPU(r ppu.Registers) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CTRL: $%02X  MASK: $%02X  STATUS: $%02X\n", r.Ctrl, r.Mask, r.Status)
	fmt.Fprintf(&b, "V: $%04X  T: $%04X  X: %d  W: %t\n", r.V, r.T, r.FineX, r.W)
	fmt.Fprintf(&b, "line %d  dot %d  frame %d\n", r.Scanline, r.Cycle, r.Frame)
	fmt.Fprintf(&b, "NMI %s  spr 8x%d  bg $%04X  spr $%04X  inc %d\n",
		onOff(r.NMIOnVBlank()), r.SpriteHeight(), r.BGPatternTable(),
		r.SpritePatternTable(), r.AddressIncrement())
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Hexdump renders data in rows of 16 bytes starting at base, with an
// ASCII column.
func Hexdump(data []byte, base uint16) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		b.WriteString(yellow(fmt.Sprintf("%04X", int(base)+off)))
		b.WriteString(": ")
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02X ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('|')
		for _, c := range row {
			if c < 0x20 || c > 0x7E {
				c = '.'
			}
			b.WriteByte(c)
		}
		b.WriteString("|\n")
	}
	return b.String()
}

// FormatCartridge summarizes the iNES header of c.
func FormatCartridge(name string, c *cartridge.Cartridge) string {
	if c == nil {
		return name
	}
	chr := "ROM"
	if c.HasCHRRAM() {
		chr = "RAM"
	}
	s := fmt.Sprintf("%s  mapper %d  PRG %dK  CHR %dK %s  %s",
		name, c.MapperID(), c.PRGSize()/1024, c.CHRSize()/1024, chr, c.Mirror())
	if c.HasBattery() {
		s += "  battery"
	}
	return s
}
