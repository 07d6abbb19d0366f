package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"nesprobe/internal/cartridge"
	"nesprobe/internal/console"
	"nesprobe/internal/cpu"
	"nesprobe/internal/ppu"
	"nesprobe/internal/testrom"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func loaded(t *testing.T, program []byte) *console.Console {
	t.Helper()
	c := console.New()
	if err := c.LoadROM("test.nes", bytes.NewReader(testrom.Build(program))); err != nil {
		t.Fatalf("LoadROM failed: %v", err)
	}
	return c
}

func TestFlags(t *testing.T) {
	tests := []struct {
		p    uint8
		want string
	}{
		{0x00, "........"},
		{0xFF, "NV-BDIZC"},
		{0x24, "..-..I.."},
		{0x83, "N.....ZC"},
	}
	for _, tt := range tests {
		if got := Flags(tt.p); got != tt.want {
			t.Errorf("Flags($%02X): expected %s, got %s", tt.p, tt.want, got)
		}
	}
}

func TestFormatCPU(t *testing.T) {
	s := cpu.State{PC: 0x8000, A: 0x01, X: 0x02, Y: 0x03, SP: 0xFD, P: 0x24, Cycles: 7}
	out := FormatCPU(s, []string{"$8000  JMP $8000", "$8003  BRK"})

	for _, want := range []string{"PC: $8000", "SP: $FD", "A: $01", "X: $02", "Y: $03", "cyc: 7", "> $8000  JMP $8000", "  $8003  BRK"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "JAMMED") {
		t.Error("Expected no jam line for a running CPU")
	}

	s.Jammed, s.JamPC, s.JamOpcode = true, 0x8001, 0x02
	if out := FormatCPU(s, nil); !strings.Contains(out, "JAMMED at $8001 (opcode $02)") {
		t.Errorf("Expected jam line, got:\n%s", out)
	}
}

func TestFormatPPU(t *testing.T) {
	r := ppu.Registers{Ctrl: 0xA4, Mask: 0x1E, Status: 0x80, Scanline: 241, Cycle: 1, Frame: 3}
	out := FormatPPU(r)
	for _, want := range []string{"CTRL: $A4", "MASK: $1E", "line 241", "frame 3", "NMI on", "spr 8x16", "inc 32"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestHexdump(t *testing.T) {
	data := []byte("Hello, NES!\x00\x01\x02\x03\x04ABC")
	out := Hexdump(data, 0x0100)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 rows, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "0100: 48 65 6C 6C 6F 2C 20 4E  45 53 21 00") {
		t.Errorf("Unexpected first row %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "|Hello, NES!.....|") {
		t.Errorf("Expected ASCII column, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0110: 41 42 43 ") || !strings.HasSuffix(lines[1], "|ABC|") {
		t.Errorf("Unexpected short row %q", lines[1])
	}
	if Hexdump(nil, 0) != "" {
		t.Error("Expected empty dump for no data")
	}
}

func TestInspector_Actions(t *testing.T) {
	c := loaded(t, testrom.WRAMWriter(0x11))
	path := filepath.Join(t.TempDir(), "state.bin")
	i := NewInspector(c, path)

	if !strings.Contains(i.Status(), "test.nes loaded") {
		t.Errorf("Expected greeting, got %q", i.Status())
	}

	i.Step(1)
	if i.Status() != "frame 1" {
		t.Errorf("Expected frame 1, got %q", i.Status())
	}
	i.Save()
	if i.Status() != "saved "+path {
		t.Errorf("Expected save message, got %q", i.Status())
	}
	i.Step(10)
	if c.Frame() != 11 {
		t.Errorf("Expected frame 11, got %d", c.Frame())
	}
	i.Load()
	if c.Frame() != 1 || !strings.Contains(i.Status(), "at frame 1") {
		t.Errorf("Expected restore to frame 1, got %d %q", c.Frame(), i.Status())
	}
	i.Reset()
	if c.Frame() != 0 || i.Status() != "reset" {
		t.Errorf("Expected reset, got %d %q", c.Frame(), i.Status())
	}
}

func TestInspector_Errors(t *testing.T) {
	c := loaded(t, []byte{0x02}) // KIL
	i := NewInspector(c, filepath.Join(t.TempDir(), "missing", "state.bin"))

	i.Step(1)
	if !strings.Contains(i.Status(), "$8000") {
		t.Errorf("Expected jam report, got %q", i.Status())
	}
	i.Load()
	if !strings.HasPrefix(i.Status(), "load: ") {
		t.Errorf("Expected load error, got %q", i.Status())
	}
	i.Save()
	if !strings.HasPrefix(i.Status(), "save: ") {
		t.Errorf("Expected save error, got %q", i.Status())
	}
}

func TestInspector_Scroll(t *testing.T) {
	i := NewInspector(loaded(t, nil), "")
	tests := []struct {
		delta, want int
	}{
		{-1, 0},
		{16, 16},
		{1000, 127},
		{-16, 111},
		{-1000, 0},
	}
	for _, tt := range tests {
		i.Scroll(tt.delta)
		if i.row != tt.want {
			t.Errorf("Scroll(%d): expected row %d, got %d", tt.delta, tt.want, i.row)
		}
	}
}

func TestInspector_Code(t *testing.T) {
	i := NewInspector(loaded(t, testrom.WRAMWriter(0x42)), "")
	code := i.Code()
	want := []string{"$8000  LDA #$42", "$8002  STA $00", "$8004  JMP $8004", "$8007  BRK"}
	if len(code) != len(want) {
		t.Fatalf("Expected %d lines, got %v", len(want), code)
	}
	for k := range want {
		if code[k] != want[k] {
			t.Errorf("Line %d: expected %q, got %q", k, want[k], code[k])
		}
	}
}

func TestFormatCartridge(t *testing.T) {
	tests := []struct {
		name string
		opts testrom.Options
		want string
	}{
		{"chr rom", testrom.Options{CHRBanks: 1}, "a.nes  mapper 0  PRG 16K  CHR 8K ROM  horizontal"},
		{"chr ram", testrom.Options{PRGBanks: 2, Flags6: 0x01}, "a.nes  mapper 0  PRG 32K  CHR 8K RAM  vertical"},
		{"battery", testrom.Options{CHRBanks: 1, Flags6: 0x02}, "a.nes  mapper 0  PRG 16K  CHR 8K ROM  horizontal  battery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := cartridge.Parse(testrom.BuildWith(tt.opts))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := FormatCartridge("a.nes", c); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	if got := FormatCartridge("none", nil); got != "none" {
		t.Errorf("Expected bare name, got %q", got)
	}
}
