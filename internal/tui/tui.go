// Package tui is a terminal inspector for a running console: registers,
// PPU state and work RAM update as frames are stepped by hand.
package tui

import (
	"fmt"

	"github.com/jroimartin/gocui"
	"github.com/nsf/termbox-go"

	"nesprobe/internal/cartridge"
	"nesprobe/internal/cpu"
	"nesprobe/internal/ppu"
)

const (
	minWidth  = 80
	minHeight = 24

	// instructions shown below the registers
	codeLines = 4
)

// Emulator is the part of the console the inspector drives.
type Emulator interface {
	ClockFrame() error
	Reset() error
	SaveState(path string) error
	LoadState(path string) error
	Frame() uint64
	WRAM() []byte
	CPUState() cpu.State
	PPUState() ppu.Registers
	Disassemble(address uint16) (string, int)
	ROMName() string
	Cartridge() *cartridge.Cartridge
}

// Inspector holds what the views show. Its methods are safe to call
// without a terminal.
type Inspector struct {
	emu       Emulator
	statePath string
	status    string
	row       int
}

func NewInspector(emu Emulator, statePath string) *Inspector {
	i := &Inspector{emu: emu, statePath: statePath}
	i.status = fmt.Sprintf("%s loaded. n/space: frame  f: 10 frames  s/l: save/load  r: reset  q: quit", emu.ROMName())
	return i
}

// Status returns the last message.
func (i *Inspector) Status() string { return i.status }

// Step runs n frames. A jammed CPU stops the run and is reported.
func (i *Inspector) Step(n int) {
	for k := 0; k < n; k++ {
		if err := i.emu.ClockFrame(); err != nil {
			i.status = red(err.Error())
			return
		}
	}
	i.status = fmt.Sprintf("frame %d", i.emu.Frame())
}

func (i *Inspector) Save() {
	if err := i.emu.SaveState(i.statePath); err != nil {
		i.status = red("save: " + err.Error())
		return
	}
	i.status = "saved " + i.statePath
}

func (i *Inspector) Load() {
	if err := i.emu.LoadState(i.statePath); err != nil {
		i.status = red("load: " + err.Error())
		return
	}
	i.status = fmt.Sprintf("loaded %s at frame %d", i.statePath, i.emu.Frame())
}

func (i *Inspector) Reset() {
	if err := i.emu.Reset(); err != nil {
		i.status = red("reset: " + err.Error())
		return
	}
	i.status = "reset"
}

// Scroll moves the WRAM view by delta rows, staying inside the dump.
func (i *Inspector) Scroll(delta int) {
	rows := (len(i.emu.WRAM()) + 15) / 16
	i.row += delta
	if i.row > rows-1 {
		i.row = rows - 1
	}
	if i.row < 0 {
		i.row = 0
	}
}

// Code disassembles the next instructions from PC.
func (i *Inspector) Code() []string {
	pc := i.emu.CPUState().PC
	lines := make([]string, 0, codeLines)
	for k := 0; k < codeLines; k++ {
		text, size := i.emu.Disassemble(pc)
		lines = append(lines, fmt.Sprintf("$%04X  %s", pc, text))
		pc += uint16(size)
	}
	return lines
}

// Run shows the inspector until q or Ctrl-Q.
func Run(emu Emulator, statePath string) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()

	i := NewInspector(emu, statePath)
	g.SetManagerFunc(i.layout)
	if err := i.bind(g); err != nil {
		return err
	}

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (i *Inspector) bind(g *gocui.Gui) error {
	action := func(f func()) func(*gocui.Gui, *gocui.View) error {
		return func(*gocui.Gui, *gocui.View) error {
			f()
			return nil
		}
	}
	quit := func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }

	bindings := []struct {
		key     interface{}
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{'n', action(func() { i.Step(1) })},
		{gocui.KeySpace, action(func() { i.Step(1) })},
		{'f', action(func() { i.Step(10) })},
		{'s', action(i.Save)},
		{'l', action(i.Load)},
		{'r', action(i.Reset)},
		{gocui.KeyArrowDown, action(func() { i.Scroll(1) })},
		{gocui.KeyArrowUp, action(func() { i.Scroll(-1) })},
		{gocui.KeyPgdn, action(func() { i.Scroll(16) })},
		{gocui.KeyPgup, action(func() { i.Scroll(-16) })},
		{gocui.KeyCtrlL, func(*gocui.Gui, *gocui.View) error { return termbox.Sync() }},
		{'q', quit},
		{gocui.KeyCtrlQ, quit},
	}
	for _, b := range bindings {
		if err := g.SetKeybinding("", b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}
	return nil
}

// layout redraws every view from the emulator on each update.
func (i *Inspector) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	if maxX < minWidth || maxY < minHeight {
		return fmt.Errorf("terminal must be at least %dx%d (^Q to quit)", minWidth, minHeight)
	}

	mid := maxX / 2
	views := []struct {
		name, title    string
		x0, y0, x1, y1 int
		body           string
	}{
		{"cpu", "CPU", 0, 0, mid - 1, 8, FormatCPU(i.emu.CPUState(), i.Code())},
		{"ppu", "PPU", mid, 0, maxX - 1, 8, FormatPPU(i.emu.PPUState())},
		{"wram", "WRAM", 0, 9, maxX - 1, maxY - 4, Hexdump(i.emu.WRAM(), 0)},
		{"status", FormatCartridge(i.emu.ROMName(), i.emu.Cartridge()), 0, maxY - 3, maxX - 1, maxY - 1, i.status},
	}
	for _, vw := range views {
		v, err := g.SetView(vw.name, vw.x0, vw.y0, vw.x1, vw.y1)
		if err != nil && err != gocui.ErrUnknownView {
			return err
		}
		v.Title = vw.title
		v.Clear()
		fmt.Fprint(v, vw.body)
	}

	if v, err := g.View("wram"); err == nil {
		return v.SetOrigin(0, i.row)
	}
	return nil
}
