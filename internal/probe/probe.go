// Package probe loads a ROM into an emulator, runs it briefly and reports
// what it finds as JSON.
package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"nesprobe/internal/apu"
	"nesprobe/internal/audio"
	"nesprobe/internal/config"
	"nesprobe/internal/cpu"
	"nesprobe/internal/debug"
	"nesprobe/internal/graphics"
	"nesprobe/internal/ppu"
)

// Usage is printed when no ROM path is given.
const Usage = "usage: nesprobe [flags] <rom-file>"

// Console is the emulator as the probe sees it.
type Console interface {
	LoadROM(name string, rom io.Reader) error
	ClockFrame() error
	WRAM() []byte
	SaveState(path string) error
}

// Inspector is implemented by consoles that expose their internals for
// -detail, -palette and -dump-range.
type Inspector interface {
	Peek(address uint16) uint8
	PeekPPU(address uint16) uint8
	CPUState() cpu.State
	PPUState() ppu.Registers
	OAM() [256]uint8
}

// Controllable is implemented by consoles that accept controller input.
type Controllable interface {
	SetButtons(port int, mask uint8) error
}

// AudioSource is implemented by consoles that can capture APU output.
type AudioSource interface {
	SetSampleRate(rate int)
	DrainSamples() []float32
}

// Screen is implemented by consoles with a frame buffer.
type Screen interface {
	FrameBuffer() []uint32
}

// Options controls one run.
type Options struct {
	ROMPath   string
	StatePath string
	Frames    int

	// Buttons is held on controller 1 for every frame.
	Buttons   uint8
	DumpRange *Range
	Detail    bool
	Palette   bool

	Screenshot string
	WAV        string
	SampleRate int
	Open       bool

	HistogramBins  int
	HistogramWidth int
}

// Harness runs probes against consoles made by NewConsole.
type Harness struct {
	NewConsole func() Console
	Stdout     io.Writer
	Log        *debug.Logger

	// OpenFile shows an artifact to the user. Nil disables -open.
	OpenFile func(path string) error
}

// Run executes one probe and returns the process exit status.
func (h *Harness) Run(opts Options) int {
	log := h.Log
	if log == nil {
		log = debug.Discard()
	}

	if opts.ROMPath == "" {
		fmt.Fprintln(log.Writer(), Usage)
		return 1
	}
	if opts.Frames < 1 {
		opts.Frames = 1
	}
	if opts.StatePath == "" {
		opts.StatePath = config.DefaultStatePath()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = apu.DefaultSampleRate
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = 12
	}
	if opts.HistogramWidth <= 0 {
		opts.HistogramWidth = 50
	}

	rom, err := os.ReadFile(opts.ROMPath)
	if err != nil {
		log.Errorf("failed to read ROM: %v", err)
		return 1
	}
	log.Debugf("read %d bytes from %s", len(rom), opts.ROMPath)

	emu := h.NewConsole()
	if err := emu.LoadROM(filepath.Base(opts.ROMPath), bytes.NewReader(rom)); err != nil {
		log.Errorf("failed to load ROM: %v", err)
		return 1
	}

	src, capture := emu.(AudioSource)
	capture = capture && opts.WAV != ""
	if capture {
		src.SetSampleRate(opts.SampleRate)
	}
	pad, _ := emu.(Controllable)

	for i := 0; i < opts.Frames; i++ {
		if pad != nil && opts.Buttons != 0 {
			if err := pad.SetButtons(1, opts.Buttons); err != nil {
				log.Debugf("buttons: %v", err)
			}
		}
		if err := emu.ClockFrame(); err != nil {
			log.Debugf("frame %d: %v", i+1, err)
		}
	}

	wram := emu.WRAM()
	report := Report{
		WRAMSample: Sample(wram),
		WRAMSize:   len(wram),
	}
	h.inspect(emu, opts, &report, log)

	if err := emu.SaveState(opts.StatePath); err != nil {
		log.Warnf("failed to save state: %v", err)
	}
	_, err = os.Stat(opts.StatePath)
	report.StateSaved = err == nil

	var samples []float32
	if capture {
		samples = src.DrainSamples()
		stats := audio.Analyze(samples, opts.SampleRate)
		report.Audio = &AudioReport{Path: opts.WAV, Stats: stats}
		if log.Enabled(debug.LevelInfo) {
			audio.FprintHistogram(log.Writer(), samples, opts.HistogramBins, opts.HistogramWidth)
		}
	} else if opts.WAV != "" {
		log.Warnf("console cannot capture audio, skipping %s", opts.WAV)
	}

	var frame []uint32
	if opts.Screenshot != "" {
		if scr, ok := emu.(Screen); ok {
			frame = append([]uint32(nil), scr.FrameBuffer()...)
		} else {
			log.Warnf("console has no frame buffer, skipping %s", opts.Screenshot)
		}
	}
	shot := h.writeArtifacts(opts, frame, samples, capture, log)

	if opts.Open && shot {
		if h.OpenFile == nil {
			log.Warnf("cannot open %s: no viewer", opts.Screenshot)
		} else if err := h.OpenFile(opts.Screenshot); err != nil {
			log.Warnf("failed to open %s: %v", opts.Screenshot, err)
		}
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Errorf("failed to encode report: %v", err)
		return 1
	}
	fmt.Fprintln(h.Stdout, string(out))
	return 0
}

// inspect fills the optional report sections.
func (h *Harness) inspect(emu Console, opts Options, report *Report, log *debug.Logger) {
	if opts.DumpRange == nil && !opts.Detail && !opts.Palette {
		return
	}
	in, ok := emu.(Inspector)
	if !ok {
		log.Warnf("console cannot be inspected, skipping -dump-range, -detail and -palette")
		return
	}

	if opts.DumpRange != nil {
		report.Memory = dump(*opts.DumpRange, in.Peek)
	}
	if opts.Detail {
		report.CPU = newCPUReport(in.CPUState())
		report.PPU = newPPUReport(in.PPUState())
		oam := in.OAM()
		report.OAM = append(Bytes(nil), oam[:SampleSize]...)
	}
	if opts.Palette {
		report.Palette = newPaletteReport(in.PeekPPU)
	}
}

// writeArtifacts writes the screenshot and WAV concurrently. It reports
// whether the screenshot was written.
func (h *Harness) writeArtifacts(opts Options, frame []uint32, samples []float32, wav bool, log *debug.Logger) bool {
	var g errgroup.Group
	errs := make([]error, 2)

	if frame != nil {
		g.Go(func() error {
			errs[0] = graphics.SaveScreenshot(opts.Screenshot, frame)
			return errs[0]
		})
	}
	if wav {
		g.Go(func() error {
			errs[1] = audio.SaveWAV(opts.WAV, samples, opts.SampleRate)
			return errs[1]
		})
	}
	g.Wait()

	// Reported in a fixed order regardless of which write finished first.
	if errs[0] != nil {
		log.Warnf("failed to write screenshot: %v", errs[0])
	}
	if errs[1] != nil {
		log.Warnf("failed to write WAV: %v", errs[1])
	}
	return frame != nil && errs[0] == nil
}
