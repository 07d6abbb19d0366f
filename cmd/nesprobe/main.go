// Package main implements the nesprobe command.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/skratchdot/open-golang/open"

	"nesprobe/internal/audio"
	"nesprobe/internal/config"
	"nesprobe/internal/console"
	"nesprobe/internal/debug"
	"nesprobe/internal/graphics"
	"nesprobe/internal/harness"
	"nesprobe/internal/input"
	"nesprobe/internal/probe"
	"nesprobe/internal/tui"
	"nesprobe/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type flags struct {
	configFile string
	frames     int
	statePath  string
	dumpRange  string
	detail     bool
	palette    bool
	buttons    string
	screenshot string
	wav        string
	open       bool
	verbosity  int
	version    bool

	serve   bool
	listen  string
	tui     bool
	show    bool
	analyze string
}

func newFlagSet(f *flags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("nesprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, probe.Usage)
		fmt.Fprintln(stderr, "       nesprobe -serve | -listen ADDR | -analyze WAV")
		fmt.Fprintln(stderr, "       nesprobe -tui | -show <rom-file>")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.configFile, "config", "", "Path to JSON configuration file")
	fs.IntVar(&f.frames, "frames", 1, "Number of frames to run")
	fs.StringVar(&f.statePath, "state", config.DefaultStatePath(), "Savestate output path")
	fs.StringVar(&f.dumpRange, "dump-range", "", "Dump CPU memory START:END (hex, inclusive)")
	fs.BoolVar(&f.detail, "detail", false, "Include CPU, PPU and OAM state")
	fs.BoolVar(&f.palette, "palette", false, "Include palette RAM")
	fs.StringVar(&f.buttons, "buttons", "", "Buttons held on controller 1, e.g. A,Start")
	fs.StringVar(&f.screenshot, "screenshot", "", "Write the last frame to PATH (.png or .ppm)")
	fs.StringVar(&f.wav, "wav", "", "Capture audio to a WAV file at PATH")
	fs.BoolVar(&f.open, "open", false, "Open the screenshot in the default viewer")
	fs.IntVar(&f.verbosity, "v", 0, "Verbosity: 0 off, 1 info, 2 debug")
	fs.BoolVar(&f.version, "version", false, "Show version information")

	fs.BoolVar(&f.serve, "serve", false, "Speak the JSON command protocol on stdin/stdout")
	fs.StringVar(&f.listen, "listen", "", "Serve the JSON command protocol over WebSocket at ADDR")
	fs.BoolVar(&f.tui, "tui", false, "Inspect the ROM in a terminal UI")
	fs.BoolVar(&f.show, "show", false, "Run the ROM in a window")
	fs.StringVar(&f.analyze, "analyze", "", "Print statistics for a WAV file")
	return fs
}

// loadConfig reads the config file, then applies the flags the user set.
func loadConfig(fs *flag.FlagSet, f *flags) (*config.Config, error) {
	cfg := config.NewConfig()
	if f.configFile != "" {
		if err := cfg.LoadFromFile(f.configFile); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "frames":
			cfg.Probe.Frames = f.frames
		case "state":
			cfg.Probe.StatePath = f.statePath
		case "detail":
			cfg.Probe.Detail = f.detail
		case "palette":
			cfg.Probe.Palette = f.palette
		case "buttons":
			cfg.Probe.Buttons = f.buttons
		case "screenshot":
			cfg.Probe.Screenshot = f.screenshot
		case "wav":
			cfg.Probe.WAV = f.wav
		case "v":
			cfg.Debug.Verbosity = f.verbosity
		case "listen":
			cfg.Server.Listen = f.listen
		}
	})
	return cfg, cfg.Validate()
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var f flags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if f.version {
		fmt.Fprintln(stdout, version.GetDetailedVersion())
		if f.verbosity > 0 {
			version.FprintBuildInfo(stdout)
		}
		return 0
	}

	cfg, err := loadConfig(fs, &f)
	if err != nil {
		fmt.Fprintf(stderr, "nesprobe: %v\n", err)
		return 1
	}
	log := debug.New(stderr, debug.LevelFromEnv(cfg.Debug.Verbosity))
	log.Debugf("%s", version.GetVersion())

	switch {
	case f.analyze != "":
		return analyze(f.analyze, stdout, log)
	case f.serve:
		// Ends on quit or EOF; an interrupt kills the process as usual.
		return exitStatus(log, harness.NewSession(log, cfg.Audio.SampleRate).Serve(context.Background(), stdin, stdout))
	case cfg.Server.Listen != "":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return exitStatus(log, harness.NewServer(cfg.Server.Listen, log, cfg.Audio.SampleRate).ListenAndServe(ctx))
	case f.tui, f.show:
		emu, ok := loadConsole(fs.Arg(0), log)
		if !ok {
			return 1
		}
		if f.tui {
			return exitStatus(log, tui.Run(emu, cfg.Probe.StatePath))
		}
		return exitStatus(log, graphics.Run(emu, graphics.ViewerConfig{
			Title:   cfg.Window.Title + " - " + emu.ROMName(),
			Scale:   cfg.Window.Scale,
			OnError: func(err error) { log.Warnf("emulation stopped: %v", err) },
		}))
	}

	opts := probe.Options{
		ROMPath:        fs.Arg(0),
		StatePath:      cfg.Probe.StatePath,
		Frames:         cfg.Probe.Frames,
		Detail:         cfg.Probe.Detail,
		Palette:        cfg.Probe.Palette,
		Screenshot:     cfg.Probe.Screenshot,
		WAV:            cfg.Probe.WAV,
		SampleRate:     cfg.Audio.SampleRate,
		Open:           f.open,
		HistogramBins:  cfg.Audio.HistogramBins,
		HistogramWidth: cfg.Audio.HistogramWidth,
	}
	// Validate has already rejected bad names.
	opts.Buttons, _ = input.ParseButtons(cfg.Probe.Buttons)
	if f.dumpRange != "" {
		r, err := probe.ParseRange(f.dumpRange)
		if err != nil {
			fmt.Fprintf(stderr, "nesprobe: -dump-range: %v\n", err)
			return 1
		}
		opts.DumpRange = &r
	}

	h := &probe.Harness{
		NewConsole: func() probe.Console { return console.New() },
		Stdout:     stdout,
		Log:        log,
		OpenFile:   open.Start,
	}
	return h.Run(opts)
}

func exitStatus(log *debug.Logger, err error) int {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("%v", err)
		return 1
	}
	return 0
}

func loadConsole(path string, log *debug.Logger) (*console.Console, bool) {
	if path == "" {
		fmt.Fprintln(log.Writer(), probe.Usage)
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("failed to read ROM: %v", err)
		return nil, false
	}
	emu := console.New()
	if err := emu.LoadROM(path, bytes.NewReader(data)); err != nil {
		log.Errorf("failed to load ROM: %v", err)
		return nil, false
	}
	return emu, true
}

func analyze(path string, stdout io.Writer, log *debug.Logger) int {
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("failed to open WAV: %v", err)
		return 1
	}
	defer f.Close()

	samples, rate, err := audio.ReadWAV(f)
	if err != nil {
		log.Errorf("failed to read %s: %v", path, err)
		return 1
	}
	out, err := json.MarshalIndent(audio.Analyze(samples, rate), "", "  ")
	if err != nil {
		log.Errorf("failed to encode stats: %v", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}
