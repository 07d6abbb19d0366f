package probe

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nesprobe/internal/console"
	"nesprobe/internal/debug"
	"nesprobe/internal/input"
	"nesprobe/internal/testrom"
)

type stubConsole struct {
	loadErr  error
	frameErr error
	saveErr  error
	wram     []byte

	name    string
	rom     []byte
	frames  int
	buttons []uint8
}

func (s *stubConsole) LoadROM(name string, r io.Reader) error {
	s.name = name
	s.rom, _ = io.ReadAll(r)
	return s.loadErr
}

func (s *stubConsole) ClockFrame() error {
	s.frames++
	return s.frameErr
}

func (s *stubConsole) WRAM() []byte { return s.wram }

func (s *stubConsole) SaveState(path string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return os.WriteFile(path, []byte("state"), 0644)
}

func (s *stubConsole) SetButtons(port int, mask uint8) error {
	s.buttons = append(s.buttons, mask)
	return nil
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, newConsole func() Console, opts Options) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	h := &Harness{NewConsole: newConsole, Stdout: &stdout, Log: debug.New(&stderr, debug.LevelOff)}
	code := h.Run(opts)
	return result{code, stdout.String(), stderr.String()}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decode(t *testing.T, stdout string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("Expected JSON report, got %q: %v", stdout, err)
	}
	return out
}

func TestRun_MissingArgument(t *testing.T) {
	called := false
	r := run(t, func() Console { called = true; return &stubConsole{} }, Options{})

	if r.code != 1 {
		t.Errorf("Expected exit 1, got %d", r.code)
	}
	if r.stdout != "" {
		t.Errorf("Expected empty stdout, got %q", r.stdout)
	}
	if !strings.Contains(r.stderr, "usage:") {
		t.Errorf("Expected usage on stderr, got %q", r.stderr)
	}
	if called {
		t.Error("Expected no console to be created")
	}
}

func TestRun_UnreadableROM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.nes")
	r := run(t, func() Console { return &stubConsole{} }, Options{ROMPath: path})

	if r.code != 1 || r.stdout != "" {
		t.Errorf("Expected exit 1 and no report, got %d %q", r.code, r.stdout)
	}
	if !strings.Contains(r.stderr, "failed to read ROM") {
		t.Errorf("Expected read failure diagnostic, got %q", r.stderr)
	}
}

func TestRun_RejectedROM(t *testing.T) {
	path := writeFile(t, "bad.nes", []byte("junk"))
	stub := &stubConsole{loadErr: errors.New("invalid iNES magic")}
	r := run(t, func() Console { return stub }, Options{ROMPath: path})

	if r.code != 1 || r.stdout != "" {
		t.Errorf("Expected exit 1 and no report, got %d %q", r.code, r.stdout)
	}
	if !strings.Contains(r.stderr, "invalid iNES magic") {
		t.Errorf("Expected the console's reason, got %q", r.stderr)
	}
	if stub.frames != 0 {
		t.Errorf("Expected no frames after a rejected ROM, got %d", stub.frames)
	}
}

func TestRun_Report(t *testing.T) {
	rom := writeFile(t, "game.nes", []byte{1, 2, 3})
	wram := make([]byte, 2048)
	for i := range wram {
		wram[i] = byte(i * 7)
	}
	stub := &stubConsole{wram: wram, frameErr: errors.New("cpu jammed")}
	state := filepath.Join(t.TempDir(), "state.bin")

	r := run(t, func() Console { return stub }, Options{ROMPath: rom, StatePath: state})

	if r.code != 0 {
		t.Fatalf("Expected exit 0, got %d (stderr %q)", r.code, r.stderr)
	}
	if r.stderr != "" {
		t.Errorf("Expected frame errors to stay silent, got %q", r.stderr)
	}
	if stub.name != "game.nes" || !bytes.Equal(stub.rom, []byte{1, 2, 3}) {
		t.Errorf("Expected game.nes with the file bytes, got %q %v", stub.name, stub.rom)
	}
	if stub.frames != 1 {
		t.Errorf("Expected exactly one frame, got %d", stub.frames)
	}

	out := decode(t, r.stdout)
	if len(out) != 3 {
		t.Errorf("Expected exactly three keys, got %v", out)
	}
	sample := out["wram_sample"].([]interface{})
	if len(sample) != SampleSize {
		t.Fatalf("Expected %d sample bytes, got %d", SampleSize, len(sample))
	}
	for i, v := range sample {
		if v != float64(wram[i]) {
			t.Errorf("Expected sample[%d] = %d, got %v", i, wram[i], v)
		}
	}
	if out["wram_size"] != 2048.0 {
		t.Errorf("Expected wram_size 2048, got %v", out["wram_size"])
	}
	if out["state_saved"] != true {
		t.Error("Expected state_saved true")
	}
	if !strings.HasPrefix(r.stdout, "{\n  \"wram_sample\": [") {
		t.Errorf("Expected indented report, got %q", r.stdout)
	}
}

func TestRun_SnapshotFailureIsAWarning(t *testing.T) {
	rom := writeFile(t, "game.nes", []byte{0})
	state := filepath.Join(t.TempDir(), "no", "such", "dir", "state.bin")
	stub := &stubConsole{wram: make([]byte, 4), saveErr: errors.New("permission denied")}

	r := run(t, func() Console { return stub }, Options{ROMPath: rom, StatePath: state})

	if r.code != 0 {
		t.Fatalf("Expected exit 0, got %d", r.code)
	}
	out := decode(t, r.stdout)
	if out["state_saved"] != false {
		t.Error("Expected state_saved false")
	}
	if len(out["wram_sample"].([]interface{})) != 4 {
		t.Errorf("Expected short sample of 4, got %v", out["wram_sample"])
	}
	if !strings.Contains(r.stderr, "[WARN]") || !strings.Contains(r.stderr, "permission denied") {
		t.Errorf("Expected a warning line, got %q", r.stderr)
	}
}

func TestRun_FramesAndButtons(t *testing.T) {
	rom := writeFile(t, "game.nes", []byte{0})
	stub := &stubConsole{wram: make([]byte, 16)}
	mask := uint8(input.ButtonStart | input.ButtonA)

	r := run(t, func() Console { return stub }, Options{
		ROMPath:   rom,
		StatePath: filepath.Join(t.TempDir(), "s.bin"),
		Frames:    5,
		Buttons:   mask,
	})
	if r.code != 0 {
		t.Fatalf("Expected exit 0, got %d", r.code)
	}
	if stub.frames != 5 {
		t.Errorf("Expected 5 frames, got %d", stub.frames)
	}
	if len(stub.buttons) != 5 || stub.buttons[0] != mask {
		t.Errorf("Expected mask $%02X every frame, got %v", mask, stub.buttons)
	}
}

func TestRun_InspectionNeedsInspector(t *testing.T) {
	rom := writeFile(t, "game.nes", []byte{0})
	r := run(t, func() Console { return &stubConsole{} }, Options{
		ROMPath:   rom,
		StatePath: filepath.Join(t.TempDir(), "s.bin"),
		Detail:    true,
		WAV:       filepath.Join(t.TempDir(), "out.wav"),
	})
	if r.code != 0 {
		t.Fatalf("Expected exit 0, got %d", r.code)
	}
	if len(decode(t, r.stdout)) != 3 {
		t.Errorf("Expected only the base keys, got %s", r.stdout)
	}
	if !strings.Contains(r.stderr, "cannot be inspected") || !strings.Contains(r.stderr, "cannot capture audio") {
		t.Errorf("Expected capability warnings, got %q", r.stderr)
	}
}

func realConsole() Console { return console.New() }

func TestRun_RealConsoleIsIdempotent(t *testing.T) {
	rom := writeFile(t, "writer.nes", testrom.Build(testrom.WRAMWriter(0xDE, 0xAD, 0xBE, 0xEF)))
	state := filepath.Join(t.TempDir(), "state.bin")

	var reports []string
	for i := 0; i < 2; i++ {
		r := run(t, realConsole, Options{ROMPath: rom, StatePath: state})
		if r.code != 0 {
			t.Fatalf("Run %d: expected exit 0, got %d (%s)", i, r.code, r.stderr)
		}
		reports = append(reports, r.stdout)
	}
	if reports[0] != reports[1] {
		t.Errorf("Expected identical reports, got\n%s\n%s", reports[0], reports[1])
	}

	out := decode(t, reports[0])
	sample := out["wram_sample"].([]interface{})
	want := []float64{0xDE, 0xAD, 0xBE, 0xEF}
	for i, w := range want {
		if sample[i] != w {
			t.Errorf("Expected sample[%d] = %v, got %v", i, w, sample[i])
		}
	}
	if out["wram_size"] != 2048.0 || out["state_saved"] != true {
		t.Errorf("Expected 2048 bytes and a saved state, got %v", out)
	}
}

func TestRun_RealConsoleRejectsBadImages(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"empty", []byte{}, "too small"},
		{"bad magic", append([]byte("NOPE"), make([]byte, 32)...), "invalid ines header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rom := writeFile(t, "bad.nes", tt.data)
			r := run(t, realConsole, Options{ROMPath: rom})
			if r.code != 1 {
				t.Errorf("Expected exit 1, got %d", r.code)
			}
			if !strings.Contains(strings.ToLower(r.stderr), tt.reason) {
				t.Errorf("Expected %q in diagnostic, got %q", tt.reason, r.stderr)
			}
		})
	}
}

func TestRun_OptionalSections(t *testing.T) {
	rom := writeFile(t, "writer.nes", testrom.Build(testrom.WRAMWriter(1, 2, 3)))
	dir := t.TempDir()
	shot := filepath.Join(dir, "frame.png")
	wav := filepath.Join(dir, "out.wav")

	var opened string
	var stdout, stderr bytes.Buffer
	h := &Harness{
		NewConsole: realConsole,
		Stdout:     &stdout,
		Log:        debug.New(&stderr, debug.LevelInfo),
		OpenFile:   func(path string) error { opened = path; return nil },
	}
	code := h.Run(Options{
		ROMPath:    rom,
		StatePath:  filepath.Join(dir, "state.bin"),
		Frames:     2,
		DumpRange:  &Range{Start: 0x0000, End: 0x0003},
		Detail:     true,
		Palette:    true,
		Screenshot: shot,
		WAV:        wav,
		SampleRate: 22050,
		Open:       true,
	})
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d (%s)", code, stderr.String())
	}

	out := decode(t, stdout.String())
	mem := out["memory"].(map[string]interface{})
	if got := mem["bytes"].([]interface{}); len(got) != 4 || got[2] != 3.0 {
		t.Errorf("Expected bytes [1 2 3 x], got %v", got)
	}
	cpu := out["cpu"].(map[string]interface{})
	if cpu["sp"] == nil || cpu["cycles"].(float64) == 0 {
		t.Errorf("Expected CPU registers, got %v", cpu)
	}
	ppu := out["ppu"].(map[string]interface{})
	if ppu["frame"] != 2.0 || ppu["sprite_size"] != 8.0 || ppu["addr_inc"] != 1.0 {
		t.Errorf("Expected PPU detail at frame 2, got %v", ppu)
	}
	if oam := out["oam"].([]interface{}); len(oam) != SampleSize {
		t.Errorf("Expected %d OAM bytes, got %d", SampleSize, len(oam))
	}
	pal := out["palette"].(map[string]interface{})
	if len(pal["backdrop"].([]interface{})) != 8 || len(pal["sprite"].([]interface{})) != 4 {
		t.Errorf("Expected 8 backdrop entries and 4 sprite palettes, got %v", pal)
	}
	a := out["audio"].(map[string]interface{})
	if a["path"] != wav || a["sample_rate"] != 22050.0 || a["is_silence"] != true {
		t.Errorf("Expected silent capture at 22050 Hz, got %v", a)
	}

	for _, p := range []string{shot, wav} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist: %v", p, err)
		}
	}
	if opened != shot {
		t.Errorf("Expected %s to be opened, got %q", shot, opened)
	}
	if !strings.Contains(stderr.String(), "samples") && !strings.Contains(stderr.String(), "%") {
		t.Errorf("Expected a histogram at verbosity 1, got %q", stderr.String())
	}
}

func TestRun_ArtifactFailuresAreWarnings(t *testing.T) {
	rom := writeFile(t, "loop.nes", testrom.Build(nil))
	missing := filepath.Join(t.TempDir(), "no", "dir")

	r := run(t, realConsole, Options{
		ROMPath:    rom,
		StatePath:  filepath.Join(t.TempDir(), "state.bin"),
		Screenshot: filepath.Join(missing, "shot.png"),
		WAV:        filepath.Join(missing, "out.wav"),
		Open:       true,
	})
	if r.code != 0 {
		t.Fatalf("Expected exit 0, got %d", r.code)
	}
	shot := strings.Index(r.stderr, "failed to write screenshot")
	wav := strings.Index(r.stderr, "failed to write WAV")
	if shot < 0 || wav < 0 || shot > wav {
		t.Errorf("Expected screenshot then WAV warnings, got %q", r.stderr)
	}
	if strings.Contains(r.stderr, "cannot open") {
		t.Errorf("Expected no open attempt after a failed screenshot, got %q", r.stderr)
	}
}

func TestSample(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want int
	}{
		{"nil", nil, 0},
		{"short", []byte{1, 2, 3}, 3},
		{"exact", make([]byte, 16), 16},
		{"long", make([]byte, 2048), 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sample(tt.in)
			if len(got) != tt.want {
				t.Errorf("Expected %d bytes, got %d", tt.want, len(got))
			}
		})
	}

	src := []byte{9, 9}
	got := Sample(src)
	src[0] = 0
	if got[0] != 9 {
		t.Error("Expected Sample to copy")
	}
}

func TestBytes_MarshalJSON(t *testing.T) {
	tests := []struct {
		in   Bytes
		want string
	}{
		{nil, "[]"},
		{Bytes{}, "[]"},
		{Bytes{0, 255, 16}, "[0,255,16]"},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.in)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(got) != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"0000:000F", Range{0, 0x0F}, false},
		{"$6000:$60ff", Range{0x6000, 0x60FF}, false},
		{"0x8000:0xFFFF", Range{0x8000, 0xFFFF}, false},
		{"10:10", Range{0x10, 0x10}, false},
		{"0010:000F", Range{}, true},
		{"0000:10000", Range{}, true},
		{"0000", Range{}, true},
		{"zz:10", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %t, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDump_EndOfAddressSpace(t *testing.T) {
	d := dump(Range{Start: 0xFFFE, End: 0xFFFF}, func(a uint16) uint8 { return uint8(a) })
	if len(d.Bytes) != 2 || d.Bytes[1] != 0xFF {
		t.Errorf("Expected [FE FF], got %v", d.Bytes)
	}
}
