package harness

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nesprobe/internal/debug"
	"nesprobe/internal/testrom"
)

// writeROM stores an image that writes $42 to $0000.
func writeROM(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.nes")
	if err := os.WriteFile(path, testrom.Build(testrom.WRAMWriter(0x42)), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func request(cmd string, args interface{}) []byte {
	req := map[string]interface{}{"cmd": cmd}
	if args != nil {
		req["args"] = args
	}
	data, _ := json.Marshal(req)
	return data
}

// roundTrip passes resp through JSON so numbers compare as float64.
func roundTrip(t *testing.T, resp Response) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func mustOK(t *testing.T, s *Session, cmd string, args interface{}) map[string]interface{} {
	t.Helper()
	resp, _ := s.Handle(request(cmd, args))
	out := roundTrip(t, resp)
	if out["status"] != "ok" {
		t.Fatalf("%s: expected ok, got %v", cmd, out)
	}
	return out
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		message string
	}{
		{"invalid json", `{"cmd":`, "Invalid JSON"},
		{"unknown command", `{"cmd":"explode"}`, "Unknown command: explode"},
		{"frame before load", `{"cmd":"frame"}`, "No ROM loaded"},
		{"state before load", `{"cmd":"getState"}`, "No ROM loaded"},
		{"missing rom", `{"cmd":"loadRom","args":{"path":"/nonexistent/x.nes"}}`, "ROM not found"},
		{"missing path", `{"cmd":"loadRom"}`, "Missing path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(nil, 0)
			resp, quit := s.Handle([]byte(tt.line))
			if quit {
				t.Error("Expected session to continue")
			}
			if resp["status"] != "error" {
				t.Fatalf("Expected error status, got %v", resp)
			}
			if msg, _ := resp["message"].(string); !strings.Contains(msg, tt.message) {
				t.Errorf("Expected message containing %q, got %q", tt.message, msg)
			}
		})
	}
}

func TestHandle_BadROM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nes")
	os.WriteFile(path, []byte("garbage"), 0644)

	resp, _ := NewSession(nil, 0).Handle(request("loadRom", map[string]string{"path": path}))
	if resp["status"] != "error" || !strings.Contains(resp["message"].(string), "Failed to load ROM") {
		t.Errorf("Expected load failure, got %v", resp)
	}
}

func TestHandle_FrameAndState(t *testing.T) {
	s := NewSession(nil, 0)
	mustOK(t, s, "loadRom", map[string]string{"path": writeROM(t)})

	out := mustOK(t, s, "frame", nil)
	if out["frame"] != 1.0 {
		t.Errorf("Expected frame 1, got %v", out["frame"])
	}
	out = mustOK(t, s, "frame", map[string]int{"count": 3})
	if out["frame"] != 4.0 {
		t.Errorf("Expected frame 4, got %v", out["frame"])
	}

	mustOK(t, s, "buttonDown", map[string]interface{}{"button": "start"})
	mustOK(t, s, "buttonDown", map[string]interface{}{"controller": 2, "button": "B"})

	data := mustOK(t, s, "getState", nil)["data"].(map[string]interface{})
	if data["frame"] != 4.0 {
		t.Errorf("Expected state frame 4, got %v", data["frame"])
	}
	cpu := data["cpu"].(map[string]interface{})
	mem := cpu["mem"].([]interface{})
	if len(mem) != 2048 || mem[0] != float64(0x42) {
		t.Errorf("Expected 2048 bytes starting $42, got %d starting %v", len(mem), mem[0])
	}
	if oam := data["oam"].([]interface{}); len(oam) != 256 {
		t.Errorf("Expected 256 OAM bytes, got %d", len(oam))
	}
	pads := data["controllers"].(map[string]interface{})
	if got := pads["1"].([]interface{})[3]; got != 1.0 {
		t.Errorf("Expected Start held on pad 1, got %v", got)
	}
	if got := pads["2"].([]interface{})[1]; got != 1.0 {
		t.Errorf("Expected B held on pad 2, got %v", got)
	}

	mustOK(t, s, "buttonUp", map[string]interface{}{"button": "START"})
	data = mustOK(t, s, "getState", nil)["data"].(map[string]interface{})
	if got := data["controllers"].(map[string]interface{})["1"].([]interface{})[3]; got != 0.0 {
		t.Errorf("Expected Start released, got %v", got)
	}

	mustOK(t, s, "reset", nil)
	data = mustOK(t, s, "getState", nil)["data"].(map[string]interface{})
	if data["frame"] != 0.0 {
		t.Errorf("Expected frame 0 after reset, got %v", data["frame"])
	}
}

func TestHandle_ButtonErrors(t *testing.T) {
	s := NewSession(nil, 0)
	mustOK(t, s, "loadRom", map[string]string{"path": writeROM(t)})

	resp, _ := s.Handle(request("buttonDown", map[string]string{"button": "Turbo"}))
	if resp["message"] != "Unknown button: Turbo" {
		t.Errorf("Expected unknown button error, got %v", resp)
	}
	resp, _ = s.Handle(request("buttonDown", map[string]interface{}{"controller": 5, "button": "A"}))
	if resp["status"] != "error" {
		t.Errorf("Expected error for controller 5, got %v", resp)
	}
}

func TestHandle_CaptureAudio(t *testing.T) {
	s := NewSession(nil, 22050)
	mustOK(t, s, "loadRom", map[string]string{"path": writeROM(t)})

	out := mustOK(t, s, "captureAudio", map[string]int{"frames": 2})
	if out["frame"] != 2.0 {
		t.Errorf("Expected frame 2, got %v", out["frame"])
	}
	samples := int(out["samples"].(float64))
	if samples < 700 || samples > 780 {
		t.Errorf("Expected about 735 samples for 2 frames at 22050 Hz, got %d", samples)
	}
	wav, err := base64.StdEncoding.DecodeString(out["wav"].(string))
	if err != nil {
		t.Fatalf("Expected base64 WAV, got %v", err)
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) || len(wav) != 44+2*samples {
		t.Errorf("Expected %d-byte WAV, got %d bytes", 44+2*samples, len(wav))
	}

	if s.emu.SampleRate() != 0 {
		t.Error("Expected capture to be switched off afterwards")
	}
}

func TestHandle_SaveLoadState(t *testing.T) {
	s := NewSession(nil, 0)
	mustOK(t, s, "loadRom", map[string]string{"path": writeROM(t)})
	mustOK(t, s, "frame", map[string]int{"count": 2})

	path := filepath.Join(t.TempDir(), "state.bin")
	mustOK(t, s, "saveState", map[string]string{"path": path})
	mustOK(t, s, "frame", map[string]int{"count": 5})

	out := mustOK(t, s, "loadState", map[string]string{"path": path})
	if out["frame"] != 2.0 {
		t.Errorf("Expected frame 2 after restore, got %v", out["frame"])
	}

	resp, _ := s.Handle(request("loadState", map[string]string{"path": path + ".missing"}))
	if resp["status"] != "error" {
		t.Errorf("Expected error for missing state, got %v", resp)
	}
	resp, _ = s.Handle(request("saveState", nil))
	if resp["status"] != "error" {
		t.Errorf("Expected error without path, got %v", resp)
	}
}

func TestHandle_SetVerbosityAndQuit(t *testing.T) {
	var logs bytes.Buffer
	s := NewSession(debug.New(&logs, 0), 0)

	out := mustOK(t, s, "setVerbosity", map[string]int{"level": 1})
	if out["verbosity"] != 1.0 {
		t.Errorf("Expected verbosity 1, got %v", out["verbosity"])
	}
	if !strings.Contains(logs.String(), "verbosity set to 1") {
		t.Errorf("Expected info line, got %q", logs.String())
	}

	resp, quit := s.Handle(request("quit", nil))
	if !quit || resp["status"] != "quit" {
		t.Errorf("Expected quit, got %v %t", resp, quit)
	}
}

func TestServe_Stream(t *testing.T) {
	rom := writeROM(t)
	in := strings.Join([]string{
		string(request("loadRom", map[string]string{"path": rom})),
		"",
		string(request("frame", nil)),
		"not json",
		string(request("quit", nil)),
		string(request("frame", nil)),
	}, "\n")

	var out bytes.Buffer
	if err := NewSession(nil, 0).Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var statuses []string
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("Expected JSON line, got %q", sc.Text())
		}
		statuses = append(statuses, r["status"].(string))
	}
	want := []string{"ready", "ok", "ok", "error", "quit"}
	if strings.Join(statuses, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, statuses)
	}
}

func TestServe_EOFEndsSession(t *testing.T) {
	var out bytes.Buffer
	if err := NewSession(nil, 0).Serve(context.Background(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != `{"status":"ready"}` {
		t.Errorf("Expected only the ready line, got %q", out.String())
	}
}

func TestServe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := NewSession(nil, 0).Serve(ctx, strings.NewReader(`{"cmd":"quit"}`+"\n"), &out)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
