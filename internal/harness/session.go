// Package harness exposes the console through a line-oriented JSON
// command protocol, over stdio or WebSocket.
//
// Each request is one JSON object, {"cmd": NAME, "args": {...}}, and
// gets exactly one JSON object back. A {"status":"ready"} line is sent
// before the first request is read.
package harness

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"nesprobe/internal/audio"
	"nesprobe/internal/console"
	"nesprobe/internal/debug"
	"nesprobe/internal/input"
)

// Request is one command.
type Request struct {
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args"`
}

// Response is one reply. Every reply carries "status": "ok", "error",
// "ready" or "quit".
type Response map[string]interface{}

func ok(kv ...interface{}) Response {
	r := Response{"status": "ok"}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func fail(format string, args ...interface{}) Response {
	return Response{"status": "error", "message": fmt.Sprintf(format, args...)}
}

var (
	readyResponse = Response{"status": "ready"}
	quitResponse  = Response{"status": "quit"}
)

// Session owns one console for the lifetime of a connection.
type Session struct {
	emu        *console.Console
	log        *debug.Logger
	sampleRate int
}

// NewSession creates a session with no ROM loaded. Audio captured by
// captureAudio is encoded at sampleRate. The session logs through its
// own copy of log, so setVerbosity only affects this session.
func NewSession(log *debug.Logger, sampleRate int) *Session {
	if log == nil {
		log = debug.Discard()
	}
	log = debug.New(log.Writer(), log.Level())
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Session{log: log, sampleRate: sampleRate}
}

type handler func(s *Session, args json.RawMessage) Response

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"loadRom":      (*Session).loadROM,
		"frame":        (*Session).frame,
		"buttonDown":   func(s *Session, a json.RawMessage) Response { return s.button(a, true) },
		"buttonUp":     func(s *Session, a json.RawMessage) Response { return s.button(a, false) },
		"getState":     (*Session).getState,
		"reset":        (*Session).reset,
		"captureAudio": (*Session).captureAudio,
		"saveState":    (*Session).saveState,
		"loadState":    (*Session).loadState,
		"setVerbosity": (*Session).setVerbosity,
		"quit":         func(*Session, json.RawMessage) Response { return quitResponse },
	}
}

// commands that work before a ROM is loaded
var noROMNeeded = map[string]bool{"loadRom": true, "setVerbosity": true, "quit": true}

// Handle runs one request line and reports whether the session should end.
func (s *Session) Handle(line []byte) (Response, bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return fail("Invalid JSON: %v", err), false
	}

	h, found := handlers[req.Cmd]
	if !found {
		return fail("Unknown command: %s", req.Cmd), false
	}
	if !noROMNeeded[req.Cmd] && s.emu == nil {
		return fail("No ROM loaded"), false
	}

	s.log.Debugf("command %s %s", req.Cmd, req.Args)
	resp := h(s, req.Args)
	return resp, resp["status"] == "quit"
}

// decodeArgs fills v from raw, leaving defaults in place when args are absent.
func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (s *Session) loadROM(raw json.RawMessage) Response {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return fail("Invalid args: %v", err)
	}
	if args.Path == "" {
		return fail("Missing path")
	}

	data, err := os.ReadFile(args.Path)
	if errors.Is(err, os.ErrNotExist) {
		return fail("ROM not found: %s", args.Path)
	}
	if err != nil {
		return fail("Failed to read ROM: %v", err)
	}

	emu := console.New()
	if err := emu.LoadROM(args.Path, bytes.NewReader(data)); err != nil {
		return fail("Failed to load ROM: %v", err)
	}
	s.emu = emu
	s.log.Infof("loaded %s (%d bytes)", args.Path, len(data))
	return ok("message", "Loaded "+args.Path)
}

// run advances count frames. Emulation errors stop the run and are
// reported next to the frame counter.
func (s *Session) run(count int) Response {
	resp := ok()
	if err := s.emu.RunFrames(count); err != nil {
		s.log.Debugf("frame: %v", err)
		resp["warning"] = err.Error()
	}
	resp["frame"] = s.emu.Frame()
	return resp
}

func (s *Session) frame(raw json.RawMessage) Response {
	args := struct {
		Count int `json:"count"`
	}{Count: 1}
	if err := decodeArgs(raw, &args); err != nil {
		return fail("Invalid args: %v", err)
	}
	if args.Count < 1 {
		args.Count = 1
	}
	return s.run(args.Count)
}

func (s *Session) button(raw json.RawMessage, pressed bool) Response {
	args := struct {
		Controller int    `json:"controller"`
		Button     string `json:"button"`
	}{Controller: 1}
	if err := decodeArgs(raw, &args); err != nil {
		return fail("Invalid args: %v", err)
	}
	b, err := input.ParseButton(args.Button)
	if err != nil {
		return fail("Unknown button: %s", args.Button)
	}
	if err := s.emu.SetButton(args.Controller, b, pressed); err != nil {
		return fail("%v", err)
	}
	s.log.Debugf("controller %d %s pressed=%t", args.Controller, b, pressed)
	return ok()
}

func (s *Session) getState(json.RawMessage) Response {
	return ok("data", snapshot(s.emu))
}

func (s *Session) reset(json.RawMessage) Response {
	if err := s.emu.Reset(); err != nil {
		return fail("%v", err)
	}
	return ok()
}

func (s *Session) captureAudio(raw json.RawMessage) Response {
	args := struct {
		Frames int `json:"frames"`
	}{Frames: 10}
	if err := decodeArgs(raw, &args); err != nil {
		return fail("Invalid args: %v", err)
	}
	if args.Frames < 1 {
		args.Frames = 10
	}

	s.emu.SetSampleRate(s.sampleRate)
	resp := s.run(args.Frames)
	samples := s.emu.DrainSamples()
	s.emu.SetSampleRate(0)

	wav, err := audio.EncodeWAV(samples, s.sampleRate)
	if err != nil {
		return fail("%v", err)
	}
	s.log.Debugf("captureAudio: %d samples over %d frames", len(samples), args.Frames)

	resp["samples"] = len(samples)
	resp["sample_rate"] = s.sampleRate
	resp["wav"] = base64.StdEncoding.EncodeToString(wav)
	return resp
}

func statePath(raw json.RawMessage) (string, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.Path == "" {
		return "", errors.New("missing path")
	}
	return args.Path, nil
}

func (s *Session) saveState(raw json.RawMessage) Response {
	path, err := statePath(raw)
	if err != nil {
		return fail("Invalid args: %v", err)
	}
	if err := s.emu.SaveState(path); err != nil {
		return fail("%v", err)
	}
	return ok("path", path)
}

func (s *Session) loadState(raw json.RawMessage) Response {
	path, err := statePath(raw)
	if err != nil {
		return fail("Invalid args: %v", err)
	}
	if err := s.emu.LoadState(path); err != nil {
		return fail("%v", err)
	}
	return ok("frame", s.emu.Frame())
}

func (s *Session) setVerbosity(raw json.RawMessage) Response {
	var args struct {
		Level int `json:"level"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return fail("Invalid args: %v", err)
	}
	s.log.SetLevel(args.Level)
	s.log.Infof("verbosity set to %d", s.log.Level())
	return ok("verbosity", s.log.Level())
}

// maxLine bounds one request; loadRom paths and state paths are short.
const maxLine = 1 << 20

// Serve speaks the protocol over a byte stream until quit, EOF or ctx is
// done.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(readyResponse); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp, quit := s.Handle(line)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}
