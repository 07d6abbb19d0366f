// Package savestate reads and writes console snapshot files.
//
// A file is an 8-byte magic, a little-endian uint16 format version, the
// CRC-32 of the ROM image the snapshot was taken from, and a gob stream
// holding the component state.
package savestate

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// Version is the current file format version.
const Version uint16 = 1

var magic = [8]byte{'N', 'E', 'S', 'P', 'R', 'B', 'S', 'T'}

var (
	ErrBadMagic    = errors.New("savestate: not a savestate file")
	ErrVersion     = errors.New("savestate: unsupported version")
	ErrROMMismatch = errors.New("savestate: snapshot belongs to a different ROM")
)

type header struct {
	Magic   [8]byte
	Version uint16
	ROMCRC  uint32
}

// Checksum returns the identifier stored for a ROM image.
func Checksum(rom []byte) uint32 {
	return crc32.ChecksumIEEE(rom)
}

// Encode writes state, tagged with romCRC, to w.
func Encode(w io.Writer, romCRC uint32, state any) error {
	h := header{Magic: magic, Version: Version, ROMCRC: romCRC}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("savestate: write header: %w", err)
	}
	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("savestate: encode: %w", err)
	}
	return nil
}

// Decode reads a snapshot from r into state. The snapshot must have been
// taken from the ROM identified by romCRC.
func Decode(r io.Reader, romCRC uint32, state any) error {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrBadMagic
		}
		return fmt.Errorf("savestate: read header: %w", err)
	}
	if h.Magic != magic {
		return ErrBadMagic
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.ROMCRC != romCRC {
		return fmt.Errorf("%w: file has %08X, loaded ROM is %08X", ErrROMMismatch, h.ROMCRC, romCRC)
	}
	if err := gob.NewDecoder(r).Decode(state); err != nil {
		return fmt.Errorf("savestate: decode: %w", err)
	}
	return nil
}

// WriteFile encodes state to path. The data goes to a temporary file in
// the same directory which is then renamed over path, so a failed write
// never leaves a truncated snapshot behind.
func WriteFile(path string, romCRC uint32, state any) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("savestate: %w", err)
	}
	tmp := f.Name()

	if err := Encode(f, romCRC, state); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("savestate: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("savestate: %w", err)
	}
	return nil
}

// ReadFile decodes the snapshot at path into state.
func ReadFile(path string, romCRC uint32, state any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("savestate: %w", err)
	}
	defer f.Close()
	return Decode(f, romCRC, state)
}
