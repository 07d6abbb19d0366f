// Package testrom builds small iNES images for tests.
package testrom

// Options describes a synthetic NROM image. Zero values give a 16KB PRG,
// 8KB CHR ROM cartridge whose reset vector points at $8000.
type Options struct {
	PRGBanks uint8
	CHRBanks uint8
	Flags6   uint8
	Flags7   uint8
	Trainer  bool

	// Program is placed at $8000. Defaults to JMP $8000.
	Program []byte
	// NMI is placed at $9000. Defaults to RTI.
	NMI []byte
	// CHR fills the start of CHR ROM.
	CHR []byte
}

// Loop is a program that spins forever at $8000.
var Loop = []byte{0x4C, 0x00, 0x80}

// Build returns a default image running program.
func Build(program []byte) []byte {
	return BuildWith(Options{Program: program})
}

// BuildWith returns an image for opts.
func BuildWith(opts Options) []byte {
	if opts.PRGBanks == 0 {
		opts.PRGBanks = 1
	}
	if opts.Program == nil {
		opts.Program = Loop
	}
	if opts.NMI == nil {
		opts.NMI = []byte{0x40}
	}
	flags6 := opts.Flags6
	if opts.Trainer {
		flags6 |= 0x04
	}

	header := []byte{'N', 'E', 'S', 0x1A, opts.PRGBanks, opts.CHRBanks, flags6, opts.Flags7,
		0, 0, 0, 0, 0, 0, 0, 0}

	prg := make([]byte, int(opts.PRGBanks)*0x4000)
	copy(prg, opts.Program)
	copy(prg[0x1000:], opts.NMI)

	// Vectors live at the end of the last bank: NMI $9000, RESET $8000, IRQ $9000.
	end := len(prg)
	prg[end-6], prg[end-5] = 0x00, 0x90
	prg[end-4], prg[end-3] = 0x00, 0x80
	prg[end-2], prg[end-1] = 0x00, 0x90

	image := append([]byte{}, header...)
	if opts.Trainer {
		image = append(image, make([]byte, 512)...)
	}
	image = append(image, prg...)
	if opts.CHRBanks > 0 {
		chr := make([]byte, int(opts.CHRBanks)*0x2000)
		copy(chr, opts.CHR)
		image = append(image, chr...)
	}
	return image
}

// WRAMWriter returns a program that stores values into $0000 onward and
// then spins.
func WRAMWriter(values ...byte) []byte {
	var p []byte
	for i, v := range values {
		p = append(p, 0xA9, v, 0x85, byte(i)) // LDA #v; STA $i
	}
	loop := 0x8000 + len(p)
	return append(p, 0x4C, byte(loop), byte(loop>>8))
}
