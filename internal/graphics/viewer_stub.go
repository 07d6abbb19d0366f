//go:build headless
// +build headless

package graphics

// Run reports that no window system was compiled in.
func Run(emu Emulator, cfg ViewerConfig) error {
	return ErrNoViewer
}
