package graphics

import "errors"

// ErrNoViewer is returned by Run in builds without a window system.
var ErrNoViewer = errors.New("graphics: viewer not available in headless build")

// Emulator is what the viewer drives.
type Emulator interface {
	ClockFrame() error
	FrameBuffer() []uint32
	SetButtons(port int, mask uint8) error
}

// ViewerConfig contains window settings.
type ViewerConfig struct {
	Title string
	Scale int
	// OnError receives emulation errors; the viewer pauses after the first.
	OnError func(error)
}
