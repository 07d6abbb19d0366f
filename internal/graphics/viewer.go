//go:build !headless
// +build !headless

package graphics

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var ebitenKeys = map[ebiten.Key]Key{
	ebiten.KeyEscape:     KeyEscape,
	ebiten.KeyEnter:      KeyEnter,
	ebiten.KeySpace:      KeySpace,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyArrowRight: KeyRight,
	ebiten.KeyW:          KeyW,
	ebiten.KeyA:          KeyA,
	ebiten.KeyS:          KeyS,
	ebiten.KeyD:          KeyD,
	ebiten.KeyJ:          KeyJ,
	ebiten.KeyK:          KeyK,
}

// viewer implements ebiten.Game around an Emulator.
type viewer struct {
	emu     Emulator
	cfg     ViewerConfig
	frame   *ebiten.Image
	rgba    *image.RGBA
	held    []Key
	stopped bool
}

// Run opens a window and runs emu at 60 frames per second until the
// window closes or Escape is pressed.
func Run(emu Emulator, cfg ViewerConfig) error {
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	v := &viewer{
		emu:   emu,
		cfg:   cfg,
		frame: ebiten.NewImage(Width, Height),
		rgba:  image.NewRGBA(image.Rect(0, 0, Width, Height)),
	}

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(Width*cfg.Scale, Height*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60)

	if err := ebiten.RunGame(v); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}

// Update implements ebiten.Game.Update
func (v *viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	v.held = v.held[:0]
	for ek, k := range ebitenKeys {
		if ebiten.IsKeyPressed(ek) {
			v.held = append(v.held, k)
		}
	}
	if err := v.emu.SetButtons(1, ButtonMask(v.held)); err != nil {
		return err
	}

	if v.stopped {
		return nil
	}
	if err := v.emu.ClockFrame(); err != nil {
		v.stopped = true
		if v.cfg.OnError != nil {
			v.cfg.OnError(err)
		}
	}
	return nil
}

// Draw implements ebiten.Game.Draw
func (v *viewer) Draw(screen *ebiten.Image) {
	fillRGBA(v.rgba.Pix, v.emu.FrameBuffer())
	v.frame.WritePixels(v.rgba.Pix)
	screen.DrawImage(v.frame, nil)
}

// Layout implements ebiten.Game.Layout; ebiten scales the NES screen to
// the window.
func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return Width, Height
}
