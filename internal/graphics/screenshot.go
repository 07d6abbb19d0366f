// Package graphics turns PPU frame buffers into images and windows.
package graphics

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nesprobe/internal/ppu"
)

const (
	Width  = ppu.ScreenWidth
	Height = ppu.ScreenHeight
)

// ToRGBA converts a 0x00RRGGBB frame buffer into an opaque image. Short
// buffers leave the remaining pixels black.
func ToRGBA(frameBuffer []uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	fillRGBA(img.Pix, frameBuffer)
	return img
}

func fillRGBA(pix []uint8, frameBuffer []uint32) {
	for i := 0; i < Width*Height; i++ {
		var pixel uint32
		if i < len(frameBuffer) {
			pixel = frameBuffer[i]
		}
		o := i * 4
		pix[o] = uint8(pixel >> 16)
		pix[o+1] = uint8(pixel >> 8)
		pix[o+2] = uint8(pixel)
		pix[o+3] = 0xFF
	}
}

// WritePNG encodes the frame as PNG.
func WritePNG(w io.Writer, frameBuffer []uint32) error {
	return png.Encode(w, ToRGBA(frameBuffer))
}

// WritePPM encodes the frame as binary PPM (P6).
func WritePPM(w io.Writer, frameBuffer []uint32) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P6\n%d %d\n255\n", Width, Height)
	for i := 0; i < Width*Height; i++ {
		var pixel uint32
		if i < len(frameBuffer) {
			pixel = frameBuffer[i]
		}
		bw.Write([]byte{uint8(pixel >> 16), uint8(pixel >> 8), uint8(pixel)})
	}
	return bw.Flush()
}

// SaveScreenshot writes the frame to path, as PPM when the extension is
// .ppm and PNG otherwise.
func SaveScreenshot(path string, frameBuffer []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".ppm") {
		err = WritePPM(f, frameBuffer)
	} else {
		err = WritePNG(f, frameBuffer)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("screenshot: %w", err)
	}
	return f.Close()
}
