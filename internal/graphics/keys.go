package graphics

import "nesprobe/internal/input"

// Key is a keyboard key the viewer listens to.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
)

// Player 1 bindings. Arrows and WASD both steer.
var keyBindings = map[Key]input.Button{
	KeyUp:    input.ButtonUp,
	KeyDown:  input.ButtonDown,
	KeyLeft:  input.ButtonLeft,
	KeyRight: input.ButtonRight,
	KeyW:     input.ButtonUp,
	KeyS:     input.ButtonDown,
	KeyA:     input.ButtonLeft,
	KeyD:     input.ButtonRight,
	KeyJ:     input.ButtonA,
	KeyK:     input.ButtonB,
	KeyEnter: input.ButtonStart,
	KeySpace: input.ButtonSelect,
}

// ButtonMask returns the controller state for the held keys.
func ButtonMask(held []Key) uint8 {
	var mask uint8
	for _, k := range held {
		mask |= uint8(keyBindings[k])
	}
	return mask
}
