// Package input implements controller handling for the NES.
package input

import (
	"fmt"
	"strings"
)

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

var buttonNames = []struct {
	button Button
	name   string
}{
	{ButtonA, "A"}, {ButtonB, "B"}, {ButtonSelect, "Select"}, {ButtonStart, "Start"},
	{ButtonUp, "Up"}, {ButtonDown, "Down"}, {ButtonLeft, "Left"}, {ButtonRight, "Right"},
}

func (b Button) String() string {
	for _, n := range buttonNames {
		if n.button == b {
			return n.name
		}
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// ParseButton maps a case-insensitive button name to its Button.
func ParseButton(name string) (Button, error) {
	for _, n := range buttonNames {
		if strings.EqualFold(n.name, strings.TrimSpace(name)) {
			return n.button, nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// ParseButtons parses a comma separated button list into a bit mask.
func ParseButtons(list string) (uint8, error) {
	var mask uint8
	if strings.TrimSpace(list) == "" {
		return 0, nil
	}
	for _, name := range strings.Split(list, ",") {
		b, err := ParseButton(name)
		if err != nil {
			return 0, err
		}
		mask |= uint8(b)
	}
	return mask, nil
}

// Controller represents a NES controller
type Controller struct {
	buttons uint8

	// Serial read state, latched while strobe is high
	shiftRegister uint8
	strobe        bool
	bitPosition   uint8
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a button
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons replaces every button state with mask.
func (c *Controller) SetButtons(mask uint8) {
	c.buttons = mask
}

// Buttons returns the held buttons as a bit mask in shift order.
func (c *Controller) Buttons() uint8 {
	return c.buttons
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles writes to the controller register ($4016)
func (c *Controller) Write(value uint8) {
	c.strobe = value&1 != 0
	if c.strobe {
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	}
}

// Read shifts out the next button. While strobe is high it keeps
// returning A; after eight reads it returns 1 like official pads.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.shiftRegister = c.buttons
		c.bitPosition = 0
		return c.buttons & 1
	}
	if c.bitPosition >= 8 {
		return 1
	}
	result := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return result
}

// Reset resets the controller state
func (c *Controller) Reset() {
	*c = Controller{}
}

// ControllerState is the serializable part of a controller.
type ControllerState struct {
	Buttons       uint8
	ShiftRegister uint8
	Strobe        bool
	BitPosition   uint8
}

// InputState represents the state of all input devices
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Controller returns port 1 or 2, or nil for anything else.
func (is *InputState) Controller(port int) *Controller {
	switch port {
	case 1:
		return is.Controller1
	case 2:
		return is.Controller2
	}
	return nil
}

// Reset resets all input devices
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// Read reads from controller ports
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read() | 0x40
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write writes to controller ports; both pads share the strobe line.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}

func (is *InputState) SaveState() [2]ControllerState {
	var s [2]ControllerState
	for i, c := range []*Controller{is.Controller1, is.Controller2} {
		s[i] = ControllerState{c.buttons, c.shiftRegister, c.strobe, c.bitPosition}
	}
	return s
}

func (is *InputState) LoadState(s [2]ControllerState) {
	for i, c := range []*Controller{is.Controller1, is.Controller2} {
		c.buttons = s[i].Buttons
		c.shiftRegister = s[i].ShiftRegister
		c.strobe = s[i].Strobe
		c.bitPosition = s[i].BitPosition
	}
}
