package apu

// Length counter lookup table
var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6,
	160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 8, 48, 6, 96, 4,
	192, 2, 72, 16, 28, 32, 52, 2,
}

// Duty cycle lookup table (8 steps each)
var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0}, // 12.5%
	{0, 1, 1, 0, 0, 0, 0, 0}, // 25%
	{0, 1, 1, 1, 1, 0, 0, 0}, // 50%
	{1, 0, 0, 1, 1, 1, 1, 1}, // 75%
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// Noise period table (NTSC, APU cycles)
var noisePeriodTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160,
	202, 254, 380, 508, 762, 1016, 2034, 4068,
}

// DMC rate table (NTSC, CPU cycles)
var dmcRateTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214,
	190, 160, 142, 128, 106, 84, 72, 54,
}

// Envelope is the volume unit shared by the pulse and noise channels.
type Envelope struct {
	Start    bool
	Loop     bool
	Constant bool
	Volume   uint8
	Divider  uint8
	Decay    uint8
}

func (e *Envelope) write(value uint8) {
	e.Loop = value&0x20 != 0
	e.Constant = value&0x10 != 0
	e.Volume = value & 0x0F
}

func (e *Envelope) clock() {
	switch {
	case e.Start:
		e.Start = false
		e.Decay = 15
		e.Divider = e.Volume
	case e.Divider > 0:
		e.Divider--
	default:
		e.Divider = e.Volume
		if e.Decay > 0 {
			e.Decay--
		} else if e.Loop {
			e.Decay = 15
		}
	}
}

func (e *Envelope) output() uint8 {
	if e.Constant {
		return e.Volume
	}
	return e.Decay
}

// Pulse is one of the two square wave channels.
type Pulse struct {
	Enabled bool
	// Pulse 1 negates with one's complement, pulse 2 with two's.
	OnesComplement bool

	Duty     uint8
	Sequence uint8
	Period   uint16
	Timer    uint16
	Length   uint8
	Envelope Envelope

	SweepEnabled bool
	SweepNegate  bool
	SweepReload  bool
	SweepPeriod  uint8
	SweepShift   uint8
	SweepDivider uint8
}

func (p *Pulse) writeControl(value uint8) {
	p.Duty = value >> 6
	p.Envelope.write(value)
}

func (p *Pulse) writeSweep(value uint8) {
	p.SweepEnabled = value&0x80 != 0
	p.SweepPeriod = (value >> 4) & 0x07
	p.SweepNegate = value&0x08 != 0
	p.SweepShift = value & 0x07
	p.SweepReload = true
}

func (p *Pulse) writeTimerLow(value uint8) {
	p.Period = p.Period&0x0700 | uint16(value)
}

func (p *Pulse) writeTimerHigh(value uint8) {
	p.Period = p.Period&0x00FF | uint16(value&0x07)<<8
	if p.Enabled {
		p.Length = lengthTable[value>>3]
	}
	p.Sequence = 0
	p.Envelope.Start = true
}

// clockTimer runs once per APU cycle (every other CPU cycle).
func (p *Pulse) clockTimer() {
	if p.Timer == 0 {
		p.Timer = p.Period
		p.Sequence = (p.Sequence + 1) & 0x07
	} else {
		p.Timer--
	}
}

func (p *Pulse) clockLength() {
	if !p.Envelope.Loop && p.Length > 0 {
		p.Length--
	}
}

func (p *Pulse) sweepTarget() uint16 {
	change := p.Period >> p.SweepShift
	if !p.SweepNegate {
		return p.Period + change
	}
	if p.OnesComplement {
		change++
	}
	if change > p.Period {
		return 0
	}
	return p.Period - change
}

func (p *Pulse) muted() bool {
	return p.Period < 8 || p.sweepTarget() > 0x7FF
}

func (p *Pulse) clockSweep() {
	if p.SweepDivider == 0 && p.SweepEnabled && p.SweepShift > 0 && !p.muted() {
		p.Period = p.sweepTarget()
	}
	if p.SweepDivider == 0 || p.SweepReload {
		p.SweepDivider = p.SweepPeriod
		p.SweepReload = false
	} else {
		p.SweepDivider--
	}
}

func (p *Pulse) output() uint8 {
	if p.Length == 0 || p.muted() || dutyTable[p.Duty][p.Sequence] == 0 {
		return 0
	}
	return p.Envelope.output()
}

// Triangle is the triangle wave channel.
type Triangle struct {
	Enabled      bool
	Control      bool // length halt / linear counter control
	LinearLoad   uint8
	Linear       uint8
	LinearReload bool
	Period       uint16
	Timer        uint16
	Length       uint8
	Sequence     uint8
}

func (t *Triangle) writeControl(value uint8) {
	t.Control = value&0x80 != 0
	t.LinearLoad = value & 0x7F
}

func (t *Triangle) writeTimerLow(value uint8) {
	t.Period = t.Period&0x0700 | uint16(value)
}

func (t *Triangle) writeTimerHigh(value uint8) {
	t.Period = t.Period&0x00FF | uint16(value&0x07)<<8
	if t.Enabled {
		t.Length = lengthTable[value>>3]
	}
	t.LinearReload = true
}

// clockTimer runs every CPU cycle.
func (t *Triangle) clockTimer() {
	if t.Timer == 0 {
		t.Timer = t.Period
		if t.Length > 0 && t.Linear > 0 {
			t.Sequence = (t.Sequence + 1) & 0x1F
		}
	} else {
		t.Timer--
	}
}

func (t *Triangle) clockLinear() {
	if t.LinearReload {
		t.Linear = t.LinearLoad
	} else if t.Linear > 0 {
		t.Linear--
	}
	if !t.Control {
		t.LinearReload = false
	}
}

func (t *Triangle) clockLength() {
	if !t.Control && t.Length > 0 {
		t.Length--
	}
}

func (t *Triangle) output() uint8 {
	// Ultrasonic periods are silenced instead of aliasing.
	if t.Length == 0 || t.Linear == 0 || t.Period < 2 {
		return 0
	}
	return triangleTable[t.Sequence]
}

// Noise is the pseudo-random noise channel.
type Noise struct {
	Enabled  bool
	Mode     bool // short 93-step sequence
	Period   uint16
	Timer    uint16
	Length   uint8
	Shift    uint16 // 15-bit LFSR
	Envelope Envelope
}

func (n *Noise) writeControl(value uint8) {
	n.Envelope.write(value)
}

func (n *Noise) writePeriod(value uint8) {
	n.Mode = value&0x80 != 0
	n.Period = noisePeriodTable[value&0x0F]
}

func (n *Noise) writeLength(value uint8) {
	if n.Enabled {
		n.Length = lengthTable[value>>3]
	}
	n.Envelope.Start = true
}

// clockTimer runs once per APU cycle.
func (n *Noise) clockTimer() {
	if n.Timer > 0 {
		n.Timer--
		return
	}
	n.Timer = n.Period

	tap := uint16(1)
	if n.Mode {
		tap = 6
	}
	feedback := (n.Shift ^ n.Shift>>tap) & 0x01
	n.Shift = n.Shift>>1 | feedback<<14
}

func (n *Noise) clockLength() {
	if !n.Envelope.Loop && n.Length > 0 {
		n.Length--
	}
}

func (n *Noise) output() uint8 {
	if n.Length == 0 || n.Shift&0x01 != 0 {
		return 0
	}
	return n.Envelope.output()
}

// DMC is the delta modulation channel.
type DMC struct {
	Enabled    bool
	IRQEnabled bool
	IRQ        bool
	Loop       bool
	Rate       uint16
	Timer      uint16
	Output     uint8

	SampleAddress  uint16
	SampleLength   uint16
	CurrentAddress uint16
	BytesRemaining uint16

	Buffer        uint8
	BufferFull    bool
	Shift         uint8
	BitsRemaining uint8
	Silence       bool
}

func (d *DMC) writeControl(value uint8) {
	d.IRQEnabled = value&0x80 != 0
	d.Loop = value&0x40 != 0
	d.Rate = dmcRateTable[value&0x0F]
	if !d.IRQEnabled {
		d.IRQ = false
	}
}

func (d *DMC) restart() {
	d.CurrentAddress = d.SampleAddress
	d.BytesRemaining = d.SampleLength
}

// fill loads the sample buffer from CPU memory when it is empty.
func (d *DMC) fill(read func(address uint16) uint8) {
	if d.BufferFull || d.BytesRemaining == 0 || read == nil {
		return
	}
	d.Buffer = read(d.CurrentAddress)
	d.BufferFull = true
	d.CurrentAddress++
	if d.CurrentAddress == 0 {
		d.CurrentAddress = 0x8000
	}
	d.BytesRemaining--
	if d.BytesRemaining == 0 {
		if d.Loop {
			d.restart()
		} else if d.IRQEnabled {
			d.IRQ = true
		}
	}
}

// clockTimer runs every CPU cycle.
func (d *DMC) clockTimer(read func(address uint16) uint8) {
	d.fill(read)
	if d.Timer > 0 {
		d.Timer--
		return
	}
	d.Timer = d.Rate - 1

	if !d.Silence {
		if d.Shift&0x01 != 0 {
			if d.Output <= 125 {
				d.Output += 2
			}
		} else if d.Output >= 2 {
			d.Output -= 2
		}
	}
	d.Shift >>= 1

	if d.BitsRemaining > 0 {
		d.BitsRemaining--
	}
	if d.BitsRemaining == 0 {
		d.BitsRemaining = 8
		d.Silence = !d.BufferFull
		if d.BufferFull {
			d.Shift = d.Buffer
			d.BufferFull = false
		}
	}
}
