// Package apu implements the Audio Processing Unit for the NES.
package apu

const (
	// CPUFrequency is the NTSC CPU clock in Hz.
	CPUFrequency = 1789773.0

	DefaultSampleRate = 44100

	// Buffered samples beyond this are dropped until DrainSamples is called.
	maxBufferedSamples = 1 << 22

	// First-order high-pass pole, about 90 Hz at 44.1 kHz.
	highPassPole = 0.987
)

// APU represents the NES Audio Processing Unit
type APU struct {
	pulse1   Pulse
	pulse2   Pulse
	triangle Triangle
	noise    Noise
	dmc      DMC

	// Frame counter, in CPU cycles
	frameCounter    uint16
	fiveStep        bool
	frameIRQInhibit bool
	frameIRQ        bool

	// DMC sample fetches go through the CPU bus.
	read func(address uint16) uint8

	sampleBuffer     []float32
	sampleRate       int
	cycleAccumulator float64
	prevIn, prevOut  float64

	cycles uint64
}

// New creates a new APU instance
func New() *APU {
	apu := &APU{sampleRate: DefaultSampleRate}
	apu.Reset()
	return apu
}

// Reset resets the APU to its initial state
func (apu *APU) Reset() {
	apu.pulse1 = Pulse{OnesComplement: true}
	apu.pulse2 = Pulse{}
	apu.triangle = Triangle{}
	apu.noise = Noise{Shift: 1, Period: noisePeriodTable[0]}
	apu.dmc = DMC{Rate: dmcRateTable[0], BitsRemaining: 8, Silence: true}

	apu.frameCounter = 0
	apu.fiveStep = false
	apu.frameIRQInhibit = false
	apu.frameIRQ = false

	apu.cycles = 0
	apu.cycleAccumulator = 0
	apu.prevIn, apu.prevOut = 0, 0
	apu.sampleBuffer = apu.sampleBuffer[:0]
}

// SetMemoryReader connects the DMC to the CPU bus.
func (apu *APU) SetMemoryReader(read func(address uint16) uint8) {
	apu.read = read
}

// SetSampleRate sets the output sample rate; zero disables sample generation.
func (apu *APU) SetSampleRate(rate int) {
	apu.sampleRate = rate
	apu.cycleAccumulator = 0
}

// SampleRate returns the output sample rate.
func (apu *APU) SampleRate() int {
	return apu.sampleRate
}

// Step advances the APU by one CPU cycle
func (apu *APU) Step() {
	apu.cycles++

	apu.triangle.clockTimer()
	if apu.cycles%2 == 0 {
		apu.pulse1.clockTimer()
		apu.pulse2.clockTimer()
		apu.noise.clockTimer()
	}
	apu.dmc.clockTimer(apu.read)

	apu.stepFrameCounter()
	apu.generateSample()
}

// stepFrameCounter clocks the quarter and half frame units.
func (apu *APU) stepFrameCounter() {
	apu.frameCounter++

	switch apu.frameCounter {
	case 7457, 22371:
		apu.clockQuarterFrame()
	case 14913:
		apu.clockQuarterFrame()
		apu.clockHalfFrame()
	case 29829:
		if !apu.fiveStep {
			apu.clockQuarterFrame()
			apu.clockHalfFrame()
		}
	case 29830:
		if !apu.fiveStep {
			if !apu.frameIRQInhibit {
				apu.frameIRQ = true
			}
			apu.frameCounter = 0
		}
	case 37281:
		apu.clockQuarterFrame()
		apu.clockHalfFrame()
		apu.frameCounter = 0
	}
}

func (apu *APU) clockQuarterFrame() {
	apu.pulse1.Envelope.clock()
	apu.pulse2.Envelope.clock()
	apu.noise.Envelope.clock()
	apu.triangle.clockLinear()
}

func (apu *APU) clockHalfFrame() {
	apu.pulse1.clockLength()
	apu.pulse1.clockSweep()
	apu.pulse2.clockLength()
	apu.pulse2.clockSweep()
	apu.triangle.clockLength()
	apu.noise.clockLength()
}

func (apu *APU) generateSample() {
	if apu.sampleRate <= 0 {
		return
	}
	apu.cycleAccumulator += float64(apu.sampleRate) / CPUFrequency
	if apu.cycleAccumulator < 1.0 {
		return
	}
	apu.cycleAccumulator -= 1.0

	in := mix(apu.pulse1.output(), apu.pulse2.output(), apu.triangle.output(),
		apu.noise.output(), apu.dmc.Output)
	out := in - apu.prevIn + highPassPole*apu.prevOut
	apu.prevIn, apu.prevOut = in, out

	if len(apu.sampleBuffer) < maxBufferedSamples {
		apu.sampleBuffer = append(apu.sampleBuffer, float32(out))
	}
}

// mix applies the non-linear NES mixer; the result is in [0, 1].
func mix(pulse1, pulse2, triangle, noise, dmc uint8) float64 {
	var pulseOut, tndOut float64
	if sum := float64(pulse1) + float64(pulse2); sum != 0 {
		pulseOut = 95.88 / (8128.0/sum + 100.0)
	}
	tnd := float64(triangle)/8227.0 + float64(noise)/12241.0 + float64(dmc)/22638.0
	if tnd != 0 {
		tndOut = 159.79 / (1.0/tnd + 100.0)
	}
	return pulseOut + tndOut
}

// DrainSamples returns the samples generated since the last call and
// empties the buffer.
func (apu *APU) DrainSamples() []float32 {
	samples := make([]float32, len(apu.sampleBuffer))
	copy(samples, apu.sampleBuffer)
	apu.sampleBuffer = apu.sampleBuffer[:0]
	return samples
}

// WriteRegister writes to an APU register
func (apu *APU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x4000:
		apu.pulse1.writeControl(value)
	case 0x4001:
		apu.pulse1.writeSweep(value)
	case 0x4002:
		apu.pulse1.writeTimerLow(value)
	case 0x4003:
		apu.pulse1.writeTimerHigh(value)
	case 0x4004:
		apu.pulse2.writeControl(value)
	case 0x4005:
		apu.pulse2.writeSweep(value)
	case 0x4006:
		apu.pulse2.writeTimerLow(value)
	case 0x4007:
		apu.pulse2.writeTimerHigh(value)
	case 0x4008:
		apu.triangle.writeControl(value)
	case 0x400A:
		apu.triangle.writeTimerLow(value)
	case 0x400B:
		apu.triangle.writeTimerHigh(value)
	case 0x400C:
		apu.noise.writeControl(value)
	case 0x400E:
		apu.noise.writePeriod(value)
	case 0x400F:
		apu.noise.writeLength(value)
	case 0x4010:
		apu.dmc.writeControl(value)
	case 0x4011:
		apu.dmc.Output = value & 0x7F
	case 0x4012:
		apu.dmc.SampleAddress = 0xC000 | uint16(value)<<6
	case 0x4013:
		apu.dmc.SampleLength = uint16(value)<<4 | 1
	case 0x4015:
		apu.writeChannelEnable(value)
	case 0x4017:
		apu.writeFrameCounter(value)
	}
}

func (apu *APU) writeChannelEnable(value uint8) {
	apu.pulse1.Enabled = value&0x01 != 0
	apu.pulse2.Enabled = value&0x02 != 0
	apu.triangle.Enabled = value&0x04 != 0
	apu.noise.Enabled = value&0x08 != 0
	apu.dmc.Enabled = value&0x10 != 0

	if !apu.pulse1.Enabled {
		apu.pulse1.Length = 0
	}
	if !apu.pulse2.Enabled {
		apu.pulse2.Length = 0
	}
	if !apu.triangle.Enabled {
		apu.triangle.Length = 0
	}
	if !apu.noise.Enabled {
		apu.noise.Length = 0
	}
	if !apu.dmc.Enabled {
		apu.dmc.BytesRemaining = 0
	} else if apu.dmc.BytesRemaining == 0 {
		apu.dmc.restart()
	}
	apu.dmc.IRQ = false
}

func (apu *APU) writeFrameCounter(value uint8) {
	apu.fiveStep = value&0x80 != 0
	apu.frameIRQInhibit = value&0x40 != 0
	if apu.frameIRQInhibit {
		apu.frameIRQ = false
	}
	apu.frameCounter = 0
	if apu.fiveStep {
		apu.clockQuarterFrame()
		apu.clockHalfFrame()
	}
}

// PeekStatus returns $4015 without acknowledging the frame IRQ.
func (apu *APU) PeekStatus() uint8 {
	var status uint8
	if apu.pulse1.Length > 0 {
		status |= 0x01
	}
	if apu.pulse2.Length > 0 {
		status |= 0x02
	}
	if apu.triangle.Length > 0 {
		status |= 0x04
	}
	if apu.noise.Length > 0 {
		status |= 0x08
	}
	if apu.dmc.BytesRemaining > 0 {
		status |= 0x10
	}
	if apu.frameIRQ {
		status |= 0x40
	}
	if apu.dmc.IRQ {
		status |= 0x80
	}
	return status
}

// ReadStatus reads $4015; reading acknowledges the frame IRQ.
func (apu *APU) ReadStatus() uint8 {
	status := apu.PeekStatus()
	apu.frameIRQ = false
	return status
}

// IRQ reports whether the APU is asserting the CPU's IRQ line.
func (apu *APU) IRQ() bool {
	return apu.frameIRQ || apu.dmc.IRQ
}

// State is the serializable part of the APU.
type State struct {
	Pulse1, Pulse2  Pulse
	Triangle        Triangle
	Noise           Noise
	DMC             DMC
	FrameCounter    uint16
	FiveStep        bool
	FrameIRQInhibit bool
	FrameIRQ        bool
	Cycles          uint64
}

func (apu *APU) SaveState() State {
	return State{
		Pulse1: apu.pulse1, Pulse2: apu.pulse2, Triangle: apu.triangle,
		Noise: apu.noise, DMC: apu.dmc,
		FrameCounter:    apu.frameCounter,
		FiveStep:        apu.fiveStep,
		FrameIRQInhibit: apu.frameIRQInhibit,
		FrameIRQ:        apu.frameIRQ,
		Cycles:          apu.cycles,
	}
}

func (apu *APU) LoadState(s State) {
	apu.pulse1, apu.pulse2, apu.triangle = s.Pulse1, s.Pulse2, s.Triangle
	apu.noise, apu.dmc = s.Noise, s.DMC
	apu.frameCounter = s.FrameCounter
	apu.fiveStep = s.FiveStep
	apu.frameIRQInhibit = s.FrameIRQInhibit
	apu.frameIRQ = s.FrameIRQ
	apu.cycles = s.Cycles
	apu.sampleBuffer = apu.sampleBuffer[:0]
}
