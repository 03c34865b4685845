// ISO/IEC 14443 Type B reader-side BPSK demodulator
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

// DemodState is a state of the reader-side BPSK subcarrier decoder.
type DemodState int

const (
	DemodUnsynced DemodState = iota
	DemodPhaseRefTraining
	DemodAwaitingSofFallingEdge
	DemodGotSofFallingEdge
	DemodAwaitingStartBit
	DemodReceivingData
)

// amplitudeThreshold is the minimum subcarrier amplitude, as computed by
// amplitude, that counts as a field response rather than noise.
const amplitudeThreshold = 8

// amplitude estimates the subcarrier envelope magnitude from one (ci, cq)
// sample without an arctangent: the alpha-max-plus-beta-min approximation of
// the vector magnitude.
func amplitude(ci, cq int8) int32 {
	a, b := abs32(int32(ci)), abs32(int32(cq))

	if a < b {
		a, b = b, a
	}

	return a + b/2
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}

	return v
}

func sign32(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Demod recovers BPSK-modulated tag responses from the subcarrier while
// operating as a reader. It is called twice per bit (every 4 subcarrier
// cycles) with one signed IQ sample, and is a single-shot, single-consumer
// decoder: call Reset before each new frame.
//
// AllowSofOnly gates the "open question" behaviour in spec.md §9: some
// deployments (iClass-compatible readers) treat an SOF with no data octets
// as a valid, empty response. Type B callers that must reject empty
// responses should leave it false.
type Demod struct {
	State DemodState

	AllowSofOnly bool

	sumI, sumQ int32
	thisBit    int32
	shiftReg   uint16

	bitCount uint16
	posCount uint16

	// ByteCntMax bounds how many octets a frame may contain; it must be
	// set (<= MaxFrameSize) before use. Zero means MaxFrameSize.
	ByteCntMax uint16
	byteCount  uint16

	output []byte
}

// Reset rearms the decoder for a new frame.
func (d *Demod) Reset() {
	d.State = DemodUnsynced
	d.sumI = 0
	d.sumQ = 0
	d.thisBit = 0
	d.shiftReg = 0
	d.bitCount = 0
	d.posCount = 0
	d.byteCount = 0
	d.output = d.output[:0]

	if d.ByteCntMax == 0 {
		d.ByteCntMax = MaxFrameSize
	}
}

// Output returns the octets decoded so far.
func (d *Demod) Output() []byte {
	return d.output
}

// projector computes the soft-decision value of one sample against the
// phase reference trained during PhaseRefTraining: the sign of the
// reference components picks which quadrant of (ci, cq) carries the
// modulated symbol, avoiding an arctangent.
func (d *Demod) projector(ci, cq int8) int32 {
	return sign32(d.sumI)*int32(ci) + sign32(d.sumQ)*int32(cq)
}

// Sample feeds one (ci, cq) IQ pair into the decoder. It returns true
// exactly on a valid EOF, at which point Output() holds the frame.
func (d *Demod) Sample(ci, cq int8) bool {
	amp := amplitude(ci, cq)

	switch d.State {
	case DemodUnsynced:
		if amp > amplitudeThreshold {
			d.State = DemodPhaseRefTraining
			d.sumI = int32(ci)
			d.sumQ = int32(cq)
			d.posCount = 1
		}

	case DemodPhaseRefTraining:
		if amp <= amplitudeThreshold {
			d.State = DemodUnsynced
			break
		}

		d.sumI += int32(ci)
		d.sumQ += int32(cq)
		d.posCount++

		if d.posCount == 8 {
			d.State = DemodAwaitingSofFallingEdge
		}

	case DemodAwaitingSofFallingEdge:
		v := d.projector(ci, cq)

		if v < 0 {
			d.State = DemodGotSofFallingEdge
			d.posCount = 0
			break
		}

		d.posCount++

		if d.posCount > 50 {
			// TR1 exceeded 200 · 1/fs without a falling edge.
			d.State = DemodUnsynced
		}

	case DemodGotSofFallingEdge:
		v := d.projector(ci, cq)

		if v > 0 {
			if d.posCount >= 18 {
				// SOF accepted: low phase lasted >= 9 ETU.
				d.State = DemodAwaitingStartBit
				d.posCount = 0
			} else {
				d.State = DemodUnsynced
			}
			break
		}

		d.posCount++

		if d.posCount > 28 {
			d.State = DemodUnsynced
		}

	case DemodAwaitingStartBit:
		v := d.projector(ci, cq)

		if v < 0 {
			d.State = DemodReceivingData
			d.posCount = 1
			d.shiftReg = 0
			d.bitCount = 0
			d.thisBit = v
			break
		}

		d.posCount++

		if d.posCount > 12 {
			d.State = DemodUnsynced

			if d.AllowSofOnly {
				return d.byteCount == 0
			}
		}

	case DemodReceivingData:
		v := d.projector(ci, cq)

		if d.posCount == 0 {
			d.thisBit = v
			d.posCount = 1
			break
		}

		// posCount == 1: second half of the bit period.
		d.thisBit += v
		d.posCount = 0

		bit := uint16(0)
		if d.thisBit > 0 {
			bit = 1
		}

		d.shiftReg = (d.shiftReg >> 1) | bit<<9
		d.bitCount++

		if d.bitCount == 10 {
			return d.evalByte()
		}
	}

	return false
}

// evalByte runs the bitCount==10 framing evaluation shared by every
// received octet of a frame.
func (d *Demod) evalByte() bool {
	d.bitCount = 0

	switch {
	case d.shiftReg&0x201 == 0x200:
		if d.byteCount < d.ByteCntMax {
			d.output = append(d.output, byte(d.shiftReg>>1))
			d.byteCount++
		}

		if d.byteCount >= d.ByteCntMax {
			d.State = DemodUnsynced
			break
		}

		d.State = DemodAwaitingStartBit
		d.posCount = 0

	case d.shiftReg == 0x000:
		d.State = DemodUnsynced
		return d.byteCount > 0

	default:
		// framing error: neither a valid stop/start pair nor an EOF.
		d.State = DemodUnsynced
	}

	return false
}
