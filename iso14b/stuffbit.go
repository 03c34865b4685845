// ISO/IEC 14443 Type B bit codec
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

// MaxFrameSize is the largest APDU payload the codec and decoders will
// build or accept, sized as spec.md §9 requires: big enough for the
// largest negotiable max_frame_size (257) plus PCB/CRC overhead.
const MaxFrameSize = 257 + 4

// toSendCap bounds the stuffbit buffer: every data octet costs 10 stuffbits
// (1 byte packs 8 of them), framed by SOF/EOF/TR1 overhead, oversampled up
// to 4x for the tag direction.
const toSendCap = (MaxFrameSize*10 + 64) * 4 / 8

// ToSend is the stuffbit buffer shared by both encoders and the transmit
// engine: an ordered byte sequence plus a valid-length cursor. Each stored
// byte carries eight transmit symbols, MSB-first; the encoder writes one
// stuffbit per call and the transmitter reads one bit per bit time.
type ToSend struct {
	buf []byte
	max int
	bit int
}

// Reset clears the buffer and rearms the cursor, as both encoders require
// on entry.
func (t *ToSend) Reset() {
	if t.buf == nil {
		t.buf = make([]byte, toSendCap)
	}

	for i := range t.buf {
		t.buf[i] = 0
	}

	t.max = -1
	t.bit = 0
}

// Stuffbit appends a single transmit symbol to the buffer, packing it
// MSB-first into the current byte and starting a new byte every 8 symbols.
func (t *ToSend) Stuffbit(bit int) {
	if t.bit == 0 {
		t.max++
		t.buf[t.max] = 0
		t.bit = 7
	} else {
		t.bit--
	}

	if bit != 0 {
		t.buf[t.max] |= 1 << uint(t.bit)
	}
}

// Stuffbit4 writes the same symbol four times, used by the tag-to-reader
// BPSK encoder which oversamples 4x to match the 848kHz subcarrier grid.
func (t *ToSend) Stuffbit4(bit int) {
	t.Stuffbit(bit)
	t.Stuffbit(bit)
	t.Stuffbit(bit)
	t.Stuffbit(bit)
}

// Bytes returns the produced bytes: the valid-length cursor is one past the
// last written byte, so the transmitter reads exactly the produced bytes
// (invariant 5), including the trailing pad of logic 1 and any unused,
// zero bits left in the final byte.
func (t *ToSend) Bytes() []byte {
	if t.max < 0 {
		return nil
	}

	return t.buf[:t.max+1]
}
