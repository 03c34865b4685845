// ISO/IEC 14443 Type B bit codec
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

// EncodeReader builds the ASK, NRZ-L modulated reader-to-tag frame for the
// given octets: SOF (10 stuffbits of 0, 2 of 1), each octet framed as
// start/8 data bits LSB-first/stop, EOF (10 stuffbits of 0), and an 8-bit
// pad of logic 1. The pad is always 8 stuffbits: where the frame does not
// end on a byte boundary, the rest of the final byte stays 0.
func EncodeReader(t *ToSend, data []byte) {
	t.Reset()

	// SOF: >=10 ETU low, 2-3 ETU high.
	for i := 0; i < 10; i++ {
		t.Stuffbit(0)
	}
	for i := 0; i < 2; i++ {
		t.Stuffbit(1)
	}

	for _, b := range data {
		t.Stuffbit(0) // start bit

		for i := 0; i < 8; i++ {
			t.Stuffbit(int(b>>uint(i)) & 1) // LSB-first
		}

		t.Stuffbit(1) // stop bit
	}

	// EOF: 10-11 ETU low.
	for i := 0; i < 10; i++ {
		t.Stuffbit(0)
	}

	// pad of 8 logic-1 stuffbits.
	for i := 0; i < 8; i++ {
		t.Stuffbit(1)
	}
}

// EncodeTag builds the BPSK, 4x oversampled tag-to-reader frame: TR1 (20
// stuffbits of 1, 80-100 samples of subcarrier for phase lock), SOF, framed
// data octets, and a shortened EOF of 10 zeros plus 2 ones.
func EncodeTag(t *ToSend, data []byte) {
	t.Reset()

	// TR1: 20 stuffbits of logic 1 prefix, oversampled.
	for i := 0; i < 20; i++ {
		t.Stuffbit4(1)
	}

	// SOF.
	for i := 0; i < 10; i++ {
		t.Stuffbit4(0)
	}
	for i := 0; i < 2; i++ {
		t.Stuffbit4(1)
	}

	for _, b := range data {
		t.Stuffbit4(0) // start bit

		for i := 0; i < 8; i++ {
			t.Stuffbit4(int(b>>uint(i)) & 1) // LSB-first
		}

		t.Stuffbit4(1) // stop bit
	}

	// EOF.
	for i := 0; i < 10; i++ {
		t.Stuffbit4(0)
	}
	for i := 0; i < 2; i++ {
		t.Stuffbit4(1)
	}
}
