// ISO/IEC 14443 Type B reader-side BPSK demodulator
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

import (
	"bytes"
	"testing"
)

const iqAmplitude = 20

// iqETU appends the two demod samples (first half, second half) of one ETU
// carrying the given bit to samples.
func iqETU(samples [][2]int8, bit int) [][2]int8 {
	ci := int8(-iqAmplitude)
	if bit == 1 {
		ci = iqAmplitude
	}

	return append(samples, [2]int8{ci, 0}, [2]int8{ci, 0})
}

// encodeIQFrame builds a reader-side IQ sample sequence for data: a short
// unmodulated phase-reference prefix, SOF, each octet start/8 LSB-first
// data bits/stop, and an EOF of 10 zero ETU.
func encodeIQFrame(data []byte) [][2]int8 {
	var samples [][2]int8

	for i := 0; i < 4; i++ {
		samples = iqETU(samples, 1)
	}

	for i := 0; i < 10; i++ {
		samples = iqETU(samples, 0)
	}
	for i := 0; i < 2; i++ {
		samples = iqETU(samples, 1)
	}

	for _, b := range data {
		samples = iqETU(samples, 0)

		for i := 0; i < 8; i++ {
			samples = iqETU(samples, int(b>>uint(i))&1)
		}

		samples = iqETU(samples, 1)
	}

	for i := 0; i < 10; i++ {
		samples = iqETU(samples, 0)
	}

	return samples
}

func feedIQFrame(d *Demod, samples [][2]int8) bool {
	eof := false

	for _, s := range samples {
		if d.Sample(s[0], s[1]) {
			eof = true
		}
	}

	return eof
}

func TestDemodDecodesEncodedFrame(t *testing.T) {
	cases := [][]byte{
		{0x50, 0x82, 0x0D, 0xE1, 0x74, 0x20, 0x38, 0x19, 0x22, 0x00, 0x21, 0x85, 0x5E, 0xD7},
		{0x00},
		{0x90, 0x00},
	}

	for _, msg := range cases {
		var d Demod
		d.Reset()

		if !feedIQFrame(&d, encodeIQFrame(msg)) {
			t.Fatalf("EOF not detected for %x", msg)
		}

		if !bytes.Equal(d.Output(), msg) {
			t.Fatalf("round trip mismatch: got %x want %x", d.Output(), msg)
		}
	}
}

func TestDemodReset(t *testing.T) {
	var d Demod
	d.Reset()

	feedIQFrame(&d, encodeIQFrame([]byte{0x01, 0x02}))

	d.Reset()

	if len(d.Output()) != 0 {
		t.Fatalf("expected empty output after Reset, got %x", d.Output())
	}

	if d.State != DemodUnsynced {
		t.Fatalf("expected Unsynced state after Reset, got %v", d.State)
	}
}

// TestDemodLowAmplitudeNeverSynchronizes exercises the robustness scenario
// from spec.md §8.6: subcarrier amplitude below the presence threshold must
// never be mistaken for a field response.
func TestDemodLowAmplitudeNeverSynchronizes(t *testing.T) {
	var d Demod
	d.Reset()

	for i := 0; i < 10000; i++ {
		if d.Sample(6, 0) {
			t.Fatalf("unexpected EOF from sub-threshold amplitude")
		}
	}

	if d.State != DemodUnsynced {
		t.Fatalf("expected decoder to remain Unsynced, got %v", d.State)
	}

	if len(d.Output()) != 0 {
		t.Fatalf("expected no output from sub-threshold amplitude, got %x", d.Output())
	}
}

// TestDemodBadStopBitIsFramingError covers the second half of the same
// scenario: a valid SOF followed by an octet whose stop bit is 0 must be
// rejected as a framing error, never surfacing the partial octet.
func TestDemodBadStopBitIsFramingError(t *testing.T) {
	var samples [][2]int8

	for i := 0; i < 4; i++ {
		samples = iqETU(samples, 1)
	}
	for i := 0; i < 10; i++ {
		samples = iqETU(samples, 0)
	}
	for i := 0; i < 2; i++ {
		samples = iqETU(samples, 1)
	}

	// one octet with the stop bit forced to 0 instead of 1.
	samples = iqETU(samples, 0) // start
	for i := 0; i < 8; i++ {
		samples = iqETU(samples, int(0x55>>uint(i))&1)
	}
	samples = iqETU(samples, 0) // bad stop bit

	var d Demod
	d.Reset()

	if feedIQFrame(&d, samples) {
		t.Fatalf("framing error must not be reported as EOF")
	}

	if d.State != DemodUnsynced {
		t.Fatalf("expected decoder to abort to Unsynced on framing error, got %v", d.State)
	}

	if len(d.Output()) != 0 {
		t.Fatalf("expected no output on framing error, got %x", d.Output())
	}
}

func TestDemodByteCntMaxTruncates(t *testing.T) {
	msg := []byte{0x11, 0x22, 0x33, 0x44}

	var d Demod
	d.ByteCntMax = 2
	d.Reset()

	feedIQFrame(&d, encodeIQFrame(msg))

	if len(d.Output()) != 2 {
		t.Fatalf("expected truncation at 2 octets, got %d: %x", len(d.Output()), d.Output())
	}

	if !bytes.Equal(d.Output(), msg[:2]) {
		t.Fatalf("unexpected truncated output: %x", d.Output())
	}
}
