// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package crc14b

import "testing"

func TestAppendAndCheck(t *testing.T) {
	msg := []byte{0x50, 0x82, 0x0D, 0xE1, 0x74, 0x20, 0x38, 0x19, 0x22, 0x00, 0x21, 0x85}

	framed := Append(append([]byte{}, msg...))

	if len(framed) != len(msg)+2 {
		t.Fatalf("unexpected framed length: %d", len(framed))
	}

	if !Check(framed) {
		t.Fatalf("expected valid CRC_B for freshly appended frame")
	}
}

func TestCheckKnownATQB(t *testing.T) {
	// WUPB/ATQB handshake reply from the end-to-end scenario in spec §8.1.
	atqb := []byte{0x50, 0x82, 0x0D, 0xE1, 0x74, 0x20, 0x38, 0x19, 0x22, 0x00, 0x21, 0x85, 0x5E, 0xD7}

	if !Check(atqb) {
		t.Fatalf("expected valid CRC_B for known-good ATQB")
	}
}

func TestCheckDetectsBitFlip(t *testing.T) {
	msg := Append([]byte{0x05, 0x00, 0x08, 0x39, 0x73})

	for i := range msg {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte{}, msg...)
			flipped[i] ^= 1 << bit

			if Check(flipped) {
				t.Fatalf("bit flip at byte %d bit %d not detected", i, bit)
			}
		}
	}
}

func TestChecksumDeterministic(t *testing.T) {
	msg := []byte{0x06, 0x00}

	if Checksum(msg) != Checksum(append([]byte{}, msg...)) {
		t.Fatalf("checksum is not deterministic")
	}
}
