// ISO/IEC 14443 Type B link timing
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

import "testing"

func TestFWTScaling(t *testing.T) {
	for k := 0; k <= 15; k++ {
		want := uint32(302) << uint(k)

		if got := FWT(k); got != want {
			t.Fatalf("FWT(%d) = %d, want %d", k, got, want)
		}
	}
}

func TestFWTOutOfRangeUnchanged(t *testing.T) {
	for _, k := range []int{16, 17, 255, -1} {
		if got := FWT(k); got != FWTDefault {
			t.Fatalf("FWT(%d) = %d, want default %d", k, got, FWTDefault)
		}
	}
}

func TestMaxFrameSizeFromNibble(t *testing.T) {
	want := []uint16{16, 24, 32, 40, 48, 64, 96, 128, 256}

	for nibble, size := range want {
		if got := MaxFrameSizeFromNibble(uint8(nibble)); got != size {
			t.Fatalf("MaxFrameSizeFromNibble(%d) = %d, want %d", nibble, got, size)
		}
	}

	for nibble := 9; nibble <= 15; nibble++ {
		if got := MaxFrameSizeFromNibble(uint8(nibble)); got != 257 {
			t.Fatalf("MaxFrameSizeFromNibble(%d) = %d, want 257", nibble, got)
		}
	}
}
