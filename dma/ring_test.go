// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

import "testing"

func TestRingWrap(t *testing.T) {
	r := NewRing(nil, 512)

	if r.Len() != 512 {
		t.Fatalf("unexpected ring length: %d", r.Len())
	}

	r.Start()

	if wrapped := r.Advance(100); wrapped {
		t.Fatalf("unexpected wrap at offset 100")
	}

	if wrapped := r.Advance(50); !wrapped {
		t.Fatalf("expected wrap when offset decreases")
	}

	if r.Cursor() != 50 {
		t.Fatalf("unexpected cursor: %d", r.Cursor())
	}
}

func TestRingRewindIfExhausted(t *testing.T) {
	r := NewRing(nil, 512)
	r.Advance(400)

	r.RewindIfExhausted(10)

	if r.Cursor() != 400 {
		t.Fatalf("ring should not rewind while samples remain")
	}

	r.RewindIfExhausted(0)

	if r.Cursor() != 0 {
		t.Fatalf("ring should rewind to zero once exhausted")
	}
}

func TestRingOverRegion(t *testing.T) {
	region := NewRegion(0x90000000, 4096)
	r := NewRing(region, 512)

	if r.Addr() == 0 {
		t.Fatalf("expected non-zero DMA address")
	}

	if len(r.Bytes()) != 512 {
		t.Fatalf("unexpected buffer length: %d", len(r.Bytes()))
	}
}
