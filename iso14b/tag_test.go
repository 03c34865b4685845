// ISO/IEC 14443 Type B tag-emulation protocol state machine
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

	"github.com/usbarmory/iso14443b/crc14b"
)

func newTestTag() *Tag {
	tag := &Tag{
		ATQB: [14]byte{0x50, 0x82, 0x0D, 0xE1, 0x74, 0x20, 0x38, 0x19, 0x22, 0x00, 0x21, 0x85, 0x5E, 0xD7},
		PUPI: 0xDEADBEEF,
	}
	tag.FieldDetected()

	return tag
}

func TestTagReqBToATQB(t *testing.T) {
	tag := newTestTag()

	resp := tag.Receive([]byte{0x05, 0x00, 0x08, 0x39, 0x73})

	if tag.State != TagWork {
		t.Fatalf("expected Work after REQB, got %v", tag.State)
	}

	if resp[1] != 0xDE || resp[2] != 0xAD || resp[3] != 0xBE || resp[4] != 0xEF {
		t.Fatalf("PUPI not stamped into ATQB: %x", resp)
	}

	if !crc14b.Check(resp) {
		t.Fatalf("ATQB CRC_B invalid after PUPI stamp: %x", resp)
	}
}

func TestTagHaltCycle(t *testing.T) {
	tag := newTestTag()
	tag.Receive([]byte{0x05, 0x00, 0x08, 0x39, 0x73})

	resp := tag.Receive([]byte{0x50, 0xFF, 0xFF, 0xFF, 0xFF, 0xCC, 0xCC})
	if !bytes.Equal(resp, okResponse) {
		t.Fatalf("unexpected HLT response: %x", resp)
	}

	if tag.State != TagHalting {
		t.Fatalf("expected Halting, got %v", tag.State)
	}

	tag.Acknowledge()

	if tag.State != TagHalted {
		t.Fatalf("expected Halted, got %v", tag.State)
	}

	// REQB without the wakeup bit is ignored in Halted.
	if resp := tag.Receive([]byte{0x05, 0x00, 0x00, 0x39, 0x73}); resp != nil {
		t.Fatalf("expected no response to plain REQB while Halted, got %x", resp)
	}

	if tag.State != TagHalted {
		t.Fatalf("expected to remain Halted, got %v", tag.State)
	}

	// WUPB (wakeup bit set) re-enters Selecting/Work.
	resp = tag.Receive([]byte{0x05, 0x00, 0x08, 0x39, 0x73})
	if resp == nil {
		t.Fatalf("expected ATQB response to WUPB while Halted")
	}

	if tag.State != TagWork {
		t.Fatalf("expected Work after WUPB wakeup, got %v", tag.State)
	}
}

func TestTagAttribAcknowledge(t *testing.T) {
	tag := newTestTag()
	tag.Receive([]byte{0x05, 0x00, 0x08, 0x39, 0x73})

	attrib := make([]byte, 12)
	attrib[0] = 0x1D

	resp := tag.Receive(attrib)
	if !bytes.Equal(resp, okResponse) {
		t.Fatalf("unexpected ATTRIB response: %x", resp)
	}

	if tag.State != TagAcknowledge {
		t.Fatalf("expected Acknowledge, got %v", tag.State)
	}

	tag.Acknowledge()

	if tag.State != TagIdle {
		t.Fatalf("expected Idle, got %v", tag.State)
	}
}

// TestTagWorkCRCOutcomes exercises the open-question behaviour documented
// in spec.md §9: a failing CRC on an otherwise-unrecognised command in Work
// is logged, never aborts the exchange, and still returns the tag to Idle.
func TestTagWorkCRCOutcomes(t *testing.T) {
	cases := []struct {
		name string
		cmd  []byte
		want bool
	}{
		{"valid", crc14b.Append([]byte{0x0A, 0x00, 0x90, 0x00}), true},
		{"invalid", []byte{0x0A, 0x00, 0x90, 0x00, 0xFF, 0xFF}, false},
	}

	for _, c := range cases {
		tag := newTestTag()
		tag.Receive([]byte{0x05, 0x00, 0x08, 0x39, 0x73})
		tag.Receive(c.cmd)

		if tag.CRCLog != c.want {
			t.Fatalf("%s: CRCLog = %v, want %v", c.name, tag.CRCLog, c.want)
		}

		if tag.State != TagIdle {
			t.Fatalf("%s: expected Idle, got %v", c.name, tag.State)
		}
	}
}
