// ISO/IEC 14443 Type B link timing
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

import "time"

// Sample-clock delays between the antenna and the sample-processing loop,
// expressed in raw clock ticks of the capture grid. Values are carried over
// unchanged from the reference firmware: they describe fixed round-trip
// latency through the analog front end and are not implementation choices.
const (
	DelayArmToTag       = 16
	DelayTagToArm       = 32
	DelayReaderToArm    = 8
	DelayArmToReader    = 0
	DelayTagToArmSniff  = 32
	DelayReaderToArmSniff = 32
)

// Inter-frame and frame-waiting timing, in ETU unless noted.
const (
	// ViccToVcdReader is the minimum gap a reader must leave between the
	// end of a tag response and the start of its own next transmission.
	ViccToVcdReader = 600

	// VcdToViccReader is the minimum gap a reader must leave between the
	// end of its own transmission and expecting a tag response.
	VcdToViccReader = 600

	// ReaderTimeout bounds how long a reader waits for a tag response
	// after VcdToViccReader has elapsed, absent a negotiated FWT.
	ReaderTimeout = 1700

	// FWTDefault is the frame waiting time FWT returns for an fwi outside
	// the 4-bit nibble range.
	FWTDefault = 35312

	// FWTMax is the ceiling on a frame waiting time; FWT's largest
	// result, 302 << 15 at fwi=15, stays below it.
	FWTMax = 40542464

	// TR0, TR1, TR2 are the ISO 14443-2 guard, synchronisation and frame
	// delay times. They are exposed as named values only; the tag-emulation
	// state machine does not read them.
	TR0 = 64
	TR1 = 0
	TR2 = 0
)

// FWT converts an ATQB protocol-info frame-waiting-time integer (fwi) into
// ETU, per ISO 14443-3: 302 << fwi. fwi is meant to be a 4-bit nibble (0..15);
// an out-of-range value leaves the timeout at FWTDefault rather than
// extrapolating the shift.
func FWT(fwi int) uint32 {
	if fwi < 0 || fwi >= 16 {
		return FWTDefault
	}

	return uint32(302) << uint(fwi)
}

// maxFrameSizeTable maps the ATQB protocol-info max_frame_size nibble to the
// negotiated maximum frame size in bytes, per ISO 14443-3 Table 4.
var maxFrameSizeTable = [16]uint16{
	16, 24, 32, 40, 48, 64, 96, 128,
	256, 257, 257, 257, 257, 257, 257, 257,
}

// MaxFrameSizeFromNibble decodes the ATQB protocol-info max_frame_size nibble into a
// byte count.
func MaxFrameSizeFromNibble(nibble uint8) uint16 {
	return maxFrameSizeTable[nibble&0x0F]
}

// etuRate is the duration of one ETU at the reader's nominal 13.56MHz/128
// rate: 128/13.56e6 s, rounded to the nearest nanosecond.
const etuRate = 9440 * time.Nanosecond

// ETUDuration converts an ETU count into wall-clock time, for collaborators
// (Reader, host/link.Link) that enforce ISO 14443-2/3 timing outside of the
// sample-accurate RF transmit engine in tx.go.
func ETUDuration(etu uint32) time.Duration {
	return time.Duration(etu) * etuRate
}
