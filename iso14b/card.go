// ISO/IEC 14443 Type B card descriptor
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

// Card records what a reader learns about a selected PICC: its identifier,
// the raw ATQB that produced it, and the CID assigned by ATTRIB.
type Card struct {
	// UID holds the PUPI (4 bytes) or, for SRx cards, the full 8-byte
	// unique identifier; UIDLen says which.
	UID    [8]byte
	UIDLen uint8

	// ATQB is the ATQB payload following the leading 0x50 and PUPI,
	// i.e. Application Data (4 bytes) and Protocol Info (3 bytes).
	ATQB [7]byte

	// CID is the card identifier assigned by ATTRIB.
	CID byte

	// ChipID identifies an SRx card selected via select_srx_card; it is
	// zero for standard anticollision.
	ChipID byte
}

// PUPI returns the 4-byte PUPI for a standard-anticollision card.
func (c *Card) PUPI() [4]byte {
	var pupi [4]byte
	copy(pupi[:], c.UID[:4])
	return pupi
}

// ProtType returns the protocol type nibble carried in the ATQB's Protocol
// Info byte, used to build ATTRIB.
func (c *Card) ProtType() byte {
	return c.ATQB[5] & 0x0F
}

// FWI returns the frame-waiting-time integer carried in the ATQB's Protocol
// Info byte.
func (c *Card) FWI() uint8 {
	return c.ATQB[6] >> 4
}

// MaxFrameSizeNibble returns the max_frame_size nibble carried in the
// ATQB's Protocol Info byte.
func (c *Card) MaxFrameSizeNibble() uint8 {
	return c.ATQB[5] >> 4
}
