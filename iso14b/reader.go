// ISO/IEC 14443 Type B reader protocol state machine
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

import (
	"time"

	"github.com/usbarmory/iso14443b/crc14b"
)

// Return codes shared by the reader selection and exchange operations.
const (
	StatusOK            = 0
	StatusShortFrame     = -1
	StatusCRCFailure     = -2
	StatusSRxShortFrame  = 2
	StatusSRxCRCFailure  = 3
)

var wupb = []byte{0x05, 0x00, 0x08, 0x39, 0x73}

// Link is the collaborator the reader state machine drives: it owns frame
// transmission and reception, independent of whether the traffic is carried
// by real RF hardware, a serial test link, or an in-process simulator.
type Link interface {
	// Transmit sends a complete frame (payload plus any trailer the
	// caller has already appended) and returns once it has cleared the
	// transmitter.
	Transmit(frame []byte) error

	// Receive blocks for up to timeout ETU and returns the frame
	// received, or an error/zero-length slice on timeout.
	Receive(timeoutETU uint32) ([]byte, error)
}

// Reader drives the Type B anticollision, ATTRIB and APDU exchange against
// a single selected card.
type Reader struct {
	Link Link

	card          Card
	pcbBlocknum   byte
	isoTimeout    uint32
	maxFrameSize  uint16
}

// transceive enforces the inter-frame guard times spec.md §4.5 requires
// around every exchange: ViccToVcdReader before transmitting (the gap since
// the previous tag response; it is waited out on the first exchange of a
// session too) and VcdToViccReader after transmitting, before the tag is
// expected to answer.
func (r *Reader) transceive(frame []byte, timeoutETU uint32) ([]byte, error) {
	time.Sleep(ETUDuration(ViccToVcdReader))

	if err := r.Link.Transmit(frame); err != nil {
		return nil, err
	}

	time.Sleep(ETUDuration(VcdToViccReader))

	return r.Link.Receive(timeoutETU)
}

// Card returns the descriptor of the last card successfully selected.
func (r *Reader) Card() *Card {
	return &r.card
}

// IsoTimeout returns the frame waiting time negotiated by the last
// SelectCard, in ETU.
func (r *Reader) IsoTimeout() uint32 {
	return r.isoTimeout
}

// MaxFrameSize returns the max_frame_size negotiated by the last
// SelectCard, in bytes.
func (r *Reader) MaxFrameSize() uint16 {
	return r.maxFrameSize
}

// SelectCard runs the standard Type B anticollision and ATTRIB sequence:
// WUPB, ATQB validation, ATTRIB. It returns StatusOK, StatusShortFrame (a
// link error, an ATQB that is not exactly 14 bytes, or an ATTRIB reply
// shorter than 3 bytes) or StatusCRCFailure.
func (r *Reader) SelectCard() int {
	atqb, err := r.transceive(wupb, ReaderTimeout)
	if err != nil || len(atqb) != 14 {
		return StatusShortFrame
	}

	if !crc14b.Check(atqb) {
		return StatusCRCFailure
	}

	var card Card
	copy(card.UID[:4], atqb[1:5])
	card.UIDLen = 4
	copy(card.ATQB[:], atqb[5:12])

	protType := card.ProtType()

	// Body per spec.md §4.5: 1D | PUPI(4) | 00 | 08 | ProtType | 00 00.
	// (§6's wire-format table lists four trailing zero bytes rather than
	// two; §4.5's literal byte list is followed here, consistent with
	// the Card.ATQB field layout derived from the same section.)
	attrib := []byte{0x1D, card.UID[0], card.UID[1], card.UID[2], card.UID[3], 0x00, 0x08, protType, 0x00, 0x00}
	attrib = crc14b.Append(attrib)

	resp, err := r.transceive(attrib, ReaderTimeout)
	if err != nil || len(resp) < 3 {
		return StatusShortFrame
	}

	if !crc14b.Check(resp) {
		return StatusCRCFailure
	}

	card.CID = resp[0]
	r.card = card
	r.pcbBlocknum = 0
	r.isoTimeout = FWT(int(card.FWI()))
	r.maxFrameSize = MaxFrameSizeFromNibble(card.MaxFrameSizeNibble())

	return StatusOK
}

// SelectSRxCard runs the SRx (ST Microelectronics short-range) selection
// flow: INITIATE, SELECT, GET_UID. It returns StatusOK,
// StatusSRxShortFrame or StatusSRxCRCFailure.
func (r *Reader) SelectSRxCard() int {
	initiate := crc14b.Append([]byte{0x06, 0x00})

	chipIDResp, err := r.transceive(initiate, ReaderTimeout)
	if err != nil || len(chipIDResp) < 3 {
		return StatusSRxShortFrame
	}

	if !crc14b.Check(chipIDResp) {
		return StatusSRxCRCFailure
	}

	chipID := chipIDResp[0]

	sel := crc14b.Append([]byte{0x0E, chipID})

	echo, err := r.transceive(sel, ReaderTimeout)
	if err != nil || len(echo) < 3 || echo[0] != chipID {
		return StatusSRxShortFrame
	}

	if !crc14b.Check(echo) {
		return StatusSRxCRCFailure
	}

	getUID := crc14b.Append([]byte{0x0B})

	uidResp, err := r.transceive(getUID, ReaderTimeout)
	if err != nil || len(uidResp) != 10 {
		return StatusSRxShortFrame
	}

	if !crc14b.Check(uidResp) {
		return StatusSRxCRCFailure
	}

	r.card = Card{ChipID: chipID, UIDLen: 8}
	copy(r.card.UID[:8], uidResp[:8])

	return StatusOK
}

// ReadSTBlock reads one SRx memory block after SelectSRxCard has succeeded.
// Per spec.md §7, a block response is 4 data bytes plus CRC_B, so anything
// shorter than 6 bytes is a short frame rather than a truncated block.
func (r *Reader) ReadSTBlock(block byte) ([]byte, int) {
	cmd := crc14b.Append([]byte{0x08, block})

	resp, err := r.transceive(cmd, ReaderTimeout)
	if err != nil || len(resp) < 6 {
		return nil, StatusSRxShortFrame
	}

	if !crc14b.Check(resp) {
		return nil, StatusSRxCRCFailure
	}

	return resp, StatusOK
}

// APDU exchanges one I-block with the selected card: it builds
// {PCB|pcbBlocknum, CID, inf..., CRC_B}, toggles pcbBlocknum before
// transmitting, and returns the payload with StatusOK on success, or nil
// with StatusShortFrame or StatusCRCFailure on any error.
func (r *Reader) APDU(inf []byte) ([]byte, int) {
	pcb := byte(0x0A) | r.pcbBlocknum
	r.pcbBlocknum ^= 1

	frame := make([]byte, 0, len(inf)+4)
	frame = append(frame, pcb, r.card.CID)
	frame = append(frame, inf...)
	frame = crc14b.Append(frame)

	timeout := r.isoTimeout
	if timeout == 0 {
		timeout = ReaderTimeout
	}

	resp, err := r.transceive(frame, timeout)
	if err != nil || len(resp) < 4 {
		return nil, StatusShortFrame
	}

	if !crc14b.Check(resp) {
		return nil, StatusCRCFailure
	}

	return resp[2 : len(resp)-2], StatusOK
}
