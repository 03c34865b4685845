// Proxmark3 RDV4 bare-metal protocol engine
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

// The pm3rdv4 command is the bare-metal entry point: it initializes the
// RDV4's FPGA/SSC/DMA stack in board/pm3/rdv4 and drives it as either a
// reader or an emulated tag, per spec.md §5/§6, with a background sniff
// capture running the whole time.
package main

import (
	"log"

	"github.com/usbarmory/iso14443b/board/pm3/rdv4"
	"github.com/usbarmory/iso14443b/iso14b"
)

// dmaBase/dmaSize describe the reserved DRAM window board/pm3/rdv4.Init
// carves the IQ sample ring out of; values are board-specific and set here
// rather than probed, mirroring the teacher's own board packages' DMA
// region constants.
const (
	dmaBase = 0x70000000
	dmaSize = 0x00100000
)

// TagEmulation selects which RF role this firmware image runs: false drives
// the reader state machine against a card in the field, true emulates a
// card against an external reader. A future board-strap-pin read would set
// this before main runs; for now it is the build's single switch.
var TagEmulation = false

func main() {
	rdv4.Init(dmaBase, dmaSize)
	rdv4.SetCancellation(nil, nil, nil)

	go sniffLoop()

	if TagEmulation {
		runTag()
	} else {
		runReader()
	}
}

// sniffLoop runs a sniff capture for the lifetime of the firmware image,
// independent of whichever RF role main() drives; its traces are meant to
// be drained over a host link (see host/link) by whatever tooling is
// attached to the RDV4's USB-CDC port.
func sniffLoop() {
	var sniffer iso14b.Sniffer
	rdv4.RunSniff(&sniffer)
}

// rfLink bridges the bit-level reader transmit/receive primitives in
// board/pm3/rdv4 to the iso14b.Reader protocol state machine: the bare-metal
// counterpart of host/link.Link.
type rfLink struct {
	startTime uint32
	demod     iso14b.Demod
	ts        iso14b.ToSend
}

func (l *rfLink) Transmit(frame []byte) error {
	iso14b.EncodeReader(&l.ts, frame)
	l.startTime = rdv4.SendReaderFrame(&l.ts, l.startTime)
	return nil
}

func (l *rfLink) Receive(timeoutETU uint32) ([]byte, error) {
	frame, ok := rdv4.RunReaderReceive(&l.demod)
	if !ok {
		return nil, errCancelled
	}

	return frame, nil
}

var errCancelled = rfLinkError("pm3rdv4: cancelled")

type rfLinkError string

func (e rfLinkError) Error() string { return string(e) }

// runReader drives the standard anticollision/ATTRIB/APDU flow against
// whatever card answers in the field, looping forever: a real reader keeps
// polling once a card leaves the field.
func runReader() {
	link := &rfLink{}
	reader := iso14b.Reader{Link: link}

	for {
		if status := reader.SelectCard(); status != iso14b.StatusOK {
			continue
		}

		log.Printf("pm3rdv4: card selected uid=%x", reader.Card().UID[:reader.Card().UIDLen])
	}
}

// runTag answers reader commands with the tag-emulation state machine,
// transmitting whatever response it produces back over the FPGA's
// BPSK-simulate path.
func runTag() {
	var tag iso14b.Tag
	tag.ATQB = [14]byte{0x50, 0x82, 0x0D, 0xE1, 0x74, 0x20, 0x38, 0x19, 0x22, 0x00, 0x21, 0x85, 0x5E, 0xD7}
	tag.FieldDetected()

	var uart iso14b.Uart

	for {
		frame, ok := rdv4.RunTagReceive(&uart)
		if !ok {
			return
		}

		if resp := tag.Receive(frame); resp != nil {
			rdv4.SendTagFrame(resp)
			tag.Acknowledge()
		}
	}
}
