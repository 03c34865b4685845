// Proxmark3 RDV4 board support
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

// Package rdv4 wires the Proxmark3 RDV4's FPGA/SSC register interface and
// sample DMA ring into the protocol engine in package iso14b. It is the
// bare-metal equivalent of the host-side harness in cmd/pm3sim: the thing
// that turns an iso14b.Reader/Tag/Sniffer into a running RF mode.
package rdv4

import (
	"github.com/usbarmory/iso14443b/dma"
	"github.com/usbarmory/iso14443b/iso14b"
	"github.com/usbarmory/iso14443b/soc/pm3"
)

// iqSampleBytes is the width of one IQ sample pair (ci, cq) as delivered by
// the DMA engine: two signed bytes.
const iqSampleBytes = 2

// sampleRingLen is the IQ sample ring size spec.md §5 specifies: ~512
// samples of 16-bit IQ.
const sampleRingLen = 512 * iqSampleBytes

// Ring is the lock-free sample ring the consumer loop drains; Init backs it
// with a block reserved from the default DMA region.
var Ring *dma.Ring

// Init allocates the sample ring over the DMA region at base/size and arms
// the SSC transmit/receive paths. Applications call this once before
// entering a mode loop.
func Init(dmaBase, dmaSize uint) {
	dma.Init(dmaBase, dmaSize)
	Ring = dma.NewRing(dma.Default(), sampleRingLen)
	pm3.Enable()
}

// button and watchdog are package state rather than an interface because
// the sample loop polls them on every single iteration: an interface call
// here would cost more than the bare-metal target's timing budget allows.
var (
	buttonPressed func() bool
	dataAvailable func() bool
	watchdogKick  func()
)

// SetCancellation wires the physical button, which every sample loop polls
// each iteration, and the host "data available" signal, which the
// tag-emulation loop polls each iteration to pre-empt itself, per spec.md
// §5's cancellation model.
func SetCancellation(button, data func() bool, kick func()) {
	buttonPressed = button
	dataAvailable = data
	watchdogKick = kick
}

// cancelled reports whether the current mode loop must stop: a button
// press is terminal, per spec.md §5.
func cancelled() bool {
	if watchdogKick != nil {
		watchdogKick()
	}

	return buttonPressed != nil && buttonPressed()
}

// RunReaderReceive drives one ISO 14443 Type B reader-side receive pass:
// switch the FPGA into IQ848 capture, read samples off Ring into demod
// until EOF or cancellation, and return the decoded frame.
func RunReaderReceive(demod *iso14b.Demod) ([]byte, bool) {
	pm3.SetMode(pm3.ReaderReceiveIQ848, 0)
	demod.Reset()

	Ring.Start()

	for {
		if cancelled() {
			return nil, false
		}

		pm3.PollStatus()

		buf := Ring.Bytes()
		cursor := Ring.Cursor()

		if int(cursor)+iqSampleBytes > len(buf) {
			Ring.RewindIfExhausted(0)
			continue
		}

		ci := int8(buf[cursor])
		cq := int8(buf[cursor+1])
		Ring.Advance(cursor + uint(iqSampleBytes))

		if demod.Sample(ci, cq) {
			return demod.Output(), true
		}
	}
}

// RunTagReceive drives one ISO 14443 Type B tag-emulation receive pass,
// symmetric to RunReaderReceive but against the ASK UART decoder.
func RunTagReceive(u *iso14b.Uart) ([]byte, bool) {
	pm3.SetMode(pm3.SimulatorNoMod, 0)
	u.Reset()

	Ring.Start()

	for {
		if cancelled() {
			return nil, false
		}

		if dataAvailable != nil && dataAvailable() {
			return nil, false
		}

		pm3.PollStatus()

		buf := Ring.Bytes()
		cursor := Ring.Cursor()

		if int(cursor)+1 > len(buf) {
			Ring.RewindIfExhausted(0)
			continue
		}

		bit := int(buf[cursor]) & 1
		Ring.Advance(cursor + 1)

		if u.Bit(bit) {
			return u.Output(), true
		}
	}
}

// RunSniff drives one sniff capture pass: switch the FPGA into its
// combined reader/tag IQ848 sniff mode, and hand every sample pair off to
// sniffer's mutual-exclusion demultiplexer until cancelled. Unlike
// RunReaderReceive/RunTagReceive it never returns a single frame — traces
// accumulate in sniffer.Traces as the capture runs, so the caller drains
// them (e.g. over host/link) independently of this loop's lifetime.
func RunSniff(sniffer *iso14b.Sniffer) {
	pm3.SetMode(pm3.ReaderSniffIQ848, 0)
	sniffer.Reset()

	Ring.Start()

	for !cancelled() {
		pm3.PollStatus()

		buf := Ring.Bytes()
		cursor := Ring.Cursor()

		if int(cursor)+iqSampleBytes > len(buf) {
			Ring.RewindIfExhausted(0)
			continue
		}

		ci := int8(buf[cursor])
		cq := int8(buf[cursor+1])
		Ring.Advance(cursor + uint(iqSampleBytes))

		sniffer.Feed(ci, cq)
	}
}

// SendReaderFrame switches the FPGA to shallow-modulation reader mode and
// transmits t, returning the start_time to use for the next transmission.
func SendReaderFrame(t *iso14b.ToSend, startTime uint32) uint32 {
	pm3.SetMode(pm3.ReaderSendShallow, 0)
	return iso14b.TransmitReader(pm3.Clock{}, pm3.Transmitter{}, t, startTime)
}

// SendTagFrame switches the FPGA to BPSK-simulate mode and transmits the
// pre-encoded tag response.
func SendTagFrame(response []byte) {
	pm3.SetMode(pm3.SimulatorBPSK, 0)
	iso14b.TransmitTag(pm3.Transmitter{}, response)
}
