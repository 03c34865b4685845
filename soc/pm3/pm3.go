// Proxmark3 RDV4 FPGA/SSC register interface
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago

// Package pm3 drives the RDV4's FPGA RF front-end and SSC (synchronous
// serial controller) sample path: the register-level half of the
// rf_mode/ssp_clk/tx_push_word collaborator contracts in spec.md §6.
package pm3

import (
	"github.com/usbarmory/iso14443b/bits"
	"github.com/usbarmory/iso14443b/internal/reg"
)

// Base addresses of the two peripherals this package drives. They are
// variables, not constants, so board wiring can override them per SoC
// revision without forking the package.
var (
	FPGABase = uint32(0xfffa4000)
	SSCBase  = uint32(0xfffd4000)
)

// FPGA command register: a single write-only word selecting the RF front
// end's major mode and minor options, shifted out over the SSC on every
// write (mirrors the real hardware's bit-serial FPGA command path).
const (
	fpgaCmd = 0x0000

	fpgaCmdModePos = 12
	fpgaCmdModeMsk = 0x7

	fpgaCmdOptPos = 0
	fpgaCmdOptMsk = 0xFFF
)

// RF front-end modes, matching spec.md §6's rf_mode contract.
type Mode uint32

const (
	ReaderSendShallow Mode = iota
	ReaderReceiveIQ848
	ReaderSniffIQ848
	SimulatorNoMod
	SimulatorBPSK
)

// SSC registers (Atmel SSC layout: control, mode, receive/transmit holding
// and status).
const (
	sscCR  = 0x0000
	sscRHR = 0x0020
	sscTHR = 0x0024
	sscSR  = 0x0040

	sscSR_TXRDY = 1
	sscSR_TXEMPTY = 9
	sscSR_RXRDY = 0

	sscCR_TXEN = 8
	sscCR_RXEN = 0
)

// SetMode writes the FPGA command register to switch the RF front end into
// mode, with minor options opt packed into the low 12 bits.
func SetMode(mode Mode, opt uint32) {
	cmd := (uint32(mode)&fpgaCmdModeMsk)<<fpgaCmdModePos | (opt & fpgaCmdOptMsk)
	reg.Write(FPGABase+fpgaCmd, cmd)
}

// Clock implements iso14b.Clock over the SSC's free-running sample
// counter, exposed here as a monotonically increasing register rather
// than a real timer peripheral: ssp_clk_now()/ssp_clk_start() in spec.md
// §6. The counter itself is advanced by the DMA controller alongside
// sample capture, not by this package.
type Clock struct{}

// Now returns the current tick of the SSP sample-clock grid.
func (Clock) Now() uint32 {
	return reg.Read(SSCBase + sscRHR)
}

// Transmitter implements iso14b.Transmitter over the SSC transmit path:
// tx_push_word()/tx_ready()/tx_drain() in spec.md §6.
type Transmitter struct{}

// Ready reports whether the SSC transmit holding register can accept
// another word.
func (Transmitter) Ready() bool {
	return bits.Get(&sscSRShadow, sscSR_TXRDY, 1) == 1
}

// PushWord writes one 16-bit symbol to the SSC transmit holding register.
func (Transmitter) PushWord(word uint16) {
	reg.Write(SSCBase+sscTHR, uint32(word))
}

// Drain blocks until the transmit shift register has fully emptied, so the
// caller can safely switch RF mode immediately afterwards.
func (Transmitter) Drain() {
	reg.Wait(SSCBase+sscSR, sscSR_TXEMPTY, 1, 1)
}

// sscSRShadow is a local mirror of the status register used only by the
// Ready() bit test above, which operates on an in-memory word via the
// bits package rather than re-reading hardware on every poll.
var sscSRShadow uint32

// pollStatus refreshes the in-memory status shadow from the SSC status
// register; board wiring calls this once per sample-loop iteration.
func pollStatus() {
	sscSRShadow = reg.Read(SSCBase + sscSR)
}

// PollStatus refreshes the cached SSC status word consumed by
// Transmitter.Ready.
func PollStatus() {
	pollStatus()
}

// Enable arms the SSC transmit and receive paths.
func Enable() {
	reg.Set(SSCBase+sscCR, sscCR_TXEN)
	reg.Set(SSCBase+sscCR, sscCR_RXEN)
}
