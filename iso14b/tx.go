// ISO/IEC 14443 Type B transmit engine scheduling
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

// Clock is the collaborator giving the transmit engine access to the SSP
// sample-clock grid: ssp_clk_now()/ssp_clk_start() in spec.md §6.
type Clock interface {
	Now() uint32
}

// Transmitter is the collaborator the transmit engine pushes ASK/BPSK
// symbols through: tx_push_word()/tx_ready()/tx_drain() in spec.md §6.
type Transmitter interface {
	PushWord(word uint16)
	Ready() bool
	Drain()
}

// TransmitReader schedules and drives a reader-to-tag ASK frame already
// built into t onto tx, aligned to the 16-tick clock grid: the 16-bit ASK
// envelope word is inverted (0x0000 for logic 1, 0xffff for logic 0), so
// the unmodulated carrier default is "low" at the transmitter.
//
// It returns the start_time for the next transmission, advanced by
// DelayArmToTag as spec.md §4.4 requires.
func TransmitReader(clk Clock, tx Transmitter, t *ToSend, startTime uint32) uint32 {
	if startTime < DelayArmToTag {
		startTime = DelayArmToTag
	}

	target := (startTime - DelayArmToTag) &^ 0xF

	if clk.Now() > target {
		target = (clk.Now() + DelayArmToTag) &^ 0xF
	}

	for clk.Now() < target {
	}

	for _, b := range t.Bytes() {
		for i := 7; i >= 0; i-- {
			word := uint16(0xffff)
			if (b>>uint(i))&1 == 1 {
				word = 0x0000
			}

			for !tx.Ready() {
			}

			tx.PushWord(word)
		}
	}

	tx.Drain()

	return startTime + DelayArmToTag
}

// TransmitTag drives a pre-encoded BPSK tag response onto tx as soon as
// each symbol slot is ready, preloading the line with an idle 0xFF symbol
// before the first real word as spec.md §4.4 requires.
func TransmitTag(tx Transmitter, response []byte) {
	for !tx.Ready() {
	}

	tx.PushWord(0x00FF)

	for _, b := range response {
		for !tx.Ready() {
		}

		tx.PushWord(uint16(b))
	}

	tx.Drain()
}
