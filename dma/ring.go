// IQ sample ring over a DMA region
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

// Ring wraps a single, fixed-size Region reservation used as a lock-free
// producer/consumer ring buffer, the shape that RF front-end DMA (IQ sample
// delivery) uses: one producer (the DMA controller), one consumer (the
// decode loop), no locking, wrap detected by pointer comparison rather than
// by a modulo on every sample.
//
// A Ring is not safe for concurrent use by more than one consumer, matching
// the single-consumer busy-poll model it backs.
type Ring struct {
	region *Region
	addr   uint
	buf    []byte

	// upTo is the last position consumed.
	upTo uint
}

// NewRing reserves a size byte buffer for DMA use within region and returns
// a Ring over it. A nil region allocates a plain Go slice instead, which is
// sufficient for host-side simulation and tests that never touch real DMA
// hardware.
func NewRing(region *Region, size int) *Ring {
	r := &Ring{region: region}

	if region == nil {
		r.buf = make([]byte, size)
		return r
	}

	r.addr, r.buf = region.Reserve(size, 0)

	return r
}

// Bytes returns the backing buffer, suitable for arming a DMA controller's
// base pointer and length registers.
func (r *Ring) Bytes() []byte {
	return r.buf
}

// Addr returns the DMA address of the backing buffer (zero when the Ring
// was created without a Region).
func (r *Ring) Addr() uint {
	return r.addr
}

// Start (re)arms the ring for a fresh capture: the consumer cursor is reset
// to the base of the buffer, mirroring dma_start() of the external DMA
// collaborator.
func (r *Ring) Start() {
	r.upTo = 0
}

// RewindIfExhausted re-arms the ring once the hardware counter has consumed
// the whole buffer, corresponding to "when both physical DMA counter
// registers reach zero, the consumer re-arms them with the original base
// pointer and a full-buffer length". cursor is the hardware-reported number
// of bytes remaining; once it reaches zero the ring wraps back to offset 0.
func (r *Ring) RewindIfExhausted(cursor int) {
	if cursor > 0 {
		return
	}

	r.upTo = 0
}

// Advance records that the consumer has processed up to the given offset
// into the buffer, detecting wraparound by simple pointer comparison (an
// offset smaller than the previous one means the hardware counter wrapped).
func (r *Ring) Advance(offset uint) (wrapped bool) {
	wrapped = offset < r.upTo
	r.upTo = offset
	return
}

// Cursor returns the last consumer offset recorded by Advance.
func (r *Ring) Cursor() uint {
	return r.upTo
}

// Len returns the ring capacity in bytes.
func (r *Ring) Len() int {
	return len(r.buf)
}
