// DMA region bring-up
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

import (
	"container/list"
)

// NewRegion allocates a Region for a memory range starting at start and
// spanning size bytes. The caller must guarantee that the range is never
// used by anything other than this Region.
func NewRegion(start uint, size uint) *Region {
	r := &Region{
		start:      start,
		size:       size,
		freeBlocks: list.New(),
		usedBlocks: make(map[uint]*block),
	}

	r.freeBlocks.PushFront(&block{addr: start, size: size})

	return r
}

// Init initializes the package default Region, see NewRegion.
func Init(start uint, size uint) {
	dma = NewRegion(start, size)
}
