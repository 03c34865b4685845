// ISO/IEC 14443 Type B sniffer
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

// Trace is one decoded frame recorded by the sniffer, timestamped at the
// sample grid it was captured on.
type Trace struct {
	Data            []byte
	SOFTime, EOFTime uint64
	IsReaderDirection bool
}

// Sniffer demultiplexes a single IQ stream to both a tag-side UART decoder
// (for the reader->tag direction) and a reader-side BPSK demodulator (for
// the tag->reader direction), enforcing mutual exclusion between them so
// only one frame is ever in flight.
type Sniffer struct {
	Uart  Uart
	Demod Demod

	expectTagAnswer bool
	sampleCount     uint64

	Traces []Trace
}

// Reset rearms both decoders for a fresh capture.
func (s *Sniffer) Reset() {
	s.Uart.Reset()
	s.Demod.Reset()
	s.expectTagAnswer = false
	s.sampleCount = 0
	s.Traces = s.Traces[:0]
}

// tagIsActive reports whether the reader-side demodulator (decoding the
// tag's BPSK reply) is mid-frame, per spec.md §4.7's state ordering: any
// state past GotSofFallingEdge counts as active.
func (s *Sniffer) tagIsActive() bool {
	return s.Demod.State > DemodGotSofFallingEdge
}

// readerIsActive reports whether the tag-side UART decoder (decoding the
// reader's ASK command) is mid-frame.
func (s *Sniffer) readerIsActive() bool {
	return s.Uart.State > UartGotSofFallingEdge
}

// Feed processes one 2-sample IQ pair (ci, cq), each an 8-bit signed
// subcarrier component as delivered by the front end, driving whichever
// decoder mutual exclusion permits.
func (s *Sniffer) Feed(ci, cq int8) {
	sofSample := s.sampleCount
	s.sampleCount++

	if !s.tagIsActive() {
		// reader->tag traffic is ASK; synthesize envelope bits from
		// the low bit of each IQ component, as the tag-side UART
		// expects a single-bit envelope rather than a full sample.
		if s.Uart.Bit(int(ci) & 1) {
			s.record(sofSample, false)
		}

		if s.Uart.Bit(int(cq) & 1) {
			s.record(sofSample, false)
		}
	}

	if !s.readerIsActive() && s.expectTagAnswer {
		if s.Demod.Sample(ci>>1, cq>>1) {
			s.record(sofSample, true)
		}
	}
}

// record captures the frame just produced by whichever decoder emitted it,
// anchoring its timestamp to the sample grid, and resets both decoders to
// listen for the next frame.
func (s *Sniffer) record(sofSample uint64, tagDirection bool) {
	var data []byte

	if tagDirection {
		data = append([]byte{}, s.Demod.Output()...)
	} else {
		data = append([]byte{}, s.Uart.Output()...)
	}

	// anchor: dma_start_time + samples*16 ticks, minus the SOF offset of
	// bytes*128 + 32*16 ticks already consumed decoding the frame.
	eofTime := sofSample * 16
	offset := uint64(len(data))*128 + 32*16

	sof := eofTime
	if offset < sof {
		sof -= offset
	} else {
		sof = 0
	}

	s.Traces = append(s.Traces, Trace{
		Data:              data,
		SOFTime:           sof,
		EOFTime:           eofTime,
		IsReaderDirection: !tagDirection,
	})

	s.Uart.Reset()
	s.Demod.Reset()
	s.expectTagAnswer = !tagDirection
}
