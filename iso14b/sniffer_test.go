// ISO/IEC 14443 Type B sniffer
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iso14b

import (
	"bytes"
	"testing"
)

// readerIQFrame builds the (ci, cq) stream Sniffer.Feed expects for a reader
// command: each stuffbit of the ASK-encoded frame sampled 4 times, exactly
// as feedReaderFrame does for the bare Uart decoder, but packed two bit
// samples per Feed call since Feed splits one IQ pair into two Uart.Bit
// calls (ci then cq).
func readerIQFrame(msg []byte) [][2]int8 {
	var ts ToSend
	EncodeReader(&ts, msg)

	var stream []int8

	for _, b := range ts.Bytes() {
		for i := 7; i >= 0; i-- {
			bit := int8(b>>uint(i)) & 1

			for n := 0; n < 4; n++ {
				stream = append(stream, bit)
			}
		}
	}

	var samples [][2]int8
	for i := 0; i+1 < len(stream); i += 2 {
		samples = append(samples, [2]int8{stream[i], stream[i+1]})
	}

	return samples
}

// tagIQFrame builds the (ci, cq) stream Sniffer.Feed expects for a tag
// response: encode_tag's 4x oversampled BPSK stuffbits collapsed back to one
// sample pair per ETU (as codec_test.go's round trip does), amplitude
// doubled since Feed right-shifts each component by one bit before handing
// it to Demod.Sample.
func tagIQFrame(msg []byte) [][2]int8 {
	var ts ToSend
	EncodeTag(&ts, msg)

	var samples [][2]int8
	for _, bit := range unpackStuffbits4(ts.Bytes()) {
		ci := int8(-iqAmplitude * 2)
		if bit == 1 {
			ci = iqAmplitude * 2
		}

		samples = append(samples, [2]int8{ci, 0}, [2]int8{ci, 0})
	}

	return samples
}

// TestSnifferDemultiplexesReaderThenTag exercises spec.md §4.7's mutual
// exclusion rule across one full exchange: a reader command followed by the
// tag's reply on the same IQ stream must yield two traces, attributed to the
// correct direction, without either decoder's state bleeding into the
// other's frame.
func TestSnifferDemultiplexesReaderThenTag(t *testing.T) {
	readerMsg := []byte{0x05, 0x00, 0x08, 0x39, 0x73}
	tagMsg := []byte{0x50, 0x82, 0x0D, 0xE1}

	var s Sniffer
	s.Reset()

	for _, iq := range readerIQFrame(readerMsg) {
		s.Feed(iq[0], iq[1])
	}

	for _, iq := range tagIQFrame(tagMsg) {
		s.Feed(iq[0], iq[1])
	}

	if len(s.Traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(s.Traces))
	}

	reader, tag := s.Traces[0], s.Traces[1]

	if !reader.IsReaderDirection {
		t.Fatalf("trace 0: expected reader direction")
	}

	if !bytes.Equal(reader.Data, readerMsg) {
		t.Fatalf("trace 0: data = %x, want %x", reader.Data, readerMsg)
	}

	if tag.IsReaderDirection {
		t.Fatalf("trace 1: expected tag direction")
	}

	if !bytes.Equal(tag.Data, tagMsg) {
		t.Fatalf("trace 1: data = %x, want %x", tag.Data, tagMsg)
	}
}

// TestSnifferIgnoresTagSamplesBeforeReaderFrame covers the other half of the
// exclusion rule: with no reader frame captured yet, expectTagAnswer is
// false, so BPSK-shaped samples must never be handed to Demod (and so never
// produce a spurious trace).
func TestSnifferIgnoresTagSamplesBeforeReaderFrame(t *testing.T) {
	var s Sniffer
	s.Reset()

	for _, iq := range tagIQFrame([]byte{0x00, 0x78, 0xF0}) {
		s.Feed(iq[0], iq[1])
	}

	if len(s.Traces) != 0 {
		t.Fatalf("expected no traces, got %d", len(s.Traces))
	}
}
