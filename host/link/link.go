// Proxmark3 RDV4 host-side serial transport
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package link carries iso14b.Reader frames over the RDV4's USB-CDC serial
// link to a development host, for driving and testing the protocol engine
// without flashing it onto hardware.
package link

import (
	"encoding/binary"
	"errors"
	"fmt"

	serial "github.com/daedaluz/goserial"
	"github.com/usbarmory/iso14443b/iso14b"
)

// ErrShortRead is returned when the serial link closes or times out before
// a complete frame arrives.
var ErrShortRead = errors.New("link: short read")

// Link implements iso14b.Link over a length-prefixed frame on top of a
// serial.Port: a 2-byte little-endian length followed by that many payload
// bytes, mirroring the RDV4 bootrom's USB-CDC command protocol closely
// enough to drive the same host tooling.
type Link struct {
	port *serial.Port
}

// Open opens the serial device at name and returns a Link ready for use.
func Open(name string) (*Link, error) {
	opts := serial.NewOptions()
	opts.SetReadTimeout(0)

	port, err := serial.Open(name, opts)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", name, err)
	}

	return &Link{port: port}, nil
}

// Close releases the underlying serial port.
func (l *Link) Close() error {
	return l.port.Close()
}

// Transmit sends one length-prefixed frame.
func (l *Link) Transmit(frame []byte) error {
	header := make([]byte, 2)
	binary.LittleEndian.PutUint16(header, uint16(len(frame)))

	if _, err := l.port.Write(header); err != nil {
		return err
	}

	_, err := l.port.Write(frame)

	return err
}

// Receive reads one length-prefixed frame, bounding the wait by timeoutETU
// converted to wall-clock time (matching the reference firmware's
// ETU-denominated timeouts).
func (l *Link) Receive(timeoutETU uint32) ([]byte, error) {
	l.port.SetReadTimeout(iso14b.ETUDuration(timeoutETU))

	header := make([]byte, 2)
	if err := l.readFull(header); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint16(header)
	frame := make([]byte, n)

	if err := l.readFull(frame); err != nil {
		return nil, err
	}

	return frame, nil
}

func (l *Link) readFull(buf []byte) error {
	for read := 0; read < len(buf); {
		n, err := l.port.Read(buf[read:])
		if err != nil {
			return err
		}

		if n == 0 {
			return ErrShortRead
		}

		read += n
	}

	return nil
}
