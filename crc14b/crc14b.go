// ISO/IEC 14443-3 Type B CRC (CRC_B)
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package crc14b implements the CRC_B check of ISO/IEC 14443-3: a CRC-16
// with polynomial 0x1021, initial value 0xFFFF, both input and output
// reflected, and a final XOR of 0xFFFF, appended to a frame little-endian.
//
// This is bit-for-bit the CRC-16/X-25 parameter set, so the computation is
// delegated to github.com/sigurn/crc16 rather than hand rolled.
package crc14b

import "github.com/sigurn/crc16"

var table = crc16.MakeTable(crc16.CRC16_X_25)

// Checksum returns the CRC_B of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Append computes the CRC_B of data and returns data with the checksum
// appended little-endian, as required on every ISO 14443B command/response.
func Append(data []byte) []byte {
	crc := Checksum(data)
	return append(data, byte(crc), byte(crc>>8))
}

// Check reports whether the last two bytes of data are a valid CRC_B over
// the bytes that precede them. Frames shorter than 2 bytes are never valid.
func Check(data []byte) bool {
	if len(data) < 2 {
		return false
	}

	payload := data[:len(data)-2]
	want := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8

	return Checksum(payload) == want
}
