// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

import "github.com/sigurn/crc16"

// The controllers checksum every CDC2 frame with CRC-16/XMODEM
// (polynomial 0x1021, zero seed, no reflection).
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum computes the frame checksum over the given bytes.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// File transfers are integrity-checked with a non-reflected CRC-32
// (polynomial 0x04C11DB7, zero seed, zero xorout). This is not the
// IEEE CRC-32 from hash/crc32, which is bit-reflected.
var crc32Table = makeCRC32Table()

func makeCRC32Table() [256]uint32 {
	var table [256]uint32
	for i := range table {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// Checksum32 computes the file-transfer checksum over the given bytes.
func Checksum32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}
