// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

// AckCode is the acknowledgement byte leading every extended reply
// payload. Anything other than AckOK is a firmware-reported failure.
//
// The numeric values are protocol facts sourced from the controller
// firmware; they are collected here as a closed enumeration so callers
// never handle raw integers.
type AckCode byte

const (
	AckOK AckCode = 0x76 // request accepted

	NackGeneral         AckCode = 0xFF // unspecified failure
	NackPacketCRC       AckCode = 0xCE // frame checksum did not validate on the device
	NackPacketLength    AckCode = 0xD0 // payload too short or too long
	NackTransferSize    AckCode = 0xD1 // transfer exceeds the negotiated size
	NackProgramCRC      AckCode = 0xD2 // program checksum mismatch
	NackProgramFile     AckCode = 0xD3 // program file error
	NackUninitTransfer  AckCode = 0xD4 // file operation before transfer init
	NackInvalidInit     AckCode = 0xD5 // malformed transfer init
	NackAlignment       AckCode = 0xD6 // write not padded to a four-byte boundary
	NackAddress         AckCode = 0xD7 // write address does not match the transfer
	NackIncomplete      AckCode = 0xD8 // transfer length does not match the init
	NackNoDirectory     AckCode = 0xD9 // directory does not exist
	NackMaxUserFiles    AckCode = 0xDA // user file limit reached
	NackFileExists      AckCode = 0xDB // file exists and overwrite was not requested
	NackFileStorageFull AckCode = 0xDC // filesystem full
)

var ackNames = map[AckCode]string{
	AckOK:               "ACK",
	NackGeneral:         "NACK",
	NackPacketCRC:       "NACK_PACKET_CRC",
	NackPacketLength:    "NACK_PACKET_LENGTH",
	NackTransferSize:    "NACK_TRANSFER_SIZE",
	NackProgramCRC:      "NACK_PROGRAM_CRC",
	NackProgramFile:     "NACK_PROGRAM_FILE",
	NackUninitTransfer:  "NACK_UNINITIALIZED_TRANSFER",
	NackInvalidInit:     "NACK_INVALID_INIT",
	NackAlignment:       "NACK_ALIGNMENT",
	NackAddress:         "NACK_ADDRESS",
	NackIncomplete:      "NACK_INCOMPLETE",
	NackNoDirectory:     "NACK_NO_DIRECTORY",
	NackMaxUserFiles:    "NACK_MAX_USER_FILES",
	NackFileExists:      "NACK_FILE_EXISTS",
	NackFileStorageFull: "NACK_FILE_STORAGE_FULL",
}

// Known reports whether c is a defined acknowledgement code.
func (c AckCode) Known() bool {
	_, ok := ackNames[c]
	return ok
}

// OK reports whether c acknowledges success.
func (c AckCode) OK() bool {
	return c == AckOK
}

func (c AckCode) String() string {
	if name, ok := ackNames[c]; ok {
		return name
	}
	return "NACK_UNKNOWN"
}
