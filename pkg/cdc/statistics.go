// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

import "fmt"

// Statistics counts decode outcomes for a stream. The zero value is
// ready to use. Decoder keeps one internally; tools aggregate further
// counters (NACKs, exchange counts) on top.
type Statistics struct {
	Packets        uint64 // frames decoded successfully
	ChecksumErrors uint64 // frames dropped for a bad checksum
	HeaderErrors   uint64 // resync events with no recognizable header
	DiscardedBytes uint64 // bytes thrown away during resync
	Nacks          uint64 // extended replies carrying a NACK code
}

// Add accumulates other into s.
func (s *Statistics) Add(other Statistics) {
	s.Packets += other.Packets
	s.ChecksumErrors += other.ChecksumErrors
	s.HeaderErrors += other.HeaderErrors
	s.DiscardedBytes += other.DiscardedBytes
	s.Nacks += other.Nacks
}

// ErrorRate returns the fraction of decode attempts that failed, in the
// range [0, 1].
func (s Statistics) ErrorRate() float64 {
	total := s.Packets + s.ChecksumErrors + s.HeaderErrors
	if total == 0 {
		return 0
	}
	return float64(s.ChecksumErrors+s.HeaderErrors) / float64(total)
}

func (s Statistics) String() string {
	return fmt.Sprintf("packets=%d crc_errors=%d header_errors=%d discarded=%dB nacks=%d",
		s.Packets, s.ChecksumErrors, s.HeaderErrors, s.DiscardedBytes, s.Nacks)
}
