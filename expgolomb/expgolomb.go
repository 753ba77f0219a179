/*
NAME
  expgolomb.go

DESCRIPTION
  expgolomb.go provides Exp-Golomb code readers and RBSP utilities shared by
  the NAL-unit codec parsers (H.264, H.265), following the method described
  in section 9.1 of ITU-T H.264 (04/2017).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package expgolomb provides Exp-Golomb code readers and EBSP/RBSP
// utilities for NAL-unit bitstream parsing.
package expgolomb

import (
	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
)

// ReadUE reads an unsigned integer Exp-Golomb-coded syntax element: a
// leading-zero-bit prefix of length Z, a single 1 bit, then Z further bits;
// the value is (1<<Z)-1+tail.
func ReadUE(br *bytestream.BitReader) (uint64, error) {
	var z int
	for {
		b, err := br.GetBit()
		if err != nil {
			return 0, errors.Wrap(err, "expgolomb: reading leading zero bits")
		}
		if b == 1 {
			break
		}
		z++
		if z > 63 {
			return 0, errors.New("expgolomb: exp-golomb prefix too long")
		}
	}
	if z == 0 {
		return 0, nil
	}
	tail, err := br.Get(z)
	if err != nil {
		return 0, errors.Wrap(err, "expgolomb: reading exp-golomb tail")
	}
	return (uint64(1)<<uint(z) - 1) + tail, nil
}

// ReadSE reads a signed integer Exp-Golomb-coded syntax element: codeNum is
// mapped as (codeNum&1) ? +((codeNum>>1)+1) : -(codeNum>>1).
func ReadSE(br *bytestream.BitReader) (int64, error) {
	codeNum, err := ReadUE(br)
	if err != nil {
		return 0, errors.Wrap(err, "expgolomb: reading ue(v) for se(v)")
	}
	if codeNum&1 != 0 {
		return int64(codeNum>>1) + 1, nil
	}
	return -int64(codeNum >> 1), nil
}

// ReadTE reads a truncated Exp-Golomb-coded syntax element as specified in
// section 9.1: when the range x is 1, a single bit (inverted) is read;
// otherwise it falls back to ue(v).
func ReadTE(br *bytestream.BitReader, x uint) (int64, error) {
	switch {
	case x > 1:
		return ReadUE(br)
	case x == 1:
		b, err := br.GetBit()
		if err != nil {
			return 0, errors.Wrap(err, "expgolomb: reading te(v) bit")
		}
		if b == 0 {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.New("expgolomb: te(v) requires x >= 1")
	}
}

// MoreRBSPData reports whether there is more RBSP data to read in br,
// given the total number of bits in the RBSP buffer, before the
// rbsp_trailing_bits() sequence: a single 1 bit followed only by zero
// bits. It peeks ahead without consuming. The canonical stop detection is
// the trailing 0x80-masked byte: the remaining bits are not exactly a
// single set bit followed by zeros.
func MoreRBSPData(br *bytestream.BitReader, totalBits int) bool {
	remaining := totalBits - int(br.BitPosition())
	if remaining <= 0 {
		return false
	}
	v, err := br.Peek(remaining)
	if err != nil {
		return false
	}
	trailingBitsPattern := uint64(1) << uint(remaining-1)
	return v != trailingBitsPattern
}
