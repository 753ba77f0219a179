/*
NAME
  nal.go

DESCRIPTION
  nal.go provides H.264 NAL unit header parsing and the access-unit
  assembler: start-code scanning over an Annex-B byte stream, AU-boundary
  detection from slice-header syntax, and the final length-prefixed AU
  encoding.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package avc implements the H.264/AVC importer: NAL-unit parsing,
// parameter-set deduplication, access-unit assembly, picture-order-count
// reconstruction, and two-pass DTS/CTS synthesis.
package avc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// NAL unit types, Table 7-1, Rec. ITU-T H.264.
const (
	NALTypeNonIDR                 = 1
	NALTypeDataPartitionA         = 2
	NALTypeDataPartitionB         = 3
	NALTypeDataPartitionC         = 4
	NALTypeIDR                    = 5
	NALTypeSEI                    = 6
	NALTypeSPS                    = 7
	NALTypePPS                    = 8
	NALTypeAccessUnitDelimiter    = 9
	NALTypeEndOfSequence          = 10
	NALTypeEndOfStream            = 11
	NALTypeFiller                 = 12
	NALTypeSPSExt                 = 13
	NALTypePrefix                 = 14
	NALTypeSubsetSPS              = 15
	NALTypeAuxSlice               = 19
	NALTypeSliceExt               = 20
	NALTypeSliceExtDepth          = 21
)

// NALUnit is a parsed NAL header plus its RBSP payload (emulation
// prevention bytes already removed).
type NALUnit struct {
	ForbiddenZeroBit bool
	RefIdc           uint8
	Type             uint8
	RBSP             []byte // RBSP following the 1-byte header.
	EBSPLen          int    // Length of the original EBSP (header+payload), for length-prefixed re-encoding.
}

// ParseNALHeader parses the 1-byte H.264 NAL header and reports the
// semantic constraints from spec.md section 4.4: forbidden_zero_bit must
// be 0; nal_ref_idc must be 0 for types 6/9/10/11/12 and non-zero for
// type 5.
func ParseNALHeader(b byte) (forbiddenZero bool, refIdc uint8, typ uint8, err error) {
	forbiddenZero = b&0x80 != 0
	refIdc = (b >> 5) & 0x3
	typ = b & 0x1f
	if forbiddenZero {
		return forbiddenZero, refIdc, typ, errors.New("avc: forbidden_zero_bit set")
	}
	switch typ {
	case NALTypeSEI, NALTypeAccessUnitDelimiter, NALTypeEndOfSequence, NALTypeEndOfStream, NALTypeFiller:
		if refIdc != 0 {
			return forbiddenZero, refIdc, typ, errors.Errorf("avc: nal_ref_idc must be 0 for type %d", typ)
		}
	case NALTypeIDR:
		if refIdc == 0 {
			return forbiddenZero, refIdc, typ, errors.New("avc: nal_ref_idc must be non-zero for IDR")
		}
	}
	return forbiddenZero, refIdc, typ, nil
}

// lengthPrefixed encodes one NAL unit as a 4-byte big-endian length prefix
// followed by its bytes (header included), the on-wire AU sample format
// per spec.md section 6.
func lengthPrefixed(nal []byte) []byte {
	out := make([]byte, 4+len(nal))
	binary.BigEndian.PutUint32(out, uint32(len(nal)))
	copy(out[4:], nal)
	return out
}

// splitNALs scans a length-prefixed AU buffer back into its constituent
// NAL units (header included), the inverse of lengthPrefixed repeated
// over an AU. It is used by tests to validate the length-prefix
// round-trip invariant (spec.md section 8, invariant 1).
func splitNALs(au []byte) ([][]byte, error) {
	var out [][]byte
	for len(au) > 0 {
		if len(au) < 4 {
			return nil, errors.New("avc: truncated length prefix")
		}
		n := binary.BigEndian.Uint32(au)
		au = au[4:]
		if uint64(len(au)) < uint64(n) {
			return nil, errors.New("avc: truncated NAL payload")
		}
		out = append(out, au[:n])
		au = au[n:]
	}
	return out, nil
}
