/*
NAME
  nal.go

DESCRIPTION
  nal.go provides the H.265/HEVC 2-byte NAL header, NAL type table, and
  IRAP/RASL/RADL classification (Rec. ITU-T H.265 section 7.4.2.2) used to
  detect sync samples and leading-picture disposability.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package hevc implements the H.265/HEVC importer: NAL parsing,
// parameter-set deduplication, access-unit assembly, picture-order-count
// reconstruction and hvcC construction.
package hevc

import "github.com/pkg/errors"

// NAL unit types, Table 7-1, Rec. ITU-T H.265.
const (
	NALTypeTrailN    = 0
	NALTypeTrailR    = 1
	NALTypeTSAN      = 2
	NALTypeTSAR      = 3
	NALTypeSTSAN     = 4
	NALTypeSTSAR     = 5
	NALTypeRADLN     = 6
	NALTypeRADLR     = 7
	NALTypeRASLN     = 8
	NALTypeRASLR     = 9
	NALTypeBLAWLP    = 16
	NALTypeBLAWRADL  = 17
	NALTypeBLANLP    = 18
	NALTypeIDRWRADL  = 19
	NALTypeIDRNLP    = 20
	NALTypeCRA       = 21
	NALTypeVPS       = 32
	NALTypeSPS       = 33
	NALTypePPS       = 34
	NALTypeAUD       = 35
	NALTypeEOS       = 36
	NALTypeEOB       = 37
	NALTypeFiller    = 38
	NALTypePrefixSEI = 39
	NALTypeSuffixSEI = 40
)

// NALUnit is a parsed NAL header plus its RBSP payload.
type NALUnit struct {
	Type      uint8
	LayerID   uint8
	TemporalID uint8 // TemporalId = temporal_id_plus1 - 1.
	RBSP      []byte
	EBSPLen   int
}

// ParseNALHeader parses the 2-byte HEVC NAL header.
func ParseNALHeader(b0, b1 byte) (typ, layerID, temporalID uint8, err error) {
	if b0&0x80 != 0 {
		return 0, 0, 0, errors.New("hevc: forbidden_zero_bit set")
	}
	typ = (b0 >> 1) & 0x3f
	layerID = ((b0 & 0x1) << 5) | (b1 >> 3)
	temporalIDPlus1 := b1 & 0x7
	if temporalIDPlus1 == 0 {
		return 0, 0, 0, errors.New("hevc: temporal_id_plus1 must be non-zero")
	}
	return typ, layerID, temporalIDPlus1 - 1, nil
}

// IsIRAP reports whether typ is an Intra Random Access Point picture
// (BLA, IDR or CRA), section 3.19.
func IsIRAP(typ uint8) bool { return typ >= 16 && typ <= 23 }

// IsIDR reports whether typ is an IDR picture.
func IsIDR(typ uint8) bool { return typ == NALTypeIDRWRADL || typ == NALTypeIDRNLP }

// IsBLA reports whether typ is a Broken Link Access picture.
func IsBLA(typ uint8) bool { return typ >= NALTypeBLAWLP && typ <= NALTypeBLANLP }

// IsRASL reports whether typ is a RASL (Random Access Skipped Leading)
// picture: undecodable if it follows a BLA or the first CRA/IDR of the
// stream (NoRaslOutputFlag).
func IsRASL(typ uint8) bool { return typ == NALTypeRASLN || typ == NALTypeRASLR }

// IsRADL reports whether typ is a RADL (Random Access Decodable Leading)
// picture.
func IsRADL(typ uint8) bool { return typ == NALTypeRADLN || typ == NALTypeRADLR }

// IsSlice reports whether typ identifies a VCL (coded-slice) NAL unit.
func IsSlice(typ uint8) bool { return typ <= 31 }

// IsSubLayerNonRef reports whether typ's trailing "_N" variant marks it as
// not used as a reference by other sub-layers (section 3.76).
func IsSubLayerNonRef(typ uint8) bool {
	switch typ {
	case NALTypeTrailN, NALTypeTSAN, NALTypeSTSAN, NALTypeRADLN, NALTypeRASLN:
		return true
	}
	return false
}
