/*
NAME
  sps.go

DESCRIPTION
  sps.go parses the H.265 VPS/SPS fields needed for hvcC construction and
  picture-order-count reconstruction (Rec. ITU-T H.265 sections 7.3.2.1
  and 7.3.2.2). Only single-sub-layer streams are supported; streams
  signalling temporal sub-layering in profile_tier_level are rejected as
  unsupported, since spec.md's corpus is single-layer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package hevc

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/expgolomb"
)

var errMultiLayerUnsupported = errors.New("hevc: multi-sublayer profile_tier_level unsupported, patch welcome")

// ProfileTierLevel holds the general profile/tier/level fields needed to
// construct hvcC's general_configuration record.
type ProfileTierLevel struct {
	GeneralProfileSpace      uint8
	GeneralTierFlag          bool
	GeneralProfileIdc        uint8
	GeneralProfileCompat     uint32
	GeneralConstraintIndicator uint64 // 48 bits.
	GeneralLevelIdc          uint8
}

// SPS holds the sequence parameter set fields this importer needs.
type SPS struct {
	VPSID                       int
	ID                          int
	MaxSubLayersMinus1          uint64
	TemporalIDNestingFlag       bool
	PTL                         ProfileTierLevel
	ChromaFormatIDC             uint64
	SeparateColourPlaneFlag     bool
	Width, Height               uint32
	BitDepthLumaMinus8          uint64
	BitDepthChromaMinus8        uint64
	Log2MaxPicOrderCntLsbMinus4 uint64
	MaxPicOrderCntLsb           uint64

	raw []byte
}

// ParseSPS parses a NAL unit's RBSP as a sequence parameter set.
func ParseSPS(nal *NALUnit) (*SPS, error) {
	if nal.Type != NALTypeSPS {
		return nil, errors.Errorf("hevc: not an SPS NAL (type %d)", nal.Type)
	}
	src := bytestream.New(bytes.NewReader(nal.RBSP), len(nal.RBSP)+8)
	br := bytestream.NewBitReader(src)

	s := &SPS{}
	var err error
	readBits := func(n int) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = br.Get(n)
		return v
	}
	readBit := func() bool { return readBits(1) == 1 }
	readUE := func() uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = expgolomb.ReadUE(br)
		return v
	}

	s.VPSID = int(readBits(4))
	s.MaxSubLayersMinus1 = readBits(3)
	s.TemporalIDNestingFlag = readBit()
	if err != nil {
		return nil, errors.Wrap(err, "hevc: parsing SPS")
	}
	if s.MaxSubLayersMinus1 > 0 {
		return nil, errMultiLayerUnsupported
	}

	s.PTL.GeneralProfileSpace = uint8(readBits(2))
	s.PTL.GeneralTierFlag = readBit()
	s.PTL.GeneralProfileIdc = uint8(readBits(5))
	s.PTL.GeneralProfileCompat = uint32(readBits(32))
	readBits(1) // general_progressive_source_flag
	readBits(1) // general_interlaced_source_flag
	readBits(1) // general_non_packed_constraint_flag
	readBits(1) // general_frame_only_constraint_flag
	hi := readBits(44)
	s.PTL.GeneralConstraintIndicator = hi
	s.PTL.GeneralLevelIdc = uint8(readBits(8))

	s.ID = int(readUE())
	s.ChromaFormatIDC = readUE()
	if s.ChromaFormatIDC == 3 {
		s.SeparateColourPlaneFlag = readBit()
	}
	s.Width = uint32(readUE())
	s.Height = uint32(readUE())
	if readBit() { // conformance_window_flag
		left := readUE()
		right := readUE()
		top := readUE()
		bottom := readUE()
		subWidthC, subHeightC := chromaSubsampling(s.ChromaFormatIDC)
		s.Width -= uint32((left + right) * subWidthC)
		s.Height -= uint32((top + bottom) * subHeightC)
	}
	s.BitDepthLumaMinus8 = readUE()
	s.BitDepthChromaMinus8 = readUE()
	s.Log2MaxPicOrderCntLsbMinus4 = readUE()
	s.MaxPicOrderCntLsb = 1 << (s.Log2MaxPicOrderCntLsbMinus4 + 4)

	if err != nil {
		return nil, errors.Wrap(err, "hevc: parsing SPS")
	}
	return s, nil
}

func chromaSubsampling(idc uint64) (x, y uint64) {
	switch idc {
	case 1:
		return 2, 2
	case 2:
		return 2, 1
	default:
		return 1, 1
	}
}

func (s *SPS) setRaw(ebsp []byte) { s.raw = append([]byte(nil), ebsp...) }
func (s *SPS) Raw() []byte        { return s.raw }
