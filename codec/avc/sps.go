/*
NAME
  sps.go

DESCRIPTION
  sps.go parses the H.264 sequence parameter set fields needed for
  decoder-configuration-record construction, access-unit delimiting and
  picture-order-count reconstruction (Rec. ITU-T H.264 section 7.3.2.1.1).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package avc

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/expgolomb"
)

// SPS holds the sequence parameter set fields this importer needs. Field
// comments are excerpts from section 7.4.2.1 of Rec. ITU-T H.264.
type SPS struct {
	Profile     uint8
	Constraint0 bool
	Constraint1 bool
	Constraint2 bool
	Constraint3 bool
	Constraint4 bool
	Constraint5 bool
	LevelIDC    uint8

	ID int

	ChromaFormatIDC        uint64
	SeparateColorPlaneFlag bool
	BitDepthLumaMinus8     uint64
	BitDepthChromaMinus8   uint64

	Log2MaxFrameNumMinus4 uint64
	MaxFrameNum           uint64 // 1 << (Log2MaxFrameNumMinus4+4)

	PicOrderCntType             uint64
	Log2MaxPicOrderCntLsbMinus4 uint64
	MaxPicOrderCntLsb           uint64 // 1 << (Log2MaxPicOrderCntLsbMinus4+4)

	DeltaPicOrderAlwaysZeroFlag    bool
	OffsetForNonRefPic             int64
	OffsetForTopToBottomField      int64
	NumRefFramesInPicOrderCntCycle uint64
	OffsetForRefFrame              []int64
	ExpectedDeltaPerPicOrderCntCycle int64

	MaxNumRefFrames               uint64
	GapsInFrameNumValueAllowed    bool
	PicWidthInMbsMinus1           uint64
	PicHeightInMapUnitsMinus1     uint64
	FrameMbsOnlyFlag              bool
	MbAdaptiveFrameFieldFlag      bool
	Direct8x8InferenceFlag        bool

	FrameCroppingFlag    bool
	CropLeft, CropRight  uint64
	CropTop, CropBottom  uint64

	// VUIHRDPresent is true if either nal_hrd_parameters_present_flag or
	// vcl_hrd_parameters_present_flag is set; filler NAL units are only
	// tolerated when this is false (spec.md section 4.4).
	VUIHRDPresent bool

	// AspectRatioWidth/Height hold the SAR from VUI's aspect_ratio_info,
	// 0 if not present (square-pixel assumed by the caller in that case).
	AspectRatioWidth, AspectRatioHeight uint64

	ColourPrimaries         uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	VideoFullRangeFlag      bool

	// Width/Height are the cropped dimensions in luma samples.
	Width, Height uint32

	// raw is the original EBSP (including the 1-byte NAL header) as
	// received, used for byte-identity comparison and DCR storage.
	raw []byte
}

// ParseSPS parses a NAL unit's RBSP as a sequence parameter set.
func ParseSPS(nal *NALUnit) (*SPS, error) {
	if nal.Type != NALTypeSPS {
		return nil, errors.Errorf("avc: not an SPS NAL (type %d)", nal.Type)
	}
	src := bytestream.New(bytes.NewReader(nal.RBSP), len(nal.RBSP)+8)
	br := bytestream.NewBitReader(src)

	s := &SPS{}
	var err error
	readU8 := func(n int) uint8 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = br.Get(n)
		return uint8(v)
	}
	readBit := func() bool { return readU8(1) == 1 }
	readUE := func() uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = expgolomb.ReadUE(br)
		return v
	}
	readSE := func() int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = expgolomb.ReadSE(br)
		return v
	}

	s.Profile = readU8(8)
	s.Constraint0 = readBit()
	s.Constraint1 = readBit()
	s.Constraint2 = readBit()
	s.Constraint3 = readBit()
	s.Constraint4 = readBit()
	s.Constraint5 = readBit()
	_ = readU8(2) // reserved_zero_2bits
	s.LevelIDC = readU8(8)
	s.ID = int(readUE())

	s.ChromaFormatIDC = 1
	switch s.Profile {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		s.ChromaFormatIDC = readUE()
		if s.ChromaFormatIDC == 3 {
			s.SeparateColorPlaneFlag = readBit()
		}
		s.BitDepthLumaMinus8 = readUE()
		s.BitDepthChromaMinus8 = readUE()
		_ = readBit() // qpprime_y_zero_transform_bypass_flag
		if seqScalingMatrixPresent := readBit(); seqScalingMatrixPresent {
			n := 8
			if s.ChromaFormatIDC == 3 {
				n = 12
			}
			for i := 0; i < n && err == nil; i++ {
				if readBit() { // seq_scaling_list_present_flag[i]
					size := 16
					if i >= 6 {
						size = 64
					}
					skipScalingList(br, size, readSE)
				}
			}
		}
	}

	s.Log2MaxFrameNumMinus4 = readUE()
	s.MaxFrameNum = 1 << (s.Log2MaxFrameNumMinus4 + 4)
	s.PicOrderCntType = readUE()
	switch s.PicOrderCntType {
	case 0:
		s.Log2MaxPicOrderCntLsbMinus4 = readUE()
		s.MaxPicOrderCntLsb = 1 << (s.Log2MaxPicOrderCntLsbMinus4 + 4)
	case 1:
		s.DeltaPicOrderAlwaysZeroFlag = readBit()
		s.OffsetForNonRefPic = readSE()
		s.OffsetForTopToBottomField = readSE()
		s.NumRefFramesInPicOrderCntCycle = readUE()
		s.OffsetForRefFrame = make([]int64, s.NumRefFramesInPicOrderCntCycle)
		var sum int64
		for i := range s.OffsetForRefFrame {
			s.OffsetForRefFrame[i] = readSE()
			sum += s.OffsetForRefFrame[i]
		}
		s.ExpectedDeltaPerPicOrderCntCycle = sum
	}
	s.MaxNumRefFrames = readUE()
	s.GapsInFrameNumValueAllowed = readBit()
	s.PicWidthInMbsMinus1 = readUE()
	s.PicHeightInMapUnitsMinus1 = readUE()
	s.FrameMbsOnlyFlag = readBit()
	if !s.FrameMbsOnlyFlag {
		s.MbAdaptiveFrameFieldFlag = readBit()
	}
	s.Direct8x8InferenceFlag = readBit()
	s.FrameCroppingFlag = readBit()
	if s.FrameCroppingFlag {
		s.CropLeft = readUE()
		s.CropRight = readUE()
		s.CropTop = readUE()
		s.CropBottom = readUE()
	}

	frameMbsOnlyMul := uint64(2)
	if s.FrameMbsOnlyFlag {
		frameMbsOnlyMul = 1
	}
	width := (s.PicWidthInMbsMinus1 + 1) * 16
	height := frameMbsOnlyMul * (s.PicHeightInMapUnitsMinus1 + 1) * 16
	if !s.FrameMbsOnlyFlag {
		height = (s.PicHeightInMapUnitsMinus1 + 1) * 16 * 2
	}

	cropUnitX, cropUnitY := chromaCropUnits(s.ChromaFormatIDC, s.SeparateColorPlaneFlag, frameMbsOnlyMul)
	if s.FrameCroppingFlag {
		width -= (s.CropLeft + s.CropRight) * cropUnitX
		height -= (s.CropTop + s.CropBottom) * cropUnitY
	}
	s.Width = uint32(width)
	s.Height = uint32(height)

	readBits := func(n int) uint64 {
		v, e := br.Get(n)
		if e != nil && err == nil {
			err = e
		}
		return v
	}
	if vuiPresent := readBit(); vuiPresent {
		parseVUI(s, readBit, readUE, readBits)
	}

	if err != nil {
		return nil, errors.Wrap(err, "avc: parsing SPS")
	}
	raw := make([]byte, nal.EBSPLen)
	// Caller (scanner) retains the original EBSP separately; ParseSPS is
	// also invoked with only the RBSP available via NALUnit, so the raw
	// EBSP must be attached by the caller after parsing. See setRaw.
	_ = raw
	return s, nil
}

// setRaw attaches the original EBSP bytes (used for byte-identity
// comparison in the parameter-set registry) to a parsed SPS.
func (s *SPS) setRaw(ebsp []byte) { s.raw = append([]byte(nil), ebsp...) }

// Raw returns the original EBSP bytes (NAL header included).
func (s *SPS) Raw() []byte { return s.raw }

// chromaCropUnits returns CropUnitX/CropUnitY per Table 7-1's note on
// frame cropping, for converting crop offsets (in chroma-sample units for
// chroma_format_idc 1-3, luma units for 0) to luma samples.
func chromaCropUnits(chromaFormatIDC uint64, separate bool, frameMbsOnlyMul uint64) (x, y uint64) {
	subWidthC, subHeightC := uint64(1), uint64(1)
	if !separate {
		switch chromaFormatIDC {
		case 1:
			subWidthC, subHeightC = 2, 2
		case 2:
			subWidthC, subHeightC = 2, 1
		}
	}
	cropUnitX := subWidthC
	cropUnitY := subHeightC * frameMbsOnlyMul
	if chromaFormatIDC == 0 || separate {
		cropUnitX = 1
		cropUnitY = frameMbsOnlyMul
	}
	return cropUnitX, cropUnitY
}

// skipScalingList consumes a scaling_list() syntax structure (section
// 7.3.2.1.1.1) without retaining the resulting list; only the bit
// position is significant to later fields.
func skipScalingList(br *bytestream.BitReader, size int, readSE func() int64) {
	lastScale, nextScale := int64(8), int64(8)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			deltaScale := readSE()
			nextScale = (lastScale + deltaScale + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
}
