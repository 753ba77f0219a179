/*
NAME
  slicehdr.go

DESCRIPTION
  slicehdr.go parses the subset of the H.264 slice_header() syntax (Rec.
  ITU-T H.264 section 7.3.3) needed to detect access-unit boundaries
  (section 7.4.1.2.4), reconstruct picture order count, and detect
  MMCO 5 (memory_management_control_operation equal to 5, which resets
  the picture order count per section 8.2.1).

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

// Slice types, Table 7-6. Values 5-9 are identical to 0-4 but signal that
// all slices of the picture share this type.
const (
	SliceTypeP  = 0
	SliceTypeB  = 1
	SliceTypeI  = 2
	SliceTypeSP = 3
	SliceTypeSI = 4
)

// SliceHeader holds the slice_header() fields needed for AU-boundary
// detection and picture-order-count reconstruction.
type SliceHeader struct {
	FirstMbInSlice uint64
	SliceType      uint64
	PPSID          int

	ColourPlaneID uint64

	FrameNum uint64

	FieldPicFlag    bool
	BottomFieldFlag bool

	IDRPicID uint64 // only valid when nal.Type == NALTypeIDR

	PicOrderCntLsb          uint64
	DeltaPicOrderCntBottom  int64
	DeltaPicOrderCnt        [2]int64

	RedundantPicCnt uint64

	DirectSpatialMvPredFlag bool

	// HasMMCO5 is true if dec_ref_pic_marking() signalled
	// memory_management_control_operation 5 for this slice.
	HasMMCO5 bool

	// NALRefIdc and NALType are copied from the owning NAL unit for
	// convenience in AU-boundary comparison.
	NALRefIdc uint8
	NALType   uint8
}

// sliceTypeBase normalizes slice types 5-9 down to 0-4.
func sliceTypeBase(t uint64) uint64 { return t % 5 }

// ParseSliceHeader parses the slice header fields of a coded-slice NAL
// (types 1, 5, 19). sps/pps must contain the active parameter sets
// referenced by the slice (looked up by the parsed pic_parameter_set_id
// and its sps_id).
func ParseSliceHeader(nal *NALUnit, spsByID map[int]*SPS, ppsByID map[int]*PPS) (*SliceHeader, error) {
	switch nal.Type {
	case NALTypeNonIDR, NALTypeIDR, NALTypeAuxSlice:
	default:
		return nil, errors.Errorf("avc: not a slice NAL (type %d)", nal.Type)
	}

	src := bytestream.New(bytes.NewReader(nal.RBSP), len(nal.RBSP)+8)
	br := bytestream.NewBitReader(src)

	var err error
	readBit := func() bool {
		if err != nil {
			return false
		}
		var v uint64
		v, err = br.Get(1)
		return v == 1
	}
	readBits := func(n int) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = br.Get(n)
		return v
	}
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

	h := &SliceHeader{NALRefIdc: nal.RefIdc, NALType: nal.Type}
	h.FirstMbInSlice = readUE()
	h.SliceType = readUE()
	h.PPSID = int(readUE())
	if err != nil {
		return nil, errors.Wrap(err, "avc: parsing slice header")
	}

	pps, ok := ppsByID[h.PPSID]
	if !ok {
		return nil, errors.Errorf("avc: slice references unknown pps %d", h.PPSID)
	}
	sps, ok := spsByID[pps.SPSID]
	if !ok {
		return nil, errors.Errorf("avc: pps %d references unknown sps %d", pps.ID, pps.SPSID)
	}

	if sps.SeparateColorPlaneFlag {
		h.ColourPlaneID = readBits(2)
	}
	h.FrameNum = readBits(int(sps.Log2MaxFrameNumMinus4 + 4))

	if !sps.FrameMbsOnlyFlag {
		h.FieldPicFlag = readBit()
		if h.FieldPicFlag {
			h.BottomFieldFlag = readBit()
		}
	}
	if nal.Type == NALTypeIDR {
		h.IDRPicID = readUE()
	}
	if sps.PicOrderCntType == 0 {
		h.PicOrderCntLsb = readBits(int(sps.Log2MaxPicOrderCntLsbMinus4 + 4))
		if pps.BottomFieldPicOrderInFramePresentFlag && !h.FieldPicFlag {
			h.DeltaPicOrderCntBottom = readSE()
		}
	} else if sps.PicOrderCntType == 1 && !sps.DeltaPicOrderAlwaysZeroFlag {
		h.DeltaPicOrderCnt[0] = readSE()
		if pps.BottomFieldPicOrderInFramePresentFlag && !h.FieldPicFlag {
			h.DeltaPicOrderCnt[1] = readSE()
		}
	}
	if pps.RedundantPicCntPresentFlag {
		h.RedundantPicCnt = readUE()
	}

	base := sliceTypeBase(h.SliceType)
	if base == SliceTypeB {
		h.DirectSpatialMvPredFlag = readBit()
	}

	numRefIdxL0 := pps.NumRefIdxL0DefaultActiveMinus1
	numRefIdxL1 := pps.NumRefIdxL1DefaultActiveMinus1
	if base == SliceTypeP || base == SliceTypeSP || base == SliceTypeB {
		if numRefIdxActiveOverrideFlag := readBit(); numRefIdxActiveOverrideFlag {
			numRefIdxL0 = readUE()
			if base == SliceTypeB {
				numRefIdxL1 = readUE()
			}
		}
	}

	if nal.Type == NALTypeSliceExt || nal.Type == NALTypeSliceExtDepth {
		// MVC/SVC extension ref_pic_list_mvc_modification() not
		// supported; only the base NAL types above reach here.
		return nil, errors.New("avc: slice extension NALs unsupported, patch welcome")
	}
	if base != SliceTypeI && base != SliceTypeSI {
		skipRefPicListModification(readBit, readUE)
	}
	if base == SliceTypeB {
		skipRefPicListModification(readBit, readUE) // ref_pic_list_modification_l1
	}

	if (pps.WeightedPredFlag && (base == SliceTypeP || base == SliceTypeSP)) ||
		(pps.WeightedBipredIdc == 1 && base == SliceTypeB) {
		skipPredWeightTable(sps, readBit, readUE, readSE, numRefIdxL0, numRefIdxL1, base)
	}

	if nal.RefIdc != 0 {
		h.HasMMCO5 = parseDecRefPicMarking(nal.Type == NALTypeIDR, readBit, readUE)
	}

	if err != nil {
		return nil, errors.Wrap(err, "avc: parsing slice header")
	}
	return h, nil
}

// skipRefPicListModification consumes ref_pic_list_modification() without
// retaining the reordering commands; only bit position matters here.
func skipRefPicListModification(readBit func() bool, readUE func() uint64) {
	if !readBit() { // ref_pic_list_modification_flag_l0/l1
		return
	}
	for {
		op := readUE()
		if op == 3 {
			return
		}
		readUE() // abs_diff_pic_num_minus1 or long_term_pic_num
	}
}

// skipPredWeightTable consumes pred_weight_table() without retaining the
// weights; only bit position matters here.
func skipPredWeightTable(sps *SPS, readBit func() bool, readUE func() uint64, readSE func() int64, numL0, numL1 uint64, base uint64) {
	readUE() // luma_log2_weight_denom
	chromaArrayType := sps.ChromaFormatIDC
	if sps.SeparateColorPlaneFlag {
		chromaArrayType = 0
	}
	if chromaArrayType != 0 {
		readUE() // chroma_log2_weight_denom
	}
	skipOneList := func(n uint64) {
		for i := uint64(0); i <= n; i++ {
			if readBit() { // luma_weight_l*_flag
				readSE()
				readSE()
			}
			if chromaArrayType != 0 {
				if readBit() { // chroma_weight_l*_flag
					for j := 0; j < 2; j++ {
						readSE()
						readSE()
					}
				}
			}
		}
	}
	skipOneList(numL0)
	if base == SliceTypeB {
		skipOneList(numL1)
	}
}

// parseDecRefPicMarking consumes dec_ref_pic_marking() and reports whether
// memory_management_control_operation 5 was signalled (section 8.2.1:
// resets frame_num and the picture order count).
func parseDecRefPicMarking(idr bool, readBit func() bool, readUE func() uint64) bool {
	if idr {
		readBit() // no_output_of_prior_pics_flag
		readBit() // long_term_reference_flag
		return false
	}
	if !readBit() { // adaptive_ref_pic_marking_mode_flag
		return false
	}
	mmco5 := false
	for {
		op := readUE()
		if op == 0 {
			return mmco5
		}
		switch op {
		case 1, 3:
			readUE()
			if op == 3 {
				readUE()
			}
		case 2:
			readUE()
		case 4:
			readUE()
		case 5:
			mmco5 = true
		case 6:
			readUE()
		}
	}
}
