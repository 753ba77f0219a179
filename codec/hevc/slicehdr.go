/*
NAME
  slicehdr.go

DESCRIPTION
  slicehdr.go parses the slice_segment_header() prefix (Rec. ITU-T H.265
  section 7.3.6.1) needed to detect access-unit boundaries and
  reconstruct picture order count: first_slice_segment_in_pic_flag,
  pps id, and (for non-IDR pictures) pic_order_cnt_lsb.

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

// SliceSegmentHeader holds the fields needed for AU-boundary detection and
// POC reconstruction.
type SliceSegmentHeader struct {
	FirstSliceSegmentInPicFlag bool
	NoOutputOfPriorPicsFlag    bool
	PPSID                      int
	PicOrderCntLsb             uint64

	NALType uint8
}

// ParseSliceSegmentHeader parses the leading fields of a VCL NAL's slice
// segment header.
func ParseSliceSegmentHeader(nal *NALUnit, spsByID map[int]*SPS, ppsByID map[int]*PPS) (*SliceSegmentHeader, error) {
	if !IsSlice(nal.Type) {
		return nil, errors.Errorf("hevc: not a slice NAL (type %d)", nal.Type)
	}
	src := bytestream.New(bytes.NewReader(nal.RBSP), len(nal.RBSP)+8)
	br := bytestream.NewBitReader(src)

	h := &SliceSegmentHeader{NALType: nal.Type}
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

	h.FirstSliceSegmentInPicFlag = readBit()
	if IsIRAP(nal.Type) {
		h.NoOutputOfPriorPicsFlag = readBit()
	}
	h.PPSID = int(readUE(br, &err))
	if err != nil {
		return nil, errors.Wrap(err, "hevc: parsing slice segment header")
	}

	pps, ok := ppsByID[h.PPSID]
	if !ok {
		return nil, errors.Errorf("hevc: slice references unknown pps %d", h.PPSID)
	}
	sps, ok := spsByID[pps.SPSID]
	if !ok {
		return nil, errors.Errorf("hevc: pps %d references unknown sps %d", pps.ID, pps.SPSID)
	}

	if !h.FirstSliceSegmentInPicFlag {
		return h, nil
	}
	if !pps.DependentSliceSegmentsEnabledFlag {
		// slice_segment_address absent when first_slice_segment_in_pic_flag
		// is set; nothing further needed for POC here.
	}
	for i := uint64(0); i < pps.NumExtraSliceHeaderBits; i++ {
		readBit()
	}
	// slice_type ue(v); consumed but not retained (not needed beyond AU
	// delimiting, which FirstSliceSegmentInPicFlag already covers).
	_ = readUE(br, &err)
	if pps.OutputFlagPresentFlag {
		readBit()
	}
	if sps.SeparateColourPlaneFlag {
		readBits(2)
	}
	if !IsIDR(nal.Type) {
		h.PicOrderCntLsb = readBitsN(br, int(sps.Log2MaxPicOrderCntLsbMinus4+4), &err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "hevc: parsing slice segment header")
	}
	return h, nil
}

func readUE(br *bytestream.BitReader, errp *error) uint64 {
	if *errp != nil {
		return 0
	}
	v, err := expgolomb.ReadUE(br)
	if err != nil {
		*errp = err
	}
	return v
}

func readBitsN(br *bytestream.BitReader, n int, errp *error) uint64 {
	if *errp != nil {
		return 0
	}
	v, err := br.Get(n)
	if err != nil {
		*errp = err
	}
	return v
}
