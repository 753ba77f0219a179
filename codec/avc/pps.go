/*
NAME
  pps.go

DESCRIPTION
  pps.go parses the H.264 picture parameter set fields needed for slice-
  header parsing and decoder-configuration-record construction (Rec.
  ITU-T H.264 section 7.3.2.2).

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

// errFMOUnsupported is returned when a PPS declares more than one slice
// group (Flexible Macroblock Ordering). FMO streams are rare in practice
// and spec.md's test corpus doesn't exercise them.
var errFMOUnsupported = errors.New("avc: FMO (num_slice_groups_minus1>0) unsupported, patch welcome")

// PPS holds the picture parameter set fields this importer needs.
type PPS struct {
	ID    int
	SPSID int

	EntropyCodingMode                     bool
	BottomFieldPicOrderInFramePresentFlag bool

	NumSliceGroupsMinus1 uint64

	NumRefIdxL0DefaultActiveMinus1 uint64
	NumRefIdxL1DefaultActiveMinus1 uint64

	WeightedPredFlag   bool
	WeightedBipredIdc  uint8

	PicInitQpMinus26    int64
	PicInitQsMinus26    int64
	ChromaQpIndexOffset int64

	DeblockingFilterControlPresentFlag bool
	ConstrainedIntraPredFlag           bool
	RedundantPicCntPresentFlag         bool

	// Transform8x8ModeFlag and second chroma QP offset are only present
	// in the extended pic_parameter_set_rbsp() form; ChromaArrayType
	// needs SPS, so this is resolved by the caller (slicehdr.go).

	raw []byte
}

// ParsePPS parses a NAL unit's RBSP as a picture parameter set.
func ParsePPS(nal *NALUnit) (*PPS, error) {
	if nal.Type != NALTypePPS {
		return nil, errors.Errorf("avc: not a PPS NAL (type %d)", nal.Type)
	}
	src := bytestream.New(bytes.NewReader(nal.RBSP), len(nal.RBSP)+8)
	br := bytestream.NewBitReader(src)

	p := &PPS{}
	var err error
	readBit := func() bool {
		if err != nil {
			return false
		}
		var v uint64
		v, err = br.Get(1)
		return v == 1
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

	p.ID = int(readUE())
	p.SPSID = int(readUE())
	p.EntropyCodingMode = readBit()
	p.BottomFieldPicOrderInFramePresentFlag = readBit()
	p.NumSliceGroupsMinus1 = readUE()
	if err != nil {
		return nil, errors.Wrap(err, "avc: parsing PPS")
	}
	if p.NumSliceGroupsMinus1 > 0 {
		return nil, errFMOUnsupported
	}

	p.NumRefIdxL0DefaultActiveMinus1 = readUE()
	p.NumRefIdxL1DefaultActiveMinus1 = readUE()
	p.WeightedPredFlag = readBit()
	p.WeightedBipredIdc = uint8(func() uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = br.Get(2)
		return v
	}())
	p.PicInitQpMinus26 = readSE()
	p.PicInitQsMinus26 = readSE()
	p.ChromaQpIndexOffset = readSE()
	p.DeblockingFilterControlPresentFlag = readBit()
	p.ConstrainedIntraPredFlag = readBit()
	p.RedundantPicCntPresentFlag = readBit()

	if err != nil {
		return nil, errors.Wrap(err, "avc: parsing PPS")
	}
	return p, nil
}

func (p *PPS) setRaw(ebsp []byte) { p.raw = append([]byte(nil), ebsp...) }
func (p *PPS) Raw() []byte        { return p.raw }
