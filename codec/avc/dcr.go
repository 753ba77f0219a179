/*
NAME
  dcr.go

DESCRIPTION
  dcr.go builds the AVCDecoderConfigurationRecord (ISO/IEC 14496-15
  section 5.2.4.1, "avcC") and the sample-entry Summary from a stream's
  active SPS/PPS set.

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
	"encoding/binary"

	"github.com/ausocean/av/codec/paramset"
	"github.com/ausocean/av/sampleentry"
)

// buildAVCC encodes an AVCDecoderConfigurationRecord from the currently
// used SPS and PPS entries of sps/pps. lengthSizeMinusOne is 3 (4-byte
// lengths), the only size this importer's AU encoding produces.
func buildAVCC(profile, compat, level uint8, sps, pps *paramset.Set) []byte {
	var buf bytes.Buffer
	buf.WriteByte(1) // configurationVersion
	buf.WriteByte(profile)
	buf.WriteByte(compat)
	buf.WriteByte(level)
	buf.WriteByte(0xfc | 3) // reserved (6 bits) + lengthSizeMinusOne (2 bits) = 3

	spsEntries := sps.Ordered()
	buf.WriteByte(0xe0 | byte(len(spsEntries)&0x1f))
	for _, e := range spsEntries {
		writeU16(&buf, len(e.Bytes))
		buf.Write(e.Bytes)
	}

	ppsEntries := pps.Ordered()
	buf.WriteByte(byte(len(ppsEntries)))
	for _, e := range ppsEntries {
		writeU16(&buf, len(e.Bytes))
		buf.Write(e.Bytes)
	}

	return buf.Bytes()
}

func writeU16(buf *bytes.Buffer, n int) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(n))
	buf.Write(b[:])
}

// buildSummary constructs the Summary sample-entry description for the
// active SPS, attaching the avcC record as the codec-specific data box.
func buildSummary(activeSPS *SPS, avcc []byte) *sampleentry.Summary {
	parNum, parDen := uint32(1), uint32(1)
	if activeSPS.AspectRatioWidth != 0 {
		parNum, parDen = uint32(activeSPS.AspectRatioWidth), uint32(activeSPS.AspectRatioHeight)
	}
	return &sampleentry.Summary{
		Kind:       sampleentry.Video,
		SampleType: "avc1",
		Width:      activeSPS.Width,
		Height:     activeSPS.Height,
		ParNum:     parNum,
		ParDen:     parDen,
		Color: sampleentry.ColorInfo{
			Primaries:        activeSPS.ColourPrimaries,
			TransferCharacts: activeSPS.TransferCharacteristics,
			MatrixCoeffs:     activeSPS.MatrixCoefficients,
			FullRange:        activeSPS.VideoFullRangeFlag,
		},
		SamplesInFrame: 1,
		CodecSpecific:  []sampleentry.CodecSpecificData{{Raw: avcc}},
	}
}
