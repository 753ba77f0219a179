/*
NAME
  dcr.go

DESCRIPTION
  dcr.go builds the HEVCDecoderConfigurationRecord (ISO/IEC 14496-15
  section 8.3.3.1.2, "hvcC") and the sample-entry Summary from a stream's
  active VPS/SPS/PPS set.

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
	"encoding/binary"

	"github.com/ausocean/av/codec/paramset"
	"github.com/ausocean/av/sampleentry"
)

// writeNALArray writes one hvcC NAL-unit array (section 8.3.3.1.2): a single
// array_completeness/NAL_unit_type entry followed by its length-prefixed
// units.
func writeNALArray(buf *bytes.Buffer, nalType uint8, entries []*paramset.Entry) {
	buf.WriteByte(0x80 | (nalType & 0x3f)) // array_completeness=1, reserved=0
	var cnt [2]byte
	binary.BigEndian.PutUint16(cnt[:], uint16(len(entries)))
	buf.Write(cnt[:])
	for _, e := range entries {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(e.Bytes)))
		buf.Write(l[:])
		buf.Write(e.Bytes)
	}
}

// buildHVCC encodes an HEVCDecoderConfigurationRecord from the currently
// used VPS/SPS/PPS entries, using a 4-byte NAL length size (the only size
// this importer's AU encoding produces).
func buildHVCC(ptl ProfileTierLevel, minSpatialSegmentationIdc uint16, vps, sps, pps *paramset.Set) []byte {
	var buf bytes.Buffer
	buf.WriteByte(1) // configurationVersion
	buf.WriteByte((ptl.GeneralProfileSpace << 6) | boolBit(ptl.GeneralTierFlag, 5) | (ptl.GeneralProfileIdc & 0x1f))
	var compat [4]byte
	binary.BigEndian.PutUint32(compat[:], ptl.GeneralProfileCompat)
	buf.Write(compat[:])
	var constraint [6]byte
	ci := ptl.GeneralConstraintIndicator << 4 // 44 bits left-aligned into 48.
	for i := 5; i >= 0; i-- {
		constraint[i] = byte(ci)
		ci >>= 8
	}
	buf.Write(constraint[:])
	buf.WriteByte(ptl.GeneralLevelIdc)
	var mss [2]byte
	binary.BigEndian.PutUint16(mss[:], 0xf000|minSpatialSegmentationIdc)
	buf.Write(mss[:])
	buf.WriteByte(0xfc)       // reserved(6) + parallelismType(2)=0 (unknown)
	buf.WriteByte(0xfc)       // reserved(6) + chromaFormat(2), filled in by the caller from the SPS
	buf.WriteByte(0xf8)       // reserved(5) + bitDepthLumaMinus8(3)
	buf.WriteByte(0xf8)       // reserved(5) + bitDepthChromaMinus8(3)
	buf.WriteByte(0)          // avgFrameRate hi
	buf.WriteByte(0)          // avgFrameRate lo
	buf.WriteByte(0x0f | 3<<2 | 0<<6) // constantFrameRate(2)=0, numTemporalLayers(3)=1, temporalIdNested(1)=1, lengthSizeMinusOne(2)=3

	buf.WriteByte(3) // numOfArrays: VPS, SPS, PPS
	writeNALArray(&buf, NALTypeVPS, vps.Ordered())
	writeNALArray(&buf, NALTypeSPS, sps.Ordered())
	writeNALArray(&buf, NALTypePPS, pps.Ordered())

	return buf.Bytes()
}

func boolBit(b bool, shift uint) byte {
	if b {
		return 1 << shift
	}
	return 0
}

// buildSummary constructs the Summary sample-entry description for the
// active SPS, attaching the hvcC record as the codec-specific data box.
func buildSummary(activeSPS *SPS, hvcc []byte) *sampleentry.Summary {
	return &sampleentry.Summary{
		Kind:           sampleentry.Video,
		SampleType:     "hev1",
		Width:          activeSPS.Width,
		Height:         activeSPS.Height,
		ParNum:         1,
		ParDen:         1,
		SamplesInFrame: 1,
		CodecSpecific:  []sampleentry.CodecSpecificData{{Raw: hvcc}},
	}
}
