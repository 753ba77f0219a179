/*
NAME
  av1c.go

DESCRIPTION
  av1c.go builds the AV1CodecConfigurationRecord ("av1C", AV1 Codec ISO
  Media File Format Binding section 2.3.3) and the sample-entry Summary
  from a parsed sequence header.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package av1

import (
	"bytes"

	"github.com/ausocean/av/sampleentry"
)

// buildAV1C encodes an AV1CodecConfigurationRecord. configOBUs holds the
// sequence header OBU bytes (and any preceding metadata OBUs needed to
// initialize a decoder), carried verbatim per the binding spec.
func buildAV1C(sh *SequenceHeader, configOBUs []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x80 | 1) // marker=1, version=1
	buf.WriteByte((sh.SeqProfile&0x7)<<5 | (sh.SeqLevelIdx0 & 0x1f))

	var b3 byte
	if sh.SeqTier0 != 0 {
		b3 |= 0x80
	}
	if sh.HighBitdepth {
		b3 |= 0x40
	}
	if sh.TwelveBit {
		b3 |= 0x20
	}
	if sh.Monochrome {
		b3 |= 0x10
	}
	if sh.ChromaSubsamplingX != 0 {
		b3 |= 0x08
	}
	if sh.ChromaSubsamplingY != 0 {
		b3 |= 0x04
	}
	b3 |= sh.ChromaSamplePosition & 0x3
	buf.WriteByte(b3)

	buf.WriteByte(0) // reserved(3)=0, initial_presentation_delay_present=0, reserved(4)=0
	buf.Write(configOBUs)
	return buf.Bytes()
}

// buildSummary constructs the Summary sample-entry description for the
// active sequence header, attaching the av1C record as the codec-specific
// data box.
func buildSummary(sh *SequenceHeader, av1c []byte) *sampleentry.Summary {
	return &sampleentry.Summary{
		Kind:           sampleentry.Video,
		SampleType:     "av01",
		Width:          sh.MaxFrameWidth,
		Height:         sh.MaxFrameHeight,
		ParNum:         1,
		ParDen:         1,
		SamplesInFrame: 1,
		CodecSpecific:  []sampleentry.CodecSpecificData{{Raw: av1c}},
	}
}
