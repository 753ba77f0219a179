/*
NAME
  summary.go

DESCRIPTION
  summary.go defines the codec-independent sample-entry description handed
  back by an importer's probe and replaced on a CHANGE transition.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sampleentry defines the Summary type describing a codec's sample
// entry, handed to callers by an importer and embedded in an ISO BMFF
// sample description by the (out of scope) muxer half of the system.
package sampleentry

// Kind distinguishes audio from video summaries.
type Kind uint8

const (
	Video Kind = iota
	Audio
)

// ColorInfo carries the video colour description fields (primaries,
// transfer characteristics, matrix coefficients and full-range flag) that
// HEVC/AV1 sample entries may carry.
type ColorInfo struct {
	Primaries        uint8
	TransferCharacts uint8
	MatrixCoeffs     uint8
	FullRange        bool
}

// CodecSpecificData is one decoder-configuration blob attached to a
// Summary (e.g. an avcC/hvcC/av1C record, structured, or an opaque byte
// blob for framed codecs that do not need one).
type CodecSpecificData struct {
	// Structured holds the decoded record (e.g. *avc.DecoderConfigurationRecord)
	// when the codec produces one; nil for codecs described by fixed header
	// fields alone.
	Structured interface{}

	// Raw holds the as-serialized bytes of the record, when applicable.
	Raw []byte
}

// Summary is a codec description (sample entry) sufficient for embedding
// in an ISO BMFF sample description.
type Summary struct {
	Kind       Kind
	SampleType string // FourCC, e.g. "avc1", "hev1", "mp4a", "av01".

	// Video fields.
	Width, Height   uint32
	ParNum, ParDen  uint32 // Pixel aspect ratio, 1:1 if unset.
	Color           ColorInfo

	// Audio fields.
	Channels   uint8
	Frequency  uint32
	SampleSize uint8 // Bits per sample, conventionally 16 for compressed audio.

	Timescale      uint32
	SamplesInFrame uint32 // Number of samples (audio) or 1 (video) represented by one AU.

	MaxAULength uint32

	CodecSpecific []CodecSpecificData
}

// Clone performs a deep copy of the Summary suitable for handing out to a
// caller via an importer's duplicate-summary entry point: the caller may
// retain and must not mutate the original.
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	c := *s
	c.CodecSpecific = make([]CodecSpecificData, len(s.CodecSpecific))
	for i, cs := range s.CodecSpecific {
		raw := make([]byte, len(cs.Raw))
		copy(raw, cs.Raw)
		c.CodecSpecific[i] = CodecSpecificData{Structured: cs.Structured, Raw: raw}
	}
	return &c
}
