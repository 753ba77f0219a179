/*
NAME
  framing.go

DESCRIPTION
  framing.go provides the common skeleton shared by every frame-at-a-time
  audio importer (spec.md section 4.6): each frame is its own access
  unit, sync samples are constant-size frames (or explicitly flagged
  ones), and timestamps advance by a fixed number of samples per frame.
  Concrete codec packages (adts, mp3, amr, ac3, eac3, als, dts) populate
  Base.Frames during Probe and embed Base for the remaining
  importer.Importer methods.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package framing provides the shared frame-at-a-time importer skeleton
// used by every framing-based audio codec package.
package framing

import (
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

// Frame is one decoded frame: its raw bytes (header included), the
// number of audio samples it represents, whether it is a sync sample,
// and the decoder pre-roll distance required before it, per spec.md
// section 4.6 (1 for MDCT codecs, more for MP3's bit-reservoir
// dependency chain).
type Frame struct {
	Data           []byte
	SamplesInFrame uint32
	Sync           bool
	PreRoll        uint32
}

// Base implements the access-unit delivery, duplication and cleanup
// portion of importer.Importer common to every framing codec; Probe and
// Name remain the concrete codec's responsibility.
type Base struct {
	Frames  []Frame
	idx     int
	cts     int64
	Summary *sampleentry.Summary
}

// TrackCount implements importer.Importer; every framing codec describes
// a single audio track.
func (b *Base) TrackCount() uint32 { return 1 }

// DuplicateSummary implements importer.Importer.
func (b *Base) DuplicateSummary(track uint32) *sampleentry.Summary {
	return b.Summary.Clone()
}

// GetAccessUnit implements importer.Importer: one frame per sample, DTS
// and CTS both advancing by the frame's sample count (framing codecs
// never reorder).
func (b *Base) GetAccessUnit(track uint32) (*imp.Sample, imp.Status, error) {
	if b.idx >= len(b.Frames) {
		return nil, imp.StatusEOF, nil
	}
	f := b.Frames[b.idx]
	b.idx++

	s := &imp.Sample{
		Data:        f.Data,
		DTS:         b.cts,
		CTS:         b.cts,
		Independent: true,
		PreRoll:     imp.PreRoll{Distance: f.PreRoll},
	}
	if f.Sync {
		s.RAFlags |= imp.RASync
	}
	b.cts += int64(f.SamplesInFrame)
	return s, imp.StatusOK, nil
}

// GetLastDelta implements importer.Importer, returning the final frame's
// sample count.
func (b *Base) GetLastDelta(track uint32) (uint32, error) {
	if len(b.Frames) == 0 {
		return 0, nil
	}
	return b.Frames[len(b.Frames)-1].SamplesInFrame, nil
}

// Cleanup implements importer.Importer; framing importers hold no
// external resources.
func (b *Base) Cleanup() error { return nil }
