/*
NAME
  eac3.go

DESCRIPTION
  eac3.go implements the Enhanced AC-3 (E-AC-3) elementary-stream
  importer: ETSI TS 102 366 Annex E sync-frame header parsing, where
  frame size is carried directly in the header rather than looked up
  from a fixed table.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package eac3 implements the Enhanced AC-3 elementary-stream importer.
package eac3

import (
	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/codec/framing"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func init() {
	imp.Register(imp.Entry{
		Name:       "eac3",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

var sampleRates = [3]uint32{48000, 44100, 32000}
var halfSampleRates = [3]uint32{24000, 22050, 16000}
var blocksPerNumblkscod = [4]int{1, 2, 3, 6}
var acmodChannels = [8]uint8{2, 1, 2, 3, 3, 4, 4, 5}

// Importer implements importer.Importer for the E-AC-3 elementary
// stream format.
type Importer struct {
	framing.Base
	src    *bytestream.ByteStream
	logger imp.Logger
}

func (im *Importer) Name() string { return "eac3" }

// Probe scans consecutive E-AC-3 sync frames. Dependent substreams
// (strmtyp 1/2) are imported as ordinary frames: spec.md's framing
// model doesn't track substream association, matching an elementary,
// single-program stream.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	var freq uint32
	var channels uint8
	var samples uint32
	framesSeen := 0

	for {
		if im.src.IsEnd(6) {
			break
		}
		sync, ok := im.src.GetBE16()
		if !ok || sync != 0x0b77 {
			if framesSeen == 0 {
				return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: syncword not found"))
			}
			break
		}
		b2, ok := im.src.GetByte()
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: truncated header"))
		}
		b3, ok := im.src.GetByte()
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: truncated header"))
		}
		// b2: strmtyp(2) substreamid(3) frmsiz_hi(3); b3: frmsiz_lo(8).
		frmsiz := (uint16(b2&0x7) << 8) | uint16(b3)
		frameBytes := (int(frmsiz) + 1) * 2

		b4, ok := im.src.GetByte()
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: truncated header"))
		}
		fscod := (b4 >> 6) & 0x3
		var rate uint32
		var blocks int
		if fscod == 0x3 {
			fscod2 := (b4 >> 4) & 0x3
			if int(fscod2) >= len(halfSampleRates) {
				return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: reserved fscod2"))
			}
			rate = halfSampleRates[fscod2]
			blocks = 6
		} else {
			numblkscod := (b4 >> 4) & 0x3
			rate = sampleRates[fscod]
			blocks = blocksPerNumblkscod[numblkscod]
		}
		acmod := (b4 >> 1) & 0x7
		lfeon := b4 & 0x1

		if frameBytes < 5 {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: frame too small"))
		}
		rest, ok := im.src.GetBytes(frameBytes - 5)
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: truncated frame"))
		}
		frame := make([]byte, 0, frameBytes)
		frame = append(frame, 0x0b, 0x77, b2, b3, b4)
		frame = append(frame, rest...)

		if framesSeen == 0 {
			freq = rate
			channels = acmodChannels[acmod]
			if lfeon != 0 {
				channels++
			}
			samples = uint32(blocks * 256)
		}
		im.Frames = append(im.Frames, framing.Frame{Data: frame, SamplesInFrame: samples, Sync: true, PreRoll: 1})
		framesSeen++
	}
	if framesSeen == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("eac3: no frames found"))
	}

	im.Summary = &sampleentry.Summary{
		Kind:           sampleentry.Audio,
		SampleType:     "ec-3",
		Channels:       channels,
		Frequency:      freq,
		SampleSize:     16,
		Timescale:      freq,
		SamplesInFrame: samples,
	}
	return im.Summary.Clone(), nil
}
