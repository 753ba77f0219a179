/*
NAME
  ac3.go

DESCRIPTION
  ac3.go implements the AC-3 (Dolby Digital) elementary-stream importer:
  sync-frame header parsing (ATSC A/52) and frame-size table lookup.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ac3 implements the AC-3 elementary-stream importer.
package ac3

import (
	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/codec/framing"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func init() {
	imp.Register(imp.Entry{
		Name:       "ac3",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

const samplesPerFrame = 1536

var sampleRates = [3]uint32{48000, 44100, 32000}

// frameSizeWords48/44/32[frmsizecod>>1] is the 16-bit word count of a sync
// frame at each of the three base sample rates, per ATSC A/52 Table
// 5.18; bit 0 of frmsizecod selects the +1-word variant at 44100 Hz.
var frameSizeWords48 = [19]int{64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 448, 512, 640, 768, 896, 1024, 1152, 1280}
var frameSizeWords44 = [19]int{69, 87, 104, 121, 139, 174, 208, 243, 278, 348, 417, 487, 557, 696, 835, 975, 1114, 1253, 1393}
var frameSizeWords32 = [19]int{96, 120, 144, 168, 192, 240, 288, 336, 384, 480, 576, 672, 768, 960, 1152, 1344, 1536, 1728, 1920}

var acmodChannels = [8]uint8{2, 1, 2, 3, 3, 4, 4, 5}

// Importer implements importer.Importer for the AC-3 elementary-stream
// format.
type Importer struct {
	framing.Base
	src    *bytestream.ByteStream
	logger imp.Logger
}

func (im *Importer) Name() string { return "ac3" }

// Probe scans consecutive AC-3 sync frames (0x0B77 syncword), computing
// each frame's byte length from its fscod/frmsizecod pair.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	var freq uint32
	var channels uint8
	framesSeen := 0

	for {
		if im.src.IsEnd(6) {
			break
		}
		sync, ok := im.src.GetBE16()
		if !ok || sync != 0x0b77 {
			if framesSeen == 0 {
				return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: syncword not found"))
			}
			break
		}
		crc1, ok := im.src.GetBE16()
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: truncated header"))
		}
		b, ok := im.src.GetByte()
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: truncated header"))
		}
		fscod := (b >> 6) & 0x3
		frmsizecod := b & 0x3f
		if fscod == 0x3 || int(frmsizecod>>1) >= len(frameSizeWords48) {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: reserved fscod or frmsizecod"))
		}
		bsidByte, ok := im.src.GetByte()
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: truncated header"))
		}
		// acmod is the top 3 bits of the byte following bsid/bsmod.
		acmodByte, ok := im.src.ShowByte(0)
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: truncated header"))
		}
		acmod := (acmodByte >> 5) & 0x7

		var words int
		var rate uint32
		switch fscod {
		case 0:
			words, rate = frameSizeWords48[frmsizecod>>1], 48000
		case 1:
			words, rate = frameSizeWords44[frmsizecod>>1]+int(frmsizecod&1), 44100
		case 2:
			words, rate = frameSizeWords32[frmsizecod>>1], 32000
		}
		frameBytes := words * 2
		if frameBytes < 6 {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: frame too small"))
		}

		rest, ok := im.src.GetBytes(frameBytes - 6)
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: truncated frame"))
		}
		frame := make([]byte, 0, frameBytes)
		frame = append(frame, 0x0b, 0x77)
		frame = append(frame, byte(crc1>>8), byte(crc1))
		frame = append(frame, b, bsidByte)
		frame = append(frame, rest...)

		if framesSeen == 0 {
			freq = rate
			channels = acmodChannels[acmod]
		}
		im.Frames = append(im.Frames, framing.Frame{Data: frame, SamplesInFrame: samplesPerFrame, Sync: true, PreRoll: 1})
		framesSeen++
	}
	if framesSeen == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("ac3: no frames found"))
	}

	im.Summary = &sampleentry.Summary{
		Kind:           sampleentry.Audio,
		SampleType:     "ac-3",
		Channels:       channels,
		Frequency:      freq,
		SampleSize:     16,
		Timescale:      freq,
		SamplesInFrame: samplesPerFrame,
	}
	return im.Summary.Clone(), nil
}
