/*
NAME
  adts.go

DESCRIPTION
  adts.go implements the ADTS (Audio Data Transport Stream) AAC importer:
  frame-sync scanning, header parsing, and frame-at-a-time access-unit
  delivery.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package adts implements the ADTS AAC elementary-stream importer,
// generalizing the teacher library's ADTS frame lexer into the
// importer.Importer capability set.
package adts

import (
	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/codec/framing"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func init() {
	imp.Register(imp.Entry{
		Name:       "adts",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

// sampleRates maps the 4-bit sampling_frequency_index to its frequency in
// Hz (Table 1.6.3.3, ISO/IEC 13818-7).
var sampleRates = [16]uint32{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

const samplesPerFrame = 1024

// Importer implements importer.Importer for ADTS AAC streams.
type Importer struct {
	framing.Base
	src    *bytestream.ByteStream
	logger imp.Logger
}

func (im *Importer) Name() string { return "adts" }

// Probe scans the stream for consecutive ADTS frames, validating each
// frame's syncword and sampling_frequency_index and rejecting a stream
// whose sampling rate differs from the first frame's. The summary's
// channel configuration comes from the first frame; later frames'
// channel configurations are not compared against it.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	var sampleRate uint32
	var channels uint8
	framesSeen := 0

	for {
		if im.src.IsEnd(7) {
			break
		}
		b0, _ := im.src.ShowByte(0)
		b1, _ := im.src.ShowByte(1)
		if b0 != 0xff || b1&0xf0 != 0xf0 {
			if framesSeen == 0 {
				return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: syncword not found"))
			}
			break
		}

		hdr, ok := im.src.GetBytes(7)
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: truncated header"))
		}
		protectionAbsent := hdr[1]&0x01 != 0
		freqIdx := (hdr[2] >> 2) & 0xf
		if int(freqIdx) >= len(sampleRates) || sampleRates[freqIdx] == 0 {
			return nil, imp.Wrap(imp.KindInvalidData, errors.Errorf("adts: invalid sampling_frequency_index %d", freqIdx))
		}
		chanCfg := ((hdr[2] & 0x1) << 2) | (hdr[3] >> 6)
		frameLength := uint16(hdr[3]&0x3)<<11 | uint16(hdr[4])<<3 | uint16(hdr[5]>>5)
		if int(frameLength) < 7 {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: frame length smaller than header"))
		}

		payloadLen := int(frameLength) - 7
		if !protectionAbsent {
			payloadLen -= 2
		}
		if payloadLen < 0 {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: negative payload length"))
		}
		payload, ok := im.src.GetBytes(payloadLen)
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: truncated payload"))
		}
		if !protectionAbsent {
			if _, ok := im.src.GetBytes(2); !ok {
				return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: truncated CRC"))
			}
		}

		if framesSeen == 0 {
			sampleRate = sampleRates[freqIdx]
			channels = chanCfg
		} else if sampleRates[freqIdx] != sampleRate {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: sampling_frequency_index changed mid-stream"))
		}

		frame := append(append([]byte{}, hdr...), payload...)
		im.Frames = append(im.Frames, framing.Frame{Data: frame, SamplesInFrame: samplesPerFrame, Sync: true, PreRoll: 1})
		framesSeen++
	}

	if framesSeen == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("adts: no frames found"))
	}

	im.Summary = &sampleentry.Summary{
		Kind:           sampleentry.Audio,
		SampleType:     "mp4a",
		Channels:       channels,
		Frequency:      sampleRate,
		SampleSize:     16,
		Timescale:      sampleRate,
		SamplesInFrame: samplesPerFrame,
	}
	return im.Summary.Clone(), nil
}
