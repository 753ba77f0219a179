/*
NAME
  amr.go

DESCRIPTION
  amr.go implements the AMR-NB/WB importer: 3GPP TS 26.101/26.244
  storage-format magic detection, per-frame TOC parsing and frame-size
  table lookup.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package amr implements the AMR-NB and AMR-WB elementary-stream
// importer.
package amr

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/codec/framing"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func init() {
	imp.Register(imp.Entry{
		Name:       "amr",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

var magicNB = []byte("#!AMR\n")
var magicWB = []byte("#!AMR-WB\n")

// frameBits[FT] is the payload size in bits for each frame type, per
// 3GPP TS 26.101 (NB) and TS 26.201 (WB) table of codec modes. FT
// indices beyond the codec's defined speech/SID/no-data entries are
// zero and rejected.
var frameBitsNB = [16]int{95, 103, 118, 134, 148, 159, 204, 244, 39, 0, 0, 0, 0, 0, 0, 0}
var frameBitsWB = [16]int{132, 177, 253, 285, 317, 365, 397, 461, 477, 40, 0, 0, 0, 0, 0, 0}

const (
	samplesPerFrameNB = 160  // 20 ms at 8000 Hz
	samplesPerFrameWB = 320  // 20 ms at 16000 Hz
)

// Importer implements importer.Importer for the AMR-NB/WB storage
// format.
type Importer struct {
	framing.Base
	src    *bytestream.ByteStream
	logger imp.Logger
	wide   bool
}

func (im *Importer) Name() string { return "amr" }

// Probe validates the magic header, then reads consecutive TOC-prefixed
// frames until the stream is exhausted. Each sample holds its TOC byte
// followed by the payload. Frame type 15 (NO_DATA) frames carry no
// payload bytes beyond the TOC and are imported as one-byte samples
// holding only the TOC, matching the format's DTX convention.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	start := im.src.Offset()
	var wide bool
	if b, ok := im.src.GetBytes(len(magicWB)); ok && string(b) == string(magicWB) {
		wide = true
	} else {
		if err := im.src.ReadSeek(start, io.SeekStart); err != nil {
			return nil, imp.Wrap(imp.KindInvalidData, err)
		}
		if b, ok := im.src.GetBytes(len(magicNB)); !ok || string(b) != string(magicNB) {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("amr: missing #!AMR magic"))
		}
		wide = false
	}
	im.wide = wide

	frameBits := frameBitsNB
	samples := uint32(samplesPerFrameNB)
	freq := uint32(8000)
	if wide {
		frameBits = frameBitsWB
		samples = samplesPerFrameWB
		freq = 16000
	}

	framesSeen := 0
	for !im.src.IsEnd(1) {
		toc, ok := im.src.GetByte()
		if !ok {
			break
		}
		ft := (toc >> 3) & 0xf
		bits := frameBits[ft]
		if bits == 0 && ft != 15 {
			return nil, imp.Wrap(imp.KindInvalidData, errors.Errorf("amr: unsupported frame type %d", ft))
		}
		nBytes := (bits + 7) / 8
		var payload []byte
		if nBytes > 0 {
			p, ok := im.src.GetBytes(nBytes)
			if !ok {
				return nil, imp.Wrap(imp.KindInvalidData, errors.New("amr: truncated frame"))
			}
			payload = p
		}
		data := append([]byte{toc}, payload...)
		im.Frames = append(im.Frames, framing.Frame{Data: data, SamplesInFrame: samples, Sync: true})
		framesSeen++
	}
	if framesSeen == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("amr: no frames found"))
	}

	im.Summary = &sampleentry.Summary{
		Kind:           sampleentry.Audio,
		SampleType:     "samr",
		Channels:       1,
		Frequency:      freq,
		SampleSize:     16,
		Timescale:      freq,
		SamplesInFrame: samples,
	}
	if wide {
		im.Summary.SampleType = "sawb"
	}
	return im.Summary.Clone(), nil
}
