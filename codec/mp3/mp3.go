/*
NAME
  mp3.go

DESCRIPTION
  mp3.go implements the MPEG-1/2 Layer I/II/III importer: frame-sync
  scanning, bitrate/sample-rate table lookup, and Xing/Info/VBRI header
  detection (skipped as a non-audio frame rather than imported).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mp3 implements the MPEG audio Layer I/II/III elementary-stream
// importer.
package mp3

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
		Name:       "mp3",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

// bitrateTableV1/V2[layerIdx][bitrateIdx], kbps; layerIdx 0=I,
// 1=II, 2=III, per ISO/IEC 11172-3 Table B.1/B.2.
var bitrateTableV1 = [3][16]int{
	{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
}
var bitrateTableV2 = [3][16]int{
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
}

var sampleRateTable = [3][4]int{
	{44100, 48000, 32000, -1}, // MPEG-1
	{22050, 24000, 16000, -1}, // MPEG-2
	{11025, 12000, 8000, -1},  // MPEG-2.5
}

// Importer implements importer.Importer for MPEG audio Layer I/II/III
// streams.
type Importer struct {
	framing.Base
	src    *bytestream.ByteStream
	logger imp.Logger
}

func (im *Importer) Name() string { return "mp3" }

// header is one parsed MPEG audio frame header.
type header struct {
	mpegVersion      int // 0=V1, 1=V2, 2=V2.5
	layer            int // 0=I, 1=II, 2=III
	bitrate          int
	sampleRate       int
	padding          int
	channels         uint8
	protectionAbsent bool
	frameSize        int
	samples          int
}

// sideInfoLen returns the Layer III side_information() length in bytes
// (ISO/IEC 11172-3 section 2.4.2.7 / 13818-3 section 2.4.2.9), which
// immediately follows the header (and CRC, if present) and begins with
// main_data_begin.
func sideInfoLen(mpegVersion int, channels uint8) int {
	if mpegVersion == 0 { // MPEG-1
		if channels == 1 {
			return 17
		}
		return 32
	}
	if channels == 1 {
		return 9
	}
	return 17
}

func parseHeader(b []byte) (*header, error) {
	if b[0] != 0xff || b[1]&0xe0 != 0xe0 {
		return nil, errors.New("mp3: syncword not found")
	}
	verBits := (b[1] >> 3) & 0x3
	var mpegVersion int
	switch verBits {
	case 0b11:
		mpegVersion = 0
	case 0b10:
		mpegVersion = 1
	case 0b00:
		mpegVersion = 2
	default:
		return nil, errors.New("mp3: reserved MPEG version")
	}
	layerBits := (b[1] >> 1) & 0x3
	var layer int
	switch layerBits {
	case 0b11:
		layer = 0
	case 0b10:
		layer = 1
	case 0b01:
		layer = 2
	default:
		return nil, errors.New("mp3: reserved layer")
	}
	bitrateIdx := (b[2] >> 4) & 0xf
	var bitrate int
	if mpegVersion == 0 {
		bitrate = bitrateTableV1[layer][bitrateIdx]
	} else {
		bitrate = bitrateTableV2[layer][bitrateIdx]
	}
	if bitrate <= 0 {
		return nil, errors.New("mp3: invalid or free-format bitrate")
	}
	sampleRateIdx := (b[2] >> 2) & 0x3
	sampleRate := sampleRateTable[mpegVersion][sampleRateIdx]
	if sampleRate <= 0 {
		return nil, errors.New("mp3: reserved sample rate")
	}
	padding := int((b[2] >> 1) & 0x1)
	protectionAbsent := b[1]&0x1 != 0
	chanMode := (b[3] >> 6) & 0x3
	channels := uint8(2)
	if chanMode == 0x3 {
		channels = 1
	}

	var samples int
	switch layer {
	case 0:
		samples = 384
	case 1:
		samples = 1152
	case 2:
		if mpegVersion == 0 {
			samples = 1152
		} else {
			samples = 576
		}
	}

	var frameSize int
	if layer == 0 {
		frameSize = (12*bitrate*1000/sampleRate + padding) * 4
	} else {
		frameSize = 144*bitrate*1000/sampleRate + padding
	}
	if frameSize < 4 {
		return nil, errors.New("mp3: computed frame size too small")
	}

	return &header{
		mpegVersion:      mpegVersion,
		layer:            layer,
		bitrate:          bitrate,
		sampleRate:       sampleRate,
		padding:          padding,
		channels:         channels,
		protectionAbsent: protectionAbsent,
		frameSize:        frameSize,
		samples:          samples,
	}, nil
}

// reservoir tracks the Layer III bit-reservoir history: a bounded FIFO
// (32 entries, per spec.md section 9's "Bit reservoir history") of main
// data sizes, used to derive pre_roll.distance from main_data_begin.
type reservoir struct {
	sizes []int // most recent last.
}

const reservoirDepth = 32

// distance returns the pre-roll distance for a frame whose side info
// declares mainDataBegin bytes borrowed from prior frames' reservoirs,
// then records this frame's own main data size for subsequent frames.
func (r *reservoir) distance(mainDataBegin, mainDataSize int) uint32 {
	count := 0
	need := mainDataBegin
	for i := len(r.sizes) - 1; i >= 0 && need > 0; i-- {
		need -= r.sizes[i]
		count++
	}
	if len(r.sizes) == reservoirDepth {
		r.sizes = r.sizes[1:]
	}
	r.sizes = append(r.sizes, mainDataSize)
	return uint32(count) + 1
}

// isID3v1OrAPE reports whether the stream's current position starts an
// ID3v1 ("TAG") or APE ("APETAGEX") trailer, both of which terminate the
// frame stream per spec.md section 6.
func isID3v1OrAPE(bs *bytestream.ByteStream) bool {
	match := func(sig string) bool {
		for i := 0; i < len(sig); i++ {
			b, ok := bs.ShowByte(i)
			if !ok || b != sig[i] {
				return false
			}
		}
		return true
	}
	return match("TAG") || match("APETAGEX")
}

// skipID3v2 consumes a leading ID3v2 tag, if present, using its
// synchsafe (7-bit-per-byte) size field to seek past it without
// decoding its frames, per spec.md section 6.
func skipID3v2(bs *bytestream.ByteStream) error {
	start := bs.Offset()
	hdr, ok := bs.GetBytes(10)
	if !ok || string(hdr[:3]) != "ID3" {
		return bs.ReadSeek(start, io.SeekStart)
	}
	size := int(hdr[6]&0x7f)<<21 | int(hdr[7]&0x7f)<<14 | int(hdr[8]&0x7f)<<7 | int(hdr[9]&0x7f)
	return bs.ReadSeek(start+10+int64(size), io.SeekStart)
}

// Probe scans the stream for consecutive MPEG audio frames. When the
// first Layer III frame carries a Xing/Info tag (the four bytes following
// the side information) or a VBRI tag (32 bytes after the header), that
// frame is skipped rather than imported; the tag's contents are not read.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	if err := skipID3v2(im.src); err != nil {
		return nil, imp.Wrap(imp.KindInvalidData, err)
	}

	var h0 *header
	var res reservoir
	var tagChecked bool
	framesSeen := 0
	for {
		if im.src.IsEnd(4) || isID3v1OrAPE(im.src) {
			break
		}
		hb, ok := im.src.GetBytes(4)
		if !ok {
			break
		}
		h, err := parseHeader(hb)
		if err != nil {
			if framesSeen == 0 {
				return nil, imp.Wrap(imp.KindInvalidData, err)
			}
			break
		}
		rest, ok := im.src.GetBytes(h.frameSize - 4)
		if !ok {
			return nil, imp.Wrap(imp.KindInvalidData, errors.New("mp3: truncated frame"))
		}
		data := append(append([]byte{}, hb...), rest...)

		var preRoll uint32
		if h.layer == 2 {
			crcLen := 0
			if !h.protectionAbsent {
				crcLen = 2
			}
			siLen := sideInfoLen(h.mpegVersion, h.channels)
			if !tagChecked {
				tagChecked = true
				isTag := func(o int, tag string) bool { return o+4 <= len(rest) && string(rest[o:o+4]) == tag }
				if isTag(crcLen+siLen, "Xing") || isTag(crcLen+siLen, "Info") || isTag(32, "VBRI") {
					continue
				}
			}
			mainDataBegin := 0
			if crcLen+siLen <= len(rest) {
				si := rest[crcLen : crcLen+siLen]
				if h.mpegVersion == 0 {
					mainDataBegin = int(si[0])<<1 | int(si[1]>>7)
				} else {
					mainDataBegin = int(si[0])
				}
			}
			mainDataSize := h.frameSize - 4 - crcLen - siLen
			if mainDataSize < 0 {
				mainDataSize = 0
			}
			preRoll = res.distance(mainDataBegin, mainDataSize)
		}

		im.Frames = append(im.Frames, framing.Frame{Data: data, SamplesInFrame: uint32(h.samples), Sync: true, PreRoll: preRoll})
		if framesSeen == 0 {
			h0 = h
		}
		framesSeen++
	}
	if framesSeen == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("mp3: no frames found"))
	}

	im.Summary = &sampleentry.Summary{
		Kind:           sampleentry.Audio,
		SampleType:     "mp4a",
		Channels:       h0.channels,
		Frequency:      uint32(h0.sampleRate),
		SampleSize:     16,
		Timescale:      uint32(h0.sampleRate),
		SamplesInFrame: uint32(h0.samples),
	}
	return im.Summary.Clone(), nil
}
