/*
NAME
  obu.go

DESCRIPTION
  obu.go parses AV1 Open Bitstream Units (AV1 Bitstream & Decoding
  Process Specification section 5.3): the OBU header, leb128-encoded
  size field, and the sequence_header_obu fields needed to build an
  av1C decoder-configuration record.

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

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
)

// OBU types, section 6.2.2.
const (
	OBUSequenceHeader       = 1
	OBUTemporalDelimiter    = 2
	OBUFrameHeader          = 3
	OBUTileGroup            = 4
	OBUMetadata             = 5
	OBUFrame                = 6
	OBURedundantFrameHeader = 7
	OBUTileList             = 8
	OBUPadding              = 15
)

// OBU is one parsed Open Bitstream Unit: its type and the raw bytes of
// the full obu() including its header, as required for byte-identity
// re-emission into the importer's AU encoding.
type OBU struct {
	Type  uint8
	Bytes []byte
}

// splitOBUs splits one temporal unit's concatenated low-overhead-bitstream-
// format OBUs (section 5.2) into individual OBU records.
func splitOBUs(data []byte) ([]OBU, error) {
	var out []OBU
	for len(data) > 0 {
		if len(data) < 1 {
			return nil, errors.New("av1: truncated OBU header")
		}
		b0 := data[0]
		extFlag := b0&0x04 != 0
		hasSize := b0&0x02 != 0
		typ := (b0 >> 3) & 0xf
		hdrLen := 1
		if extFlag {
			hdrLen = 2
		}
		if len(data) < hdrLen {
			return nil, errors.New("av1: truncated OBU extension header")
		}
		if !hasSize {
			// obu_has_size_field must be set in the low-overhead format
			// this importer consumes; streams without it aren't supported.
			return nil, errors.New("av1: OBU without size field unsupported, patch welcome")
		}
		size, n, err := readLEB128(data[hdrLen:])
		if err != nil {
			return nil, err
		}
		total := hdrLen + n + int(size)
		if total > len(data) {
			return nil, errors.New("av1: truncated OBU payload")
		}
		out = append(out, OBU{Type: typ, Bytes: data[:total]})
		data = data[total:]
	}
	return out, nil
}

// readLEB128 decodes an unsigned LEB128 value (section 4.10.5), returning
// the value, the number of bytes consumed, and an error if the encoding
// is malformed or truncated.
func readLEB128(b []byte) (uint64, int, error) {
	var value uint64
	for i := 0; i < 8; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("av1: truncated leb128")
		}
		byt := b[i]
		value |= uint64(byt&0x7f) << uint(i*7)
		if byt&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("av1: leb128 exceeds 8 bytes")
}

// SequenceHeader holds the sequence_header_obu fields (section 5.5.1)
// needed for av1C construction and for frame-header parsing: profile,
// level, tier, frame dimensions, frame-id, order-hint, superres,
// screen-content and colour-config fields. Timing and decoder-model info
// is not retained.
type SequenceHeader struct {
	SeqProfile           uint8
	StillPicture         bool
	ReducedStillPicture  bool
	SeqLevelIdx0         uint8
	SeqTier0             uint8
	HighBitdepth         bool
	TwelveBit            bool
	Monochrome           bool
	ChromaSubsamplingX   uint8
	ChromaSubsamplingY   uint8
	ChromaSamplePosition uint8

	MaxFrameWidth, MaxFrameHeight                uint32
	FrameWidthBitsMinus1, FrameHeightBitsMinus1  uint8

	FrameIDNumbersPresent                                   bool
	AdditionalFrameIDLengthMinus1, DeltaFrameIDLengthMinus2 uint8

	EnableOrderHint     bool
	OrderHintBitsMinus1 uint8
	EnableSuperres      bool

	// SeqForceScreenContentTools and SeqForceIntegerMv hold either a forced
	// 0/1 value or selectScreenContentTools/selectIntegerMv, signalling that
	// the per-frame uncompressed header carries its own flag.
	SeqForceScreenContentTools, SeqForceIntegerMv uint8
}

// Sentinel values for SequenceHeader.SeqForceScreenContentTools and
// SeqForceIntegerMv, section 6.8.2.
const (
	selectScreenContentTools = 2
	selectIntegerMv          = 2
)

// parseSequenceHeader parses a sequence_header_obu through color_config().
// Timing info and operating-point parameters are read only to keep the
// bit position; an operating point carrying its own decoder model is
// rejected. Nothing after color_config() is read.
func parseSequenceHeader(payload []byte) (*SequenceHeader, error) {
	src := bytestream.New(bytes.NewReader(payload), len(payload)+8)
	br := bytestream.NewBitReader(src)

	sh := &SequenceHeader{}
	var err error
	readBits := func(n int) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = br.Get(n)
		return v
	}
	readBit := func() bool { return readBits(1) == 1 }

	sh.SeqProfile = uint8(readBits(3))
	sh.StillPicture = readBit()
	sh.ReducedStillPicture = readBit()

	if sh.ReducedStillPicture {
		sh.SeqLevelIdx0 = uint8(readBits(5))
	} else {
		timingInfoPresent := readBit()
		var decoderModelInfoPresent bool
		if timingInfoPresent {
			readBits(32) // num_units_in_display_tick
			readBits(32) // time_scale
			if readBit() { // equal_picture_interval
				readUVLC(br, &err)
			}
			decoderModelInfoPresent = readBit()
			if decoderModelInfoPresent {
				readBits(5) // buffer_delay_length_minus_1
				readBits(32)
				readBits(32)
				readBits(5)
			}
		}
		initialDisplayDelayPresent := readBit()
		operatingPointsCntMinus1 := readBits(5)
		for i := uint64(0); i <= operatingPointsCntMinus1; i++ {
			readBits(12) // operating_point_idc
			levelIdx := uint8(readBits(5))
			var tier uint8
			if levelIdx > 7 {
				tier = uint8(readBits(1))
			}
			if i == 0 {
				sh.SeqLevelIdx0 = levelIdx
				sh.SeqTier0 = tier
			}
			if decoderModelInfoPresent {
				if readBit() { // decoder_model_present_for_this_op
					// operand sizing depends on buffer_delay_length_minus_1,
					// which this importer doesn't retain; unsupported.
					return nil, errors.New("av1: per-operating-point decoder model unsupported, patch welcome")
				}
			}
			if initialDisplayDelayPresent {
				if readBit() {
					readBits(4)
				}
			}
		}
	}

	frameWidthBitsMinus1 := readBits(4)
	frameHeightBitsMinus1 := readBits(4)
	sh.FrameWidthBitsMinus1 = uint8(frameWidthBitsMinus1)
	sh.FrameHeightBitsMinus1 = uint8(frameHeightBitsMinus1)
	sh.MaxFrameWidth = uint32(readBits(int(frameWidthBitsMinus1+1))) + 1
	sh.MaxFrameHeight = uint32(readBits(int(frameHeightBitsMinus1+1))) + 1

	if !sh.ReducedStillPicture {
		sh.FrameIDNumbersPresent = readBit()
		if sh.FrameIDNumbersPresent {
			sh.DeltaFrameIDLengthMinus2 = uint8(readBits(4))
			sh.AdditionalFrameIDLengthMinus1 = uint8(readBits(3))
		}
	}
	readBit() // use_128x128_superblock
	readBit() // enable_filter_intra
	readBit() // enable_intra_edge_filter

	var enableOrderHint bool
	if !sh.ReducedStillPicture {
		readBit() // enable_interintra_compound
		readBit() // enable_masked_compound
		readBit() // enable_warped_motion
		readBit() // enable_dual_filter
		enableOrderHint = readBit()
		if enableOrderHint {
			readBit() // enable_jnt_comp
			readBit() // enable_ref_frame_mvs
		}
		if readBit() { // seq_choose_screen_content_tools
			sh.SeqForceScreenContentTools = selectScreenContentTools
		} else {
			sh.SeqForceScreenContentTools = uint8(readBits(1))
		}
		if sh.SeqForceScreenContentTools > 0 {
			if readBit() { // seq_choose_integer_mv
				sh.SeqForceIntegerMv = selectIntegerMv
			} else {
				sh.SeqForceIntegerMv = uint8(readBits(1))
			}
		} else {
			sh.SeqForceIntegerMv = selectIntegerMv
		}
		if enableOrderHint {
			sh.OrderHintBitsMinus1 = uint8(readBits(3))
		}
	} else {
		sh.SeqForceScreenContentTools = selectScreenContentTools
		sh.SeqForceIntegerMv = selectIntegerMv
	}
	sh.EnableOrderHint = enableOrderHint
	sh.EnableSuperres = readBit()
	readBit() // enable_cdef
	readBit() // enable_restoration

	// color_config():
	sh.HighBitdepth = readBit()
	if sh.SeqProfile == 2 && sh.HighBitdepth {
		sh.TwelveBit = readBit()
	}
	if sh.SeqProfile != 1 {
		sh.Monochrome = readBit()
	}
	colorDescriptionPresent := readBit()
	var colorPrimaries, transferCharacteristics, matrixCoefficients uint8 = 2, 2, 2
	if colorDescriptionPresent {
		colorPrimaries = uint8(readBits(8))
		transferCharacteristics = uint8(readBits(8))
		matrixCoefficients = uint8(readBits(8))
	}
	_ = colorPrimaries
	_ = matrixCoefficients
	if sh.Monochrome {
		readBit() // color_range
		sh.ChromaSubsamplingX, sh.ChromaSubsamplingY = 1, 1
	} else if colorPrimaries == 1 && transferCharacteristics == 13 && matrixCoefficients == 0 {
		sh.ChromaSubsamplingX, sh.ChromaSubsamplingY = 0, 0
		readBit() // color_range
	} else {
		readBit() // color_range
		if sh.SeqProfile == 0 {
			sh.ChromaSubsamplingX, sh.ChromaSubsamplingY = 1, 1
		} else if sh.SeqProfile == 1 {
			sh.ChromaSubsamplingX, sh.ChromaSubsamplingY = 0, 0
		} else {
			if sh.TwelveBit {
				sh.ChromaSubsamplingX = uint8(readBits(1))
				if sh.ChromaSubsamplingX == 1 {
					sh.ChromaSubsamplingY = uint8(readBits(1))
				}
			} else {
				sh.ChromaSubsamplingX = 1
			}
		}
		if sh.ChromaSubsamplingX == 1 && sh.ChromaSubsamplingY == 1 {
			sh.ChromaSamplePosition = uint8(readBits(2))
		}
	}

	if err != nil {
		return nil, errors.Wrap(err, "av1: parsing sequence header")
	}
	return sh, nil
}

func readUVLC(br *bytestream.BitReader, errp *error) uint64 {
	if *errp != nil {
		return 0
	}
	leadingZeros := 0
	for {
		b, err := br.Get(1)
		if err != nil {
			*errp = err
			return 0
		}
		if b == 1 {
			break
		}
		leadingZeros++
		if leadingZeros >= 32 {
			return (1 << 32) - 1
		}
	}
	if leadingZeros == 0 {
		return 0
	}
	v, err := br.Get(leadingZeros)
	if err != nil {
		*errp = err
		return 0
	}
	return v + (1 << uint(leadingZeros)) - 1
}
