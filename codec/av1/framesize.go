/*
NAME
  framesize.go

DESCRIPTION
  framesize.go parses the leading fields of a FRAME_HEADER/FRAME OBU's
  uncompressed_header() (AV1 Bitstream & Decoding Process Specification
  section 5.9.2) needed to recover render_width/render_height for a key or
  intra-only frame, to detect mid-stream render-resize.

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

// Frame types, section 6.8.2.
const (
	frameTypeKey       = 0
	frameTypeInter     = 1
	frameTypeIntraOnly = 2
	frameTypeSwitch    = 3
)

const (
	superresNum      = 8
	superresDenomMin = 9
)

// renderSize is the render_width/render_height recovered from one frame's
// uncompressed header.
type renderSize struct {
	width, height uint32
}

// parseRenderSize parses enough of a FRAME_HEADER/FRAME OBU payload to
// recover render_size() for a key or intra-only frame (section 5.9.2,
// 5.9.5-5.9.6). It reports ok=false, without error, for inter frames and
// show_existing_frame references: their size is inherited from a reference
// frame this importer doesn't track across temporal units, so the caller
// should retain the previously known render size instead.
func parseRenderSize(payload []byte, sh *SequenceHeader) (rs renderSize, ok bool, err error) {
	if sh.ReducedStillPicture {
		return renderSize{width: sh.MaxFrameWidth, height: sh.MaxFrameHeight}, true, nil
	}

	src := bytestream.New(bytes.NewReader(payload), len(payload)+8)
	br := bytestream.NewBitReader(src)
	var rerr error
	readBits := func(n int) uint64 {
		if rerr != nil || n == 0 {
			return 0
		}
		var v uint64
		v, rerr = br.Get(n)
		return v
	}
	readBit := func() bool { return readBits(1) == 1 }

	if readBit() { // show_existing_frame
		return renderSize{}, false, nil
	}
	frameType := readBits(2)
	frameIsIntra := frameType == frameTypeKey || frameType == frameTypeIntraOnly
	showFrame := readBit()
	var showableFrame bool
	if showFrame {
		showableFrame = frameType != frameTypeKey
	} else {
		showableFrame = readBit()
	}
	_ = showableFrame

	var errorResilientMode bool
	if frameType == frameTypeSwitch || (frameType == frameTypeKey && showFrame) {
		errorResilientMode = true
	} else {
		errorResilientMode = readBit()
	}

	if !frameIsIntra {
		// frame_size_with_refs() may inherit a reference's dimensions
		// without encoding any size bits at all; this importer doesn't
		// track per-reference sizes, so inter frames report no size here.
		return renderSize{}, false, nil
	}

	readBit() // disable_cdf_update

	var allowScreenContentTools bool
	if sh.SeqForceScreenContentTools == selectScreenContentTools {
		allowScreenContentTools = readBit()
	} else {
		allowScreenContentTools = sh.SeqForceScreenContentTools != 0
	}
	if allowScreenContentTools && sh.SeqForceIntegerMv == selectIntegerMv {
		readBit() // force_integer_mv
	}

	if sh.FrameIDNumbersPresent {
		idLen := int(sh.AdditionalFrameIDLengthMinus1) + int(sh.DeltaFrameIDLengthMinus2) + 3
		readBits(idLen) // current_frame_id
	}

	var frameSizeOverride bool
	switch {
	case frameType == frameTypeSwitch:
		frameSizeOverride = true
	default:
		frameSizeOverride = readBit()
	}

	if sh.EnableOrderHint {
		readBits(int(sh.OrderHintBitsMinus1) + 1) // order_hint
	}

	if !(frameIsIntra || errorResilientMode) {
		readBits(3) // primary_ref_frame
	}

	// This importer's sequence-header parser stops before
	// decoder_model_info_present_flag is read, so it is never true here;
	// buffer_removal_time() is never present to skip.

	if !(frameType == frameTypeSwitch || (frameType == frameTypeKey && showFrame)) {
		readBits(8) // refresh_frame_flags
	}

	// ref_order_hint[] only appears when !FrameIsIntra, never reached here.

	frameWidth, frameHeight, err := readFrameSize(readBits, readBit, sh, frameSizeOverride)
	if err != nil {
		return renderSize{}, false, err
	}
	upscaledWidth, err := readSuperresParams(readBits, readBit, sh, frameWidth)
	if err != nil {
		return renderSize{}, false, err
	}

	if readBit() { // render_and_frame_size_different
		w := uint32(readBits(16)) + 1
		h := uint32(readBits(16)) + 1
		rs = renderSize{width: w, height: h}
	} else {
		rs = renderSize{width: upscaledWidth, height: frameHeight}
	}

	if rerr != nil {
		return renderSize{}, false, errors.Wrap(rerr, "av1: parsing frame header for render size")
	}
	return rs, true, nil
}

// readFrameSize implements frame_size(), section 5.9.5.
func readFrameSize(readBits func(int) uint64, readBit func() bool, sh *SequenceHeader, override bool) (width, height uint32, err error) {
	if override {
		width = uint32(readBits(int(sh.FrameWidthBitsMinus1)+1)) + 1
		height = uint32(readBits(int(sh.FrameHeightBitsMinus1)+1)) + 1
		return width, height, nil
	}
	return sh.MaxFrameWidth, sh.MaxFrameHeight, nil
}

// readSuperresParams implements superres_params(), section 5.9.7,
// returning UpscaledWidth. UpscaledWidth is the width frame_size() read;
// superres only narrows the decoded FrameWidth below it.
func readSuperresParams(readBits func(int) uint64, readBit func() bool, sh *SequenceHeader, frameWidth uint32) (upscaledWidth uint32, err error) {
	if sh.EnableSuperres && readBit() { // use_superres
		readBits(3) // coded_denom
	}
	return frameWidth, nil
}
