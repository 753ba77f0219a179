/*
NAME
  sei.go

DESCRIPTION
  sei.go parses the recovery_point SEI message (Annex D.1.7/D.2.7, Rec.
  ITU-T H.264), used to mark an access unit as a post-roll (gradual decoder
  refresh) starting point.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package avc

import (
	"bytes"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/expgolomb"
)

// seiPayloadTypeRecoveryPoint is the recovery_point SEI payload type,
// Table D-1, Rec. ITU-T H.264.
const seiPayloadTypeRecoveryPoint = 6

// recoveryPointSEI scans an SEI NAL's RBSP for a recovery_point message
// and returns its recovery_frame_cnt.
func recoveryPointSEI(rbsp []byte) (frameCnt uint64, ok bool) {
	src := bytestream.New(bytes.NewReader(rbsp), len(rbsp)+8)
	for {
		payloadType, eof := readSEICount(src)
		if eof {
			return 0, false
		}
		payloadSize, eof := readSEICount(src)
		if eof {
			return 0, false
		}
		if payloadType != seiPayloadTypeRecoveryPoint {
			if err := src.Skip(int(payloadSize)); err != nil {
				return 0, false
			}
			continue
		}
		br := bytestream.NewBitReader(src)
		cnt, err := expgolomb.ReadUE(br)
		if err != nil {
			return 0, false
		}
		return cnt, true
	}
}

// readSEICount reads one 0xFF-extended payloadType/payloadSize field
// (section 7.3.2.3.1): a run of 0xFF bytes each worth 255, terminated by a
// final byte added directly.
func readSEICount(src *bytestream.ByteStream) (count uint64, eof bool) {
	for {
		b, ok := src.GetByte()
		if !ok {
			return 0, true
		}
		count += uint64(b)
		if b != 0xff {
			return count, false
		}
	}
}
