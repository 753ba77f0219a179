/*
NAME
  ivf.go

DESCRIPTION
  ivf.go parses the IVF container (a thin frame-size-and-timestamp
  wrapper used to carry raw AV1 bitstreams) that spec.md's AV1 importer
  module reads.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package av1 implements the AV1/IVF importer: IVF container parsing,
// OBU parsing, temporal-unit assembly, sync-sample detection and av1C
// construction.
package av1

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
)

// IVFHeader is the 32-byte IVF file header.
type IVFHeader struct {
	Version        uint16
	HeaderSize     uint16
	FourCC         uint32
	Width, Height  uint16
	TimebaseDen    uint32
	TimebaseNum    uint32
	NumFrames      uint32
}

// ivfFrame is one IVF-framed payload (a temporal unit's OBUs, concatenated).
type ivfFrame struct {
	data      []byte
	timestamp uint64
}

// parseIVFHeader reads and validates the 32-byte IVF file header.
func parseIVFHeader(bs *bytestream.ByteStream) (*IVFHeader, error) {
	hdr, ok := bs.GetBytes(32)
	if !ok {
		return nil, errors.New("av1: truncated IVF header")
	}
	if string(hdr[0:4]) != "DKIF" {
		return nil, errors.New("av1: not an IVF stream")
	}
	h := &IVFHeader{
		Version:     binary.LittleEndian.Uint16(hdr[4:6]),
		HeaderSize:  binary.LittleEndian.Uint16(hdr[6:8]),
		FourCC:      binary.LittleEndian.Uint32(hdr[8:12]),
		Width:       binary.LittleEndian.Uint16(hdr[12:14]),
		Height:      binary.LittleEndian.Uint16(hdr[14:16]),
		TimebaseDen: binary.LittleEndian.Uint32(hdr[16:20]),
		TimebaseNum: binary.LittleEndian.Uint32(hdr[20:24]),
		NumFrames:   binary.LittleEndian.Uint32(hdr[24:28]),
	}
	if h.FourCC != 0x31305641 { // "AV01" little-endian.
		return nil, errors.Errorf("av1: unsupported IVF fourcc 0x%08x", h.FourCC)
	}
	if int(h.HeaderSize) > 32 {
		if _, ok := bs.GetBytes(int(h.HeaderSize) - 32); !ok {
			return nil, errors.New("av1: truncated IVF header extension")
		}
	}
	return h, nil
}

// nextIVFFrame reads the next frame-size-prefixed IVF frame.
func nextIVFFrame(bs *bytestream.ByteStream) (*ivfFrame, bool, error) {
	if bs.IsEnd(12) {
		return nil, false, nil
	}
	size, ok := bs.GetLE32()
	if !ok {
		return nil, false, errors.New("av1: truncated IVF frame size")
	}
	ts, ok := bs.GetLE64()
	if !ok {
		return nil, false, errors.New("av1: truncated IVF frame timestamp")
	}
	data, ok := bs.GetBytes(int(size))
	if !ok {
		return nil, false, errors.New("av1: truncated IVF frame payload")
	}
	return &ivfFrame{data: data, timestamp: ts}, true, nil
}
