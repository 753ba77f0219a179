/*
NAME
  av1.go

DESCRIPTION
  av1.go implements the AV1/IVF importer: it wires IVF frame reading and
  OBU parsing into the importer.Importer capability set, treating each
  IVF frame as one temporal unit and access unit. A temporal unit is
  marked as a sync sample when it carries a sequence header OBU; the
  frame_type and show_frame of its first frame are not checked for this.

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
	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func init() {
	imp.Register(imp.Entry{
		Name:       "av1",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

type accessUnit struct {
	data         []byte
	sync         bool
	timestamp    uint64
	renderWidth  uint32
	renderHeight uint32
}

// Importer implements importer.Importer for an IVF-contained AV1
// bitstream.
type Importer struct {
	src    *bytestream.ByteStream
	logger imp.Logger

	hdr *IVFHeader
	aus []accessUnit
	idx int

	activeSummary *sampleentry.Summary

	// pendingByAU maps the index of the first access unit whose
	// RenderWidth/Height exceeds the running max to the summary (with
	// recomputed PAR) that becomes active from that AU on; GetAccessUnit
	// swaps activeSummary in and reports StatusChange when it reaches one
	// of these indices.
	pendingByAU map[int]*sampleentry.Summary

	lastDelta uint32
	timescale uint32
}

func (im *Importer) Name() string       { return "av1" }
func (im *Importer) TrackCount() uint32 { return 1 }

// Probe parses the IVF header and every frame, tracking the active
// sequence header so a mid-stream change (a render-resize) can surface
// as a future StatusChange.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	hdr, err := parseIVFHeader(im.src)
	if err != nil {
		return nil, imp.Wrap(imp.KindInvalidData, err)
	}
	im.hdr = hdr
	im.timescale = hdr.TimebaseDen
	if im.timescale == 0 {
		im.timescale = 1
	}

	var activeSeqHdr *SequenceHeader
	var aus []accessUnit
	for {
		frame, ok, err := nextIVFFrame(im.src)
		if err != nil {
			return nil, imp.Wrap(imp.KindInvalidData, err)
		}
		if !ok {
			break
		}
		obus, err := splitOBUs(frame.data)
		if err != nil {
			im.log(imp.LogWarning, "dropping unparseable temporal unit: %v", err)
			continue
		}

		au := accessUnit{data: frame.data, timestamp: frame.timestamp}
		for _, o := range obus {
			switch o.Type {
			case OBUSequenceHeader:
				sh, err := parseSequenceHeader(stripOBUHeader(o.Bytes))
				if err != nil {
					im.log(imp.LogWarning, "dropping unparseable sequence header: %v", err)
					continue
				}
				activeSeqHdr = sh
				au.sync = true
			case OBUFrame, OBUFrameHeader:
				if activeSeqHdr == nil {
					continue
				}
				rs, ok, err := parseRenderSize(stripOBUHeader(o.Bytes), activeSeqHdr)
				if err != nil {
					im.log(imp.LogWarning, "dropping unparseable frame header: %v", err)
					continue
				}
				if ok {
					au.renderWidth, au.renderHeight = rs.width, rs.height
				}
			}
		}
		aus = append(aus, au)
	}

	if len(aus) == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("av1: no temporal units found"))
	}
	if activeSeqHdr == nil {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("av1: stream has no sequence header"))
	}

	im.aus = aus
	var seqHeaderOBU []byte
	for _, o := range mustSplitFirst(aus[0].data) {
		if o.Type == OBUSequenceHeader {
			seqHeaderOBU = o.Bytes
			break
		}
	}
	av1c := buildAV1C(activeSeqHdr, seqHeaderOBU)
	im.activeSummary = buildSummary(activeSeqHdr, av1c)
	im.activeSummary.Timescale = im.timescale

	// Track the running max of RenderWidth/Height across TUs (section
	// 4.7/S6): whenever a later frame's render size exceeds either
	// dimension's running max, recompute PAR against the sequence header's
	// coded dimensions and signal a pending configuration change.
	im.pendingByAU = map[int]*sampleentry.Summary{}
	var maxW, maxH uint32
	haveMax := false
	for i := range aus {
		au := &aus[i]
		if au.renderWidth == 0 || au.renderHeight == 0 {
			continue
		}
		if !haveMax {
			maxW, maxH = au.renderWidth, au.renderHeight
			haveMax = true
			continue
		}
		if au.renderWidth <= maxW && au.renderHeight <= maxH {
			continue
		}
		if au.renderWidth > maxW {
			maxW = au.renderWidth
		}
		if au.renderHeight > maxH {
			maxH = au.renderHeight
		}
		num, den := reducedRatio(maxW*activeSeqHdr.MaxFrameHeight, activeSeqHdr.MaxFrameWidth*maxH)
		s := buildSummary(activeSeqHdr, av1c)
		s.Timescale = im.timescale
		s.ParNum, s.ParDen = num, den
		im.pendingByAU[i] = s
	}

	return im.activeSummary.Clone(), nil
}

// reducedRatio reduces the ratio a:b by their GCD, reporting 1:1 for a
// degenerate (zero) ratio.
func reducedRatio(a, b uint32) (num, den uint32) {
	if a == 0 || b == 0 {
		return 1, 1
	}
	g := gcd(a, b)
	return a / g, b / g
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// stripOBUHeader removes the OBU header (and extension byte/size field)
// from a full OBU byte slice, returning just its payload.
func stripOBUHeader(obu []byte) []byte {
	if len(obu) == 0 {
		return obu
	}
	hdrLen := 1
	if obu[0]&0x04 != 0 {
		hdrLen = 2
	}
	_, n, err := readLEB128(obu[hdrLen:])
	if err != nil {
		return nil
	}
	return obu[hdrLen+n:]
}

func mustSplitFirst(data []byte) []OBU {
	obus, err := splitOBUs(data)
	if err != nil {
		return nil
	}
	return obus
}

func (im *Importer) DuplicateSummary(track uint32) *sampleentry.Summary {
	return im.activeSummary.Clone()
}

func (im *Importer) GetAccessUnit(track uint32) (*imp.Sample, imp.Status, error) {
	if im.idx >= len(im.aus) {
		return nil, imp.StatusEOF, nil
	}
	idx := im.idx
	au := im.aus[idx]
	im.idx++

	s := &imp.Sample{
		Data:        au.data,
		DTS:         int64(au.timestamp),
		CTS:         int64(au.timestamp),
		Independent: au.sync,
	}
	if au.sync {
		s.RAFlags |= imp.RASync
	}

	status := imp.StatusOK
	if summary, ok := im.pendingByAU[idx]; ok {
		im.activeSummary = summary
		status = imp.StatusChange
	}
	return s, status, nil
}

func (im *Importer) GetLastDelta(track uint32) (uint32, error) { return im.lastDelta, nil }
func (im *Importer) Cleanup() error                            { return nil }

func (im *Importer) log(level int8, msg string, params ...interface{}) {
	if im.logger != nil {
		im.logger.Log(level, msg, params...)
	}
}
