/*
NAME
  avc.go

DESCRIPTION
  avc.go implements the H.264/AVC importer: it wires NAL scanning,
  parameter-set registration, access-unit assembly and two-pass
  timestamp synthesis into the importer.Importer capability set.

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
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/codec/paramset"
	"github.com/ausocean/av/codec/poctime"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func init() {
	imp.Register(imp.Entry{
		Name:       "h264",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

// accessUnit is one assembled, length-prefixed access unit, annotated
// with the decode-order bookkeeping needed for timestamp synthesis.
type accessUnit struct {
	nals      [][]byte // each EBSP, header included.
	sync      bool     // contains an IDR NAL.
	cvsStart  bool     // first AU of a coded video sequence (IDR or MMCO-5 reset).
	frameNum  uint64
	poc       int64
	dts, cts  int64
	sliceType uint64 // base type (SliceTypeP..SliceTypeSI) of the AU's first slice.

	// hasRecovery and recoveryFrameCnt come from a recovery_point SEI
	// message (section D.1.7) prefixing this AU; recoveryFrameCnt is the
	// number of AUs, in output order, until the decoder is guaranteed a
	// complete intra refresh.
	hasRecovery      bool
	recoveryFrameCnt uint64
}

// AnalysisStats tallies the picture types seen during Probe's single
// pass over the stream, one bucket per slice type plus IDR.
type AnalysisStats struct {
	IDR, I, P, B, SP, SI, Unknown int
}

// Importer implements importer.Importer for Annex-B H.264 elementary
// streams.
type Importer struct {
	src    *bytestream.ByteStream
	logger imp.Logger

	aus []accessUnit
	idx int

	activeSummary *sampleentry.Summary

	// pendingByAU maps the index of the first access unit of a new
	// configuration (a parameter-set id collision with different bytes,
	// section 4.3's NEW_DCR_REQUIRED) to the summary that becomes active
	// from that AU on; GetAccessUnit swaps activeSummary in and reports
	// StatusChange when it reaches one of these indices.
	pendingByAU map[int]*sampleentry.Summary

	spsSet *paramset.Set
	ppsSet *paramset.Set

	lastDelta uint32
	timescale uint32

	stats          AnalysisStats
	numUndecodable int
}

// Name implements importer.Importer.
func (im *Importer) Name() string { return "h264" }

// TrackCount implements importer.Importer; this importer always
// describes a single video track.
func (im *Importer) TrackCount() uint32 { return 1 }

// Probe scans the entire buffered stream (see importer.Open), builds the
// parameter-set registry, assembles access units, reconstructs picture
// order count and synthesizes DTS/CTS, per spec.md section 4.5's two-pass
// approach: everything happens here, up front, so GetAccessUnit is a
// simple index walk.
func (im *Importer) Probe() (*sampleentry.Summary, error) {
	im.spsSet = paramset.NewSet()
	im.ppsSet = paramset.NewSet()
	spsByID := map[int]*SPS{}
	ppsByID := map[int]*PPS{}

	sc := newNALScanner(im.src)
	var nals []*NALUnit
	var raws [][]byte
	for {
		raw, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, imp.Wrap(imp.KindInvalidData, err)
		}
		nal, err := parseNAL(raw)
		if err != nil {
			return nil, imp.Wrap(imp.KindInvalidData, err)
		}
		nals = append(nals, nal)
		raws = append(raws, raw.ebsp)
	}
	if len(nals) == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("avc: no NAL units found"))
	}

	var aus []accessUnit
	var cur accessUnit
	var curHasSlice bool
	var prevSH *SliceHeader
	var prevSPSID int
	var pocState POCState
	var activeSPS *SPS
	var pics []poctime.PictureDelta
	var cvsStart []bool

	// pendingRecovery holds a recovery_frame_cnt parsed from a prefix
	// recovery_point SEI until the following access unit's first slice is
	// seen, since the SEI NAL precedes the AU it describes in decode order.
	var pendingRecovery *uint64

	// changeAtAU marks the index of the first access unit that must use a
	// new configuration, detected when an SPS/PPS id collides with
	// different bytes (section 4.3 NEW_DCR_REQUIRED); pendingByAU holds
	// the summary snapshot GetAccessUnit swaps to at that index.
	changeAtAU := map[int]bool{}
	pendingByAU := map[int]*sampleentry.Summary{}

	flush := func() {
		if curHasSlice {
			idx := len(aus)
			if (idx == 0 || changeAtAU[idx]) && activeSPS != nil {
				avcc := buildAVCC(activeSPS.Profile, constraintByte(activeSPS), activeSPS.LevelIDC, im.spsSet, im.ppsSet)
				s := buildSummary(activeSPS, avcc)
				s.Timescale = videoTimescale
				pendingByAU[idx] = s
			}
			aus = append(aus, cur)
			pics = append(pics, poctime.PictureDelta{DecodeIndex: len(aus) - 1, POC: cur.poc})
			cvsStart = append(cvsStart, cur.cvsStart)
		}
		cur = accessUnit{}
		curHasSlice = false
	}

	for i, nal := range nals {
		switch nal.Type {
		case NALTypeSPS:
			sps, err := ParseSPS(nal)
			if err != nil {
				im.log(imp.LogWarning, "dropping unparseable SPS: %v", err)
				continue
			}
			sps.setRaw(raws[i])
			if im.spsSet.Classify(sps.ID, sps.Raw()) == paramset.NewDCRRequired {
				changeAtAU[len(aus)] = true
			}
			spsByID[sps.ID] = sps
			im.spsSet.Insert(sps.ID, sps.Raw())
			activeSPS = sps
		case NALTypePPS:
			pps, err := ParsePPS(nal)
			if err == errFMOUnsupported {
				return nil, imp.Wrap(imp.KindPatchWelcome, err)
			}
			if err != nil {
				im.log(imp.LogWarning, "dropping unparseable PPS: %v", err)
				continue
			}
			pps.setRaw(raws[i])
			if im.ppsSet.Classify(pps.ID, pps.Raw()) == paramset.NewDCRRequired {
				changeAtAU[len(aus)] = true
			}
			ppsByID[pps.ID] = pps
			im.ppsSet.Insert(pps.ID, pps.Raw())
		case NALTypeSEI:
			if cnt, ok := recoveryPointSEI(nal.RBSP); ok {
				pendingRecovery = &cnt
			}
			cur.nals = append(cur.nals, raws[i])
		case NALTypeNonIDR, NALTypeIDR:
			sh, err := ParseSliceHeader(nal, spsByID, ppsByID)
			if err != nil {
				return nil, imp.Wrap(imp.KindInvalidData, err)
			}
			if IsNewAccessUnit(prevSH, sh, prevSPSID, ppsByID[sh.PPSID].SPSID) {
				flush()
			}
			sps := spsByID[ppsByID[sh.PPSID].SPSID]
			if nal.Type == NALTypeIDR {
				cur.sync = true
				cur.cvsStart = true
			}
			if !curHasSlice {
				cur.poc = pocState.Compute(sh, sps)
				cur.frameNum = sh.FrameNum
				cur.sliceType = sliceTypeBase(sh.SliceType)
				if sh.HasMMCO5 {
					cur.cvsStart = true
				}
				if pendingRecovery != nil {
					cur.hasRecovery = true
					cur.recoveryFrameCnt = *pendingRecovery
					pendingRecovery = nil
				}
			}
			cur.nals = append(cur.nals, raws[i])
			curHasSlice = true
			prevSH = sh
			prevSPSID = ppsByID[sh.PPSID].SPSID
		default:
			cur.nals = append(cur.nals, raws[i])
		}
	}
	flush()

	if len(aus) == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("avc: no access units assembled"))
	}
	if activeSPS == nil {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("avc: stream has no SPS"))
	}

	poctime.Dedupe(pics, cvsStart)
	for i := range aus {
		aus[i].poc = pics[i].POC
	}
	dts, cts, _, _ := poctime.Synthesize(pics)
	for decodeIdx := range aus {
		aus[decodeIdx].dts = dts[decodeIdx]
		aus[decodeIdx].cts = cts[decodeIdx]
	}

	for _, au := range aus {
		switch {
		case au.sync:
			im.stats.IDR++
		case au.sliceType == SliceTypeI:
			im.stats.I++
		case au.sliceType == SliceTypeP:
			im.stats.P++
		case au.sliceType == SliceTypeB:
			im.stats.B++
		case au.sliceType == SliceTypeSP:
			im.stats.SP++
		case au.sliceType == SliceTypeSI:
			im.stats.SI++
		default:
			im.stats.Unknown++
		}
	}
	for _, au := range aus {
		if au.poc == 0 {
			break
		}
		im.numUndecodable++
	}

	im.aus = aus
	im.timescale = videoTimescale
	im.spsSet.Prune()
	im.ppsSet.Prune()

	initialSummary := pendingByAU[0]
	delete(pendingByAU, 0)
	im.pendingByAU = pendingByAU
	im.activeSummary = initialSummary

	return im.activeSummary.Clone(), nil
}

// videoTimescale is the fixed 90 kHz clock both NAL-unit importers stamp
// their samples in.
const videoTimescale = 90000

// constraintByte packs the six constraint flags back into the
// profile_compatibility byte, the on-wire form used by avcC.
func constraintByte(s *SPS) uint8 {
	var b uint8
	if s.Constraint0 {
		b |= 0x80
	}
	if s.Constraint1 {
		b |= 0x40
	}
	if s.Constraint2 {
		b |= 0x20
	}
	if s.Constraint3 {
		b |= 0x10
	}
	if s.Constraint4 {
		b |= 0x08
	}
	if s.Constraint5 {
		b |= 0x04
	}
	return b
}

// DuplicateSummary implements importer.Importer.
func (im *Importer) DuplicateSummary(track uint32) *sampleentry.Summary {
	return im.activeSummary.Clone()
}

// GetAccessUnit implements importer.Importer.
func (im *Importer) GetAccessUnit(track uint32) (*imp.Sample, imp.Status, error) {
	if im.idx >= len(im.aus) {
		return nil, imp.StatusEOF, nil
	}
	idx := im.idx
	au := im.aus[idx]
	im.idx++

	var data []byte
	for _, n := range au.nals {
		data = append(data, lengthPrefixed(n)...)
	}

	s := &imp.Sample{
		Data:        data,
		DTS:         au.dts,
		CTS:         au.cts,
		Independent: au.sync,
	}
	if au.sync {
		s.RAFlags |= imp.RASync
	}
	if au.hasRecovery {
		s.RAFlags |= imp.RAPostRollStart
		s.PostRoll = imp.PostRoll{
			Complete:   au.recoveryFrameCnt == 0,
			Identifier: uint32(au.recoveryFrameCnt),
		}
	}

	status := imp.StatusOK
	if summary, ok := im.pendingByAU[idx]; ok {
		im.activeSummary = summary
		status = imp.StatusChange
	}
	if im.idx == len(im.aus) {
		if im.idx > 0 {
			im.lastDelta = 1
		}
	}
	return s, status, nil
}

// GetLastDelta implements importer.Importer.
func (im *Importer) GetLastDelta(track uint32) (uint32, error) {
	return im.lastDelta, nil
}

// AnalysisStats returns the picture-type tally gathered during Probe.
func (im *Importer) AnalysisStats() AnalysisStats { return im.stats }

// NumUndecodable returns the count of access units at the start of the
// stream whose POC rises from a non-zero value before the first
// zero-POC access unit; these leading pictures can't be decoded without
// reference pictures the stream never provides.
func (im *Importer) NumUndecodable() int { return im.numUndecodable }

// Cleanup implements importer.Importer.
func (im *Importer) Cleanup() error { return nil }

func (im *Importer) log(level int8, msg string, params ...interface{}) {
	if im.logger != nil {
		im.logger.Log(level, msg, params...)
	}
}
