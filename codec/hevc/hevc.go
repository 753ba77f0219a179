/*
NAME
  hevc.go

DESCRIPTION
  hevc.go implements the H.265/HEVC importer: NAL scanning, parameter-set
  registration, access-unit assembly (tile-scan AU boundary: a new AU
  starts at every first_slice_segment_in_pic_flag-set slice), POC
  reconstruction, and hvcC/Summary construction.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package hevc

import (
	"encoding/binary"
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
		Name:       "h265",
		Detectable: true,
		New: func(src *bytestream.ByteStream, logger imp.Logger) imp.Importer {
			return &Importer{src: src, logger: logger}
		},
	})
}

type accessUnit struct {
	nals     [][]byte
	sync     bool
	rap      bool // non-IDR IRAP (CRA, or BLA with leading pictures): open-GOP random access.
	leading  imp.LeadingType
	poc      int64
	dts, cts int64

	// hasRecovery and recoveryFrameCnt come from a recovery_point SEI
	// message (section D.2.7) prefixing this AU.
	hasRecovery      bool
	recoveryFrameCnt uint64
}

// AnalysisStats tallies the picture types seen during Probe's single pass
// over the stream, bucketed by the leading slice NAL's type rather than
// by slice_type (HEVC's importer never retains slice_type, only the AU
// boundary and IRAP/RASL/RADL classification it already needs for POC and
// leading-picture handling).
type AnalysisStats struct {
	IDR, CRA, BLA, Trail, RASL, RADL, Unknown int
}

// Importer implements importer.Importer for Annex-B H.265 elementary
// streams.
type Importer struct {
	src    *bytestream.ByteStream
	logger imp.Logger

	aus []accessUnit
	idx int

	activeSummary *sampleentry.Summary

	// pendingByAU maps the index of the first access unit of a new
	// configuration (a VPS/SPS/PPS id collision with different bytes,
	// section 4.3's NEW_DCR_REQUIRED) to the summary that becomes active
	// from that AU on; GetAccessUnit swaps activeSummary in and reports
	// StatusChange when it reaches one of these indices.
	pendingByAU map[int]*sampleentry.Summary

	vpsSet, spsSet, ppsSet *paramset.Set
	lastDelta              uint32

	stats          AnalysisStats
	numUndecodable int
}

func (im *Importer) Name() string       { return "h265" }
func (im *Importer) TrackCount() uint32 { return 1 }

func (im *Importer) Probe() (*sampleentry.Summary, error) {
	im.vpsSet = paramset.NewSet()
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
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("hevc: no NAL units found"))
	}

	var aus []accessUnit
	var cur accessUnit
	var curHasSlice bool
	var pocState POCState
	var activeSPS *SPS
	var pics []poctime.PictureDelta
	var cvsStart []bool
	// irapNoRaslOutput is the NoRaslOutputFlag of the latest IRAP picture,
	// which decides whether the RASL pictures associated with it are
	// undecodable.
	var irapNoRaslOutput bool

	// pendingRecovery holds a recovery_frame_cnt parsed from a prefix
	// recovery_point SEI until the following access unit's first slice
	// segment is seen, since the SEI NAL precedes the AU it describes.
	var pendingRecovery *uint64

	// changeAtAU marks the index of the first access unit that must use a
	// new configuration, detected when a VPS/SPS/PPS id collides with
	// different bytes (section 4.3 NEW_DCR_REQUIRED); pendingByAU holds
	// the summary snapshot GetAccessUnit swaps to at that index.
	changeAtAU := map[int]bool{}
	pendingByAU := map[int]*sampleentry.Summary{}

	flush := func() {
		if curHasSlice {
			idx := len(aus)
			if (idx == 0 || changeAtAU[idx]) && activeSPS != nil {
				hvcc := buildHVCC(activeSPS.PTL, 0, im.vpsSet, im.spsSet, im.ppsSet)
				hvcc[16] |= byte(activeSPS.ChromaFormatIDC & 0x3) // chromaFormat
				s := buildSummary(activeSPS, hvcc)
				s.Timescale = videoTimescale
				pendingByAU[idx] = s
			}
			aus = append(aus, cur)
			pics = append(pics, poctime.PictureDelta{DecodeIndex: len(aus) - 1, POC: cur.poc})
			cvsStart = append(cvsStart, IsIDR(aus[len(aus)-1].leadingNALType()))
		}
		cur = accessUnit{}
		curHasSlice = false
	}

	for i, nal := range nals {
		switch nal.Type {
		case NALTypeVPS:
			if im.vpsSet.Classify(0, raws[i]) == paramset.NewDCRRequired {
				changeAtAU[len(aus)] = true
			}
			im.vpsSet.Insert(0, raws[i])
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
		case NALTypePrefixSEI, NALTypeSuffixSEI:
			if cnt, ok := recoveryPointSEI(nal.RBSP); ok {
				pendingRecovery = &cnt
			}
			cur.nals = append(cur.nals, raws[i])
		default:
			if IsSlice(nal.Type) {
				sh, err := ParseSliceSegmentHeader(nal, spsByID, ppsByID)
				if err != nil {
					return nil, imp.Wrap(imp.KindInvalidData, err)
				}
				if sh.FirstSliceSegmentInPicFlag {
					flush()
				}
				sps := spsByID[ppsByID[sh.PPSID].SPSID]
				if !curHasSlice {
					poc, noRaslOutput := pocState.Compute(sh, sps)
					if IsIRAP(nal.Type) {
						irapNoRaslOutput = noRaslOutput
					}
					cur.poc = poc
					cur.sync = IsIRAP(nal.Type)
					cur.rap = IsIRAP(nal.Type) && !IsIDR(nal.Type)
					if IsRASL(nal.Type) && irapNoRaslOutput {
						cur.leading = imp.LeadingUndecodable
					} else if IsRASL(nal.Type) {
						cur.leading = imp.LeadingDecodable
					} else if IsRADL(nal.Type) {
						cur.leading = imp.LeadingDecodable
					}
					if pendingRecovery != nil {
						cur.hasRecovery = true
						cur.recoveryFrameCnt = *pendingRecovery
						pendingRecovery = nil
					}
				}
				cur.nals = append(cur.nals, raws[i])
				curHasSlice = true
			} else {
				cur.nals = append(cur.nals, raws[i])
			}
		}
	}
	flush()

	if len(aus) == 0 {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("hevc: no access units assembled"))
	}
	if activeSPS == nil {
		return nil, imp.Wrap(imp.KindInvalidData, errors.New("hevc: stream has no SPS"))
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

	for i := range aus {
		typ := aus[i].leadingNALType()
		switch {
		case IsIDR(typ):
			im.stats.IDR++
		case IsBLA(typ):
			im.stats.BLA++
		case typ == NALTypeCRA:
			im.stats.CRA++
		case IsRASL(typ):
			im.stats.RASL++
		case IsRADL(typ):
			im.stats.RADL++
		case IsSlice(typ):
			im.stats.Trail++
		default:
			im.stats.Unknown++
		}
		if aus[i].leading == imp.LeadingUndecodable {
			im.numUndecodable++
		}
	}

	im.aus = aus
	im.vpsSet.Prune()
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

func (au accessUnit) leadingNALType() uint8 {
	for _, n := range au.nals {
		if len(n) >= 2 {
			typ := (n[0] >> 1) & 0x3f
			if IsSlice(typ) {
				return typ
			}
		}
	}
	return 0
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

	var data []byte
	for _, n := range au.nals {
		var lp [4]byte
		binary.BigEndian.PutUint32(lp[:], uint32(len(n)))
		data = append(data, lp[:]...)
		data = append(data, n...)
	}

	s := &imp.Sample{
		Data:        data,
		DTS:         au.dts,
		CTS:         au.cts,
		Independent: au.sync,
		Leading:     au.leading,
	}
	if au.sync {
		s.RAFlags |= imp.RASync
	}
	if au.rap {
		s.RAFlags |= imp.RARAP
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
	return s, status, nil
}

func (im *Importer) GetLastDelta(track uint32) (uint32, error) { return im.lastDelta, nil }
func (im *Importer) Cleanup() error                            { return nil }

// AnalysisStats returns the picture-type tally gathered during Probe.
func (im *Importer) AnalysisStats() AnalysisStats { return im.stats }

// NumUndecodable returns the count of access units whose leading picture
// is a RASL picture following a BLA or the first CRA/IDR of the stream
// (NoRaslOutputFlag), i.e. ones the decoder has no reference pictures for.
func (im *Importer) NumUndecodable() int { return im.numUndecodable }

func (im *Importer) log(level int8, msg string, params ...interface{}) {
	if im.logger != nil {
		im.logger.Log(level, msg, params...)
	}
}
