/*
NAME
  poc.go

DESCRIPTION
  poc.go implements access-unit boundary detection (Rec. ITU-T H.264
  section 7.4.1.2.4) and picture-order-count reconstruction for
  pic_order_cnt_type 0, 1 and 2 (section 8.2.1), plus the two-pass
  timestamp synthesis described in spec.md section 4.5: picture order
  counts are resolved in a first pass over an entire coded video
  sequence, then mapped to monotone decode/composition timestamps in a
  second pass.

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

// IsNewAccessUnit implements the subset of the section 7.4.1.2.4 rules
// this importer needs to detect that cur begins a new access unit
// relative to prev (the previous slice header seen, in the same NAL
// stream). A nil prev always signals a new access unit.
func IsNewAccessUnit(prev, cur *SliceHeader, prevSPSID, curSPSID int) bool {
	if prev == nil {
		return true
	}
	if cur.FrameNum != prev.FrameNum {
		return true
	}
	if cur.PPSID != prev.PPSID {
		return true
	}
	if cur.FieldPicFlag != prev.FieldPicFlag {
		return true
	}
	if cur.FieldPicFlag && cur.BottomFieldFlag != prev.BottomFieldFlag {
		return true
	}
	if (cur.NALRefIdc == 0) != (prev.NALRefIdc == 0) {
		return true
	}
	if prevSPSID != curSPSID {
		// pic_order_cnt_type differs implicitly via a new SPS; treat any
		// SPS change across slices as a new AU to be conservative.
		return true
	}
	if cur.PicOrderCntLsb != prev.PicOrderCntLsb || cur.DeltaPicOrderCntBottom != prev.DeltaPicOrderCntBottom {
		return true
	}
	if cur.DeltaPicOrderCnt != prev.DeltaPicOrderCnt {
		return true
	}
	if (cur.NALType == NALTypeIDR) != (prev.NALType == NALTypeIDR) {
		return true
	}
	if cur.NALType == NALTypeIDR && cur.IDRPicID != prev.IDRPicID {
		return true
	}
	return false
}

// POCState carries the running state needed to reconstruct picture order
// count across consecutive access units of one coded video sequence,
// reset at every IDR (or MMCO-5 picture, which re-bases numbering without
// starting a new sequence).
type POCState struct {
	prevPicOrderCntMsb    int64
	prevPicOrderCntLsb    int64
	prevFrameNum          uint64
	prevFrameNumOffset    int64
	prevFrameNumOffsetSet bool
}

// Compute returns the picture order count of the access unit whose first
// slice header is h, updating state for the next call. sps is the active
// sequence parameter set (by pic_order_cnt_type).
func (st *POCState) Compute(h *SliceHeader, sps *SPS) int64 {
	switch sps.PicOrderCntType {
	case 0:
		return st.computeType0(h, sps)
	case 1:
		return st.computeType1(h, sps)
	default:
		return st.computeType2(h, sps)
	}
}

func (st *POCState) computeType0(h *SliceHeader, sps *SPS) int64 {
	maxLsb := int64(sps.MaxPicOrderCntLsb)
	lsb := int64(h.PicOrderCntLsb)

	if h.NALType == NALTypeIDR {
		st.prevPicOrderCntMsb = 0
		st.prevPicOrderCntLsb = 0
	}

	msb := st.prevPicOrderCntMsb
	switch {
	case lsb < st.prevPicOrderCntLsb && st.prevPicOrderCntLsb-lsb >= maxLsb/2:
		msb = st.prevPicOrderCntMsb + maxLsb
	case lsb > st.prevPicOrderCntLsb && lsb-st.prevPicOrderCntLsb > maxLsb/2:
		msb = st.prevPicOrderCntMsb - maxLsb
	}

	topFOC := msb + lsb
	bottomFOC := topFOC
	if !h.FieldPicFlag {
		bottomFOC = topFOC + h.DeltaPicOrderCntBottom
	}

	if h.NALRefIdc != 0 {
		st.prevPicOrderCntMsb = msb
		st.prevPicOrderCntLsb = lsb
	}
	if h.HasMMCO5 {
		st.prevPicOrderCntMsb = 0
		st.prevPicOrderCntLsb = topFOC
		if !h.FieldPicFlag {
			st.prevPicOrderCntLsb = 0
		}
	}

	if topFOC < bottomFOC {
		return topFOC
	}
	return bottomFOC
}

func (st *POCState) computeType1(h *SliceHeader, sps *SPS) int64 {
	var frameNumOffset int64
	switch {
	case h.NALType == NALTypeIDR:
		frameNumOffset = 0
	case st.prevFrameNum > h.FrameNum:
		frameNumOffset = st.prevFrameNumOffset + int64(sps.MaxFrameNum)
	default:
		frameNumOffset = st.prevFrameNumOffset
	}

	absFrameNum := frameNumOffset + int64(h.FrameNum)
	if sps.NumRefFramesInPicOrderCntCycle == 0 {
		absFrameNum = 0
	} else if h.NALRefIdc == 0 && absFrameNum > 0 {
		absFrameNum--
	}

	var expectedDeltaPerCycle, expectedPOC int64
	expectedDeltaPerCycle = sps.ExpectedDeltaPerPicOrderCntCycle
	if absFrameNum > 0 {
		cycleCnt := (absFrameNum - 1) / int64(sps.NumRefFramesInPicOrderCntCycle)
		frameNumInCycle := (absFrameNum - 1) % int64(sps.NumRefFramesInPicOrderCntCycle)
		expectedPOC = cycleCnt * expectedDeltaPerCycle
		for i := int64(0); i <= frameNumInCycle; i++ {
			if int(i) < len(sps.OffsetForRefFrame) {
				expectedPOC += sps.OffsetForRefFrame[i]
			}
		}
	}
	if h.NALRefIdc == 0 {
		expectedPOC += sps.OffsetForNonRefPic
	}

	topFOC := expectedPOC + h.DeltaPicOrderCnt[0]
	bottomFOC := topFOC + sps.OffsetForTopToBottomField + h.DeltaPicOrderCnt[1]

	st.prevFrameNum = h.FrameNum
	st.prevFrameNumOffset = frameNumOffset

	if h.HasMMCO5 {
		st.prevFrameNumOffset = 0
	}

	if topFOC < bottomFOC {
		return topFOC
	}
	return bottomFOC
}

func (st *POCState) computeType2(h *SliceHeader, sps *SPS) int64 {
	var frameNumOffset int64
	switch {
	case h.NALType == NALTypeIDR:
		frameNumOffset = 0
	case st.prevFrameNum > h.FrameNum:
		frameNumOffset = st.prevFrameNumOffset + int64(sps.MaxFrameNum)
	default:
		frameNumOffset = st.prevFrameNumOffset
	}
	st.prevFrameNum = h.FrameNum
	st.prevFrameNumOffset = frameNumOffset
	if h.NALType == NALTypeIDR {
		return 0
	}
	tempPOC := 2 * (frameNumOffset + int64(h.FrameNum))
	if h.NALRefIdc == 0 {
		tempPOC--
	}
	if h.HasMMCO5 {
		st.prevFrameNumOffset = 0
	}
	return tempPOC
}

// PictureDelta and the dedup/synthesis passes themselves live in
// codec/poctime, shared with codec/hevc.
