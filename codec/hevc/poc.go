/*
NAME
  poc.go

DESCRIPTION
  poc.go reconstructs HEVC picture order count (Rec. ITU-T H.265 section
  8.3.1) and applies the NoRaslOutputFlag rule that governs RASL
  disposal at the first IRAP of a stream or after a BLA.

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

// POCState carries the running PicOrderCntMsb needed to reconstruct POC
// across an HEVC coded video sequence.
type POCState struct {
	prevPicOrderCntMsb int64
	prevPicOrderCntLsb int64
	seenFirstPicture   bool
}

// Compute returns the picture order count of the picture whose slice
// segment header is h, and reports NoRaslOutputFlag for this picture
// (section 8.1.3): true at the first picture of the stream and at every
// BLA/IDR, which makes any associated RASL picture undecodable.
func (st *POCState) Compute(h *SliceSegmentHeader, sps *SPS) (poc int64, noRaslOutput bool) {
	irap := IsIRAP(h.NALType)
	noRaslOutput = !st.seenFirstPicture || IsBLA(h.NALType) || IsIDR(h.NALType)
	st.seenFirstPicture = true

	if IsIDR(h.NALType) {
		st.prevPicOrderCntMsb = 0
		st.prevPicOrderCntLsb = 0
		return 0, noRaslOutput
	}

	maxLsb := int64(sps.MaxPicOrderCntLsb)
	lsb := int64(h.PicOrderCntLsb)

	msb := st.prevPicOrderCntMsb
	if irap && noRaslOutput {
		msb = 0
	} else {
		switch {
		case lsb < st.prevPicOrderCntLsb && st.prevPicOrderCntLsb-lsb >= maxLsb/2:
			msb = st.prevPicOrderCntMsb + maxLsb
		case lsb > st.prevPicOrderCntLsb && lsb-st.prevPicOrderCntLsb > maxLsb/2:
			msb = st.prevPicOrderCntMsb - maxLsb
		}
	}

	poc = msb + lsb
	st.prevPicOrderCntMsb = msb
	st.prevPicOrderCntLsb = lsb
	return poc, noRaslOutput
}
