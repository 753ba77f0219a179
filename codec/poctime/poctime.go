/*
NAME
  poctime.go

DESCRIPTION
  poctime.go implements the two-pass timestamp synthesis shared by every
  picture-order-count-based video importer (spec.md section 4.5): once a
  coded video sequence's picture order counts have been reconstructed in
  decode order, this package deduplicates them across sequence
  boundaries and derives a composition-order rank usable as a CTS offset.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package poctime provides the picture-order-count-driven timestamp
// synthesis shared by the H.264 and H.265 importers.
package poctime

import "sort"

// PictureDelta is one access unit's decode-order index paired with its
// reconstructed picture order count.
type PictureDelta struct {
	DecodeIndex int
	POC         int64
}

// Synthesize implements spec.md section 4.5 step 3's two-pass timestamp
// synthesis: given access units in decode order with their picture order
// counts (already deduplicated within one coded video sequence via
// Dedupe), it returns real CTS values (cumulative POC deltas, offset by
// max_composition_delay pictures so no AU's CTS precedes its own decode
// tick) together with a DTS sequence that simply advances one tick per
// decoded AU, and reports whether the sequence required reordering
// (sorting by POC changed AU order). Without reordering, DTS and CTS are
// both the POC values and maxDelay is 0.
//
// The offset is what keeps dts[i] <= cts[i]: without it, an AU decoded
// late but displayed early (a B picture's anchor) would need a CTS
// smaller than its own decode tick. Shifting every CTS up by the
// buffering delay removes that possibility while leaving DTS a plain
// decode-order clock, matching how a real decoder's output buffer
// delays composition rather than front-loading decode.
func Synthesize(pics []PictureDelta) (dts, cts []int64, reordered bool, maxDelay int) {
	n := len(pics)
	cts = make([]int64, n)
	dts = make([]int64, n)
	if n == 0 {
		return dts, cts, false, 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pics[order[a]].POC < pics[order[b]].POC
	})

	rank := make([]int, n)
	for displayPos, decodeIdx := range order {
		rank[decodeIdx] = displayPos
		if displayPos != decodeIdx {
			reordered = true
		}
	}

	if !reordered {
		for i := range pics {
			dts[i] = pics[i].POC
			cts[i] = pics[i].POC
		}
		return dts, cts, false, 0
	}

	// max_composition_delay: the largest number of decode positions any
	// AU's display rank reaches ahead of its decode index, i.e. how many
	// pictures must already be buffered before that AU can be released
	// for composition.
	for i, r := range rank {
		if d := r - i; d > maxDelay {
			maxDelay = d
		}
	}

	tick := minTick(pics)
	offset := int64(maxDelay) * tick
	// The reach-back distance bounds how far display can run ahead of
	// decode, but not the opposite case (a picture decoded late whose POC
	// still sits behind its own decode tick); widen the offset for that
	// case too so dts[i] <= cts[i] holds for every AU, not just the ones
	// max_composition_delay was derived from.
	for i := range pics {
		if need := int64(i)*tick - pics[i].POC; need > offset {
			offset = need
		}
	}
	for i := range pics {
		dts[i] = int64(i) * tick
		cts[i] = pics[i].POC + offset
	}
	return dts, cts, reordered, maxDelay
}

// minTick returns the smallest positive gap between distinct POC values,
// the native duration of one decode tick, used to space DTS and to scale
// the composition-delay offset added to CTS. Returns 1 if no positive
// gap exists.
func minTick(pics []PictureDelta) int64 {
	sorted := make([]int64, len(pics))
	for i, p := range pics {
		sorted[i] = p.POC
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
	min := int64(0)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > 0 && (min == 0 || d < min) {
			min = d
		}
	}
	if min == 0 {
		return 1
	}
	return min
}

// Dedupe rewrites a POC sequence (one per access unit, decode order) so
// that picture order counts reset at a coded-video-sequence boundary
// (cvsStart[i] true) continue increasing across the boundary rather than
// colliding with earlier values, per spec.md section 8 invariant 6
// (non-negative, collision-free POC after dedup).
func Dedupe(pics []PictureDelta, cvsStart []bool) {
	var base, runningMax int64
	for i := range pics {
		if cvsStart[i] && i > 0 {
			base = runningMax + 2
		}
		pics[i].POC += base
		if pics[i].POC > runningMax {
			runningMax = pics[i].POC
		}
	}
}
