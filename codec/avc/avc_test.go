package avc

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/av/codec/poctime"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func TestParseNALHeader(t *testing.T) {
	cases := []struct {
		name    string
		b       byte
		wantErr bool
	}{
		{"idr ref", 0x65, false},
		{"idr noref", 0x05, true},
		{"sei noref", 0x06, false},
		{"sei withref", 0x46, true},
		{"forbidden bit", 0x85, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, _, err := ParseNALHeader(c.b)
			if (err != nil) != c.wantErr {
				t.Errorf("ParseNALHeader(0x%02x) error = %v, wantErr %v", c.b, err, c.wantErr)
			}
		})
	}
}

func TestLengthPrefixRoundTrip(t *testing.T) {
	nal1 := []byte{0x67, 0x01, 0x02, 0x03}
	nal2 := []byte{0x68, 0x04, 0x05}
	var au []byte
	au = append(au, lengthPrefixed(nal1)...)
	au = append(au, lengthPrefixed(nal2)...)

	got, err := splitNALs(au)
	if err != nil {
		t.Fatalf("splitNALs: %v", err)
	}
	want := [][]byte{nal1, nal2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitNALs mismatch (-want +got):\n%s", diff)
	}
}

func TestNALScannerTrailingZeroAttribution(t *testing.T) {
	// Stream: start(3) NAL-A(2 bytes) zero start(3) NAL-B(2 bytes).
	// The zero byte before the second start code must NOT be part of
	// NAL-A's payload; it promotes the second start code to a long one.
	stream := []byte{0x00, 0x00, 0x01, 0xAA, 0xBB, 0x00, 0x00, 0x00, 0x01, 0xCC, 0xDD}
	bs := newTestByteStream(stream)
	sc := newNALScanner(bs)

	first, err := sc.Next()
	if err != nil {
		t.Fatalf("Next (1): %v", err)
	}
	if diff := cmp.Diff([]byte{0xAA, 0xBB}, first.ebsp); diff != "" {
		t.Errorf("first NAL payload mismatch (-want +got):\n%s", diff)
	}

	second, err := sc.Next()
	if err != nil {
		t.Fatalf("Next (2): %v", err)
	}
	if diff := cmp.Diff([]byte{0xCC, 0xDD}, second.ebsp); diff != "" {
		t.Errorf("second NAL payload mismatch (-want +got):\n%s", diff)
	}
	if !second.longStart {
		t.Error("second NAL should be flagged as introduced by a long start code")
	}
}

func TestSliceTypeBase(t *testing.T) {
	for _, tc := range []struct{ in, want uint64 }{
		{0, SliceTypeP}, {5, SliceTypeP},
		{2, SliceTypeI}, {7, SliceTypeI},
	} {
		if got := sliceTypeBase(tc.in); got != tc.want {
			t.Errorf("sliceTypeBase(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSynthesizeTimestampsDetectsReordering(t *testing.T) {
	// Decode order 0,1,2,3 with POCs 0,3,1,2 (typical IBBP pattern).
	pics := []poctime.PictureDelta{{DecodeIndex: 0, POC: 0}, {DecodeIndex: 1, POC: 3}, {DecodeIndex: 2, POC: 1}, {DecodeIndex: 3, POC: 2}}
	dts, cts, reordered, maxDelay := poctime.Synthesize(pics)
	if !reordered {
		t.Error("expected reordering to be detected")
	}
	if maxDelay == 0 {
		t.Error("expected a non-zero composition delay for a reordered sequence")
	}
	for i := range dts {
		if dts[i] > cts[i] {
			t.Errorf("au %d: dts %d > cts %d, violates dts[i] <= cts[i]", i, dts[i], cts[i])
		}
		if i > 0 && dts[i] <= dts[i-1] {
			t.Errorf("au %d: dts %d did not strictly increase from dts %d", i, dts[i], dts[i-1])
		}
	}
}

func TestSynthesizeTimestampsNoReordering(t *testing.T) {
	pics := []poctime.PictureDelta{{DecodeIndex: 0, POC: 0}, {DecodeIndex: 1, POC: 2}, {DecodeIndex: 2, POC: 4}}
	dts, cts, reordered, maxDelay := poctime.Synthesize(pics)
	if reordered {
		t.Error("expected no reordering for a monotone POC sequence")
	}
	if maxDelay != 0 {
		t.Errorf("maxDelay = %d, want 0", maxDelay)
	}
	if diff := cmp.Diff([]int64{0, 2, 4}, dts); diff != "" {
		t.Errorf("dts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{0, 2, 4}, cts); diff != "" {
		t.Errorf("cts mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisStatsAndNumUndecodable(t *testing.T) {
	im := &Importer{}
	im.stats = AnalysisStats{IDR: 1, P: 2, B: 1}
	im.numUndecodable = 2
	if got := im.AnalysisStats(); got != (AnalysisStats{IDR: 1, P: 2, B: 1}) {
		t.Errorf("AnalysisStats() = %+v, want IDR:1 P:2 B:1", got)
	}
	if got := im.NumUndecodable(); got != 2 {
		t.Errorf("NumUndecodable() = %d, want 2", got)
	}
}

func TestGetAccessUnitSetsPostRollFromRecoveryPoint(t *testing.T) {
	im := &Importer{aus: []accessUnit{{hasRecovery: true, recoveryFrameCnt: 0}}}
	s, _, err := im.GetAccessUnit(0)
	if err != nil {
		t.Fatalf("GetAccessUnit: %v", err)
	}
	if s.RAFlags&imp.RAPostRollStart == 0 {
		t.Error("expected RAPostRollStart set on a recovery-point access unit")
	}
	if !s.PostRoll.Complete {
		t.Error("expected PostRoll.Complete true for a zero recovery distance")
	}
}

func TestGetAccessUnitReportsStatusChange(t *testing.T) {
	im := &Importer{
		aus:           []accessUnit{{}, {}},
		activeSummary: &sampleentry.Summary{SampleType: "avc1"},
		pendingByAU:   map[int]*sampleentry.Summary{1: {SampleType: "avc1-new"}},
	}
	_, status, err := im.GetAccessUnit(0)
	if err != nil || status != imp.StatusOK {
		t.Fatalf("au 0: status=%v err=%v, want StatusOK", status, err)
	}
	_, status, err = im.GetAccessUnit(0)
	if err != nil || status != imp.StatusChange {
		t.Fatalf("au 1: status=%v err=%v, want StatusChange", status, err)
	}
	if im.activeSummary.SampleType != "avc1-new" {
		t.Errorf("activeSummary not swapped in: got %q", im.activeSummary.SampleType)
	}
}

func TestRecoveryPointSEIParsesFrameCnt(t *testing.T) {
	// payloadType=6, payloadSize=1, then recovery_frame_cnt=5 as ue(v):
	// codeNum 5 is exp-golomb-coded as "00110" (2 leading zero bits, a 1
	// bit, then a 2-bit tail of 2), left-padded into a byte.
	rbsp := []byte{0x06, 0x01, 0b00110_000}
	cnt, ok := recoveryPointSEI(rbsp)
	if !ok {
		t.Fatal("expected recovery_point message to be found")
	}
	if cnt != 5 {
		t.Errorf("recovery frame count = %d, want 5", cnt)
	}
}

func TestDedupePOCAcrossCVS(t *testing.T) {
	pics := []poctime.PictureDelta{{DecodeIndex: 0, POC: 0}, {DecodeIndex: 1, POC: 2}, {DecodeIndex: 2, POC: 0}, {DecodeIndex: 3, POC: 2}}
	cvsStart := []bool{true, false, true, false}
	poctime.Dedupe(pics, cvsStart)
	want := []int64{0, 2, 4, 6}
	for i, w := range want {
		if pics[i].POC != w {
			t.Errorf("pics[%d].POC = %d, want %d", i, pics[i].POC, w)
		}
	}
}
