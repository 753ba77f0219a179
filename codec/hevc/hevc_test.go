package hevc

import (
	"testing"

	"github.com/ausocean/av/codec/poctime"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func TestParseNALHeader(t *testing.T) {
	// type=19 (IDR_W_RADL) layer=0 temporal_id_plus1=1
	b0 := byte(19 << 1)
	b1 := byte(1)
	typ, layer, temporal, err := ParseNALHeader(b0, b1)
	if err != nil {
		t.Fatalf("ParseNALHeader: %v", err)
	}
	if typ != NALTypeIDRWRADL || layer != 0 || temporal != 0 {
		t.Errorf("got (%d,%d,%d), want (%d,0,0)", typ, layer, temporal, NALTypeIDRWRADL)
	}
}

func TestIRAPClassification(t *testing.T) {
	if !IsIRAP(NALTypeIDRWRADL) || !IsIRAP(NALTypeCRA) || !IsIRAP(NALTypeBLAWLP) {
		t.Error("expected IDR/CRA/BLA to classify as IRAP")
	}
	if IsIRAP(NALTypeTrailR) {
		t.Error("TRAIL_R must not classify as IRAP")
	}
	if !IsRASL(NALTypeRASLR) || !IsRADL(NALTypeRADLN) {
		t.Error("RASL/RADL classification mismatch")
	}
}

func TestLeadingNALTypeClassification(t *testing.T) {
	auIDR := accessUnit{nals: [][]byte{{NALTypeIDRWRADL << 1, 0x01}}}
	if typ := auIDR.leadingNALType(); !IsIDR(typ) {
		t.Errorf("leadingNALType() = %d, want IDR", typ)
	}
	auRASL := accessUnit{nals: [][]byte{{NALTypeRASLR << 1, 0x01}}}
	if typ := auRASL.leadingNALType(); !IsRASL(typ) {
		t.Errorf("leadingNALType() = %d, want RASL", typ)
	}
}

func TestAnalysisStatsAndNumUndecodable(t *testing.T) {
	im := &Importer{
		aus: []accessUnit{
			{nals: [][]byte{{NALTypeIDRWRADL << 1, 0x01}}, leading: imp.LeadingNone},
			{nals: [][]byte{{NALTypeRASLR << 1, 0x01}}, leading: imp.LeadingUndecodable},
			{nals: [][]byte{{NALTypeTrailR << 1, 0x01}}, leading: imp.LeadingNone},
		},
	}
	for i := range im.aus {
		typ := im.aus[i].leadingNALType()
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
		if im.aus[i].leading == imp.LeadingUndecodable {
			im.numUndecodable++
		}
	}
	want := AnalysisStats{IDR: 1, RASL: 1, Trail: 1}
	if got := im.AnalysisStats(); got != want {
		t.Errorf("AnalysisStats() = %+v, want %+v", got, want)
	}
	if got := im.NumUndecodable(); got != 1 {
		t.Errorf("NumUndecodable() = %d, want 1", got)
	}
}

func TestGetAccessUnitSetsRARAPForCRA(t *testing.T) {
	im := &Importer{aus: []accessUnit{{sync: true, rap: true}}}
	s, _, err := im.GetAccessUnit(0)
	if err != nil {
		t.Fatalf("GetAccessUnit: %v", err)
	}
	if s.RAFlags&imp.RASync == 0 {
		t.Error("expected RASync set for a CRA access unit")
	}
	if s.RAFlags&imp.RARAP == 0 {
		t.Error("expected RARAP set for an open-GOP CRA access unit")
	}
}

func TestGetAccessUnitOmitsRARAPForIDR(t *testing.T) {
	im := &Importer{aus: []accessUnit{{sync: true, rap: false}}}
	s, _, err := im.GetAccessUnit(0)
	if err != nil {
		t.Fatalf("GetAccessUnit: %v", err)
	}
	if s.RAFlags&imp.RARAP != 0 {
		t.Error("expected RARAP unset for an IDR access unit")
	}
}

func TestGetAccessUnitSetsPostRollFromRecoveryPoint(t *testing.T) {
	im := &Importer{aus: []accessUnit{{hasRecovery: true, recoveryFrameCnt: 3}}}
	s, _, err := im.GetAccessUnit(0)
	if err != nil {
		t.Fatalf("GetAccessUnit: %v", err)
	}
	if s.RAFlags&imp.RAPostRollStart == 0 {
		t.Error("expected RAPostRollStart set on a recovery-point access unit")
	}
	if s.PostRoll.Identifier != 3 {
		t.Errorf("PostRoll.Identifier = %d, want 3", s.PostRoll.Identifier)
	}
	if s.PostRoll.Complete {
		t.Error("expected PostRoll.Complete false for a non-zero recovery distance")
	}
}

func TestGetAccessUnitReportsStatusChange(t *testing.T) {
	im := &Importer{
		aus:           []accessUnit{{}, {}},
		activeSummary: &sampleentry.Summary{SampleType: "hev1"},
		pendingByAU:   map[int]*sampleentry.Summary{1: {SampleType: "hev1-new"}},
	}
	_, status, err := im.GetAccessUnit(0)
	if err != nil || status != imp.StatusOK {
		t.Fatalf("au 0: status=%v err=%v, want StatusOK", status, err)
	}
	_, status, err = im.GetAccessUnit(0)
	if err != nil || status != imp.StatusChange {
		t.Fatalf("au 1: status=%v err=%v, want StatusChange", status, err)
	}
	if im.activeSummary.SampleType != "hev1-new" {
		t.Errorf("activeSummary not swapped in: got %q", im.activeSummary.SampleType)
	}
}

func TestRecoveryPointSEIParsesFrameCnt(t *testing.T) {
	// payloadType=6, payloadSize=1, then recovery_poc_cnt=2 as se(v):
	// se(v)=+2 maps to codeNum=3, exp-golomb-coded as "00100" (2 leading
	// zero bits, a 1 bit, then a 2-bit tail of 0), left-padded into a byte.
	rbsp := []byte{0x06, 0x01, 0b00100_000}
	cnt, ok := recoveryPointSEI(rbsp)
	if !ok {
		t.Fatal("expected recovery_point message to be found")
	}
	if cnt != 2 {
		t.Errorf("recovery frame count = %d, want 2", cnt)
	}
}

func TestSynthesizeTimestampsDetectsReorderingHEVC(t *testing.T) {
	// Decode order 0,1,2,3 with POCs 0,3,1,2, as a hierarchical-B GOP might
	// produce with a CRA at the start of an open GOP.
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

func TestPOCStateNoRaslOutputAtFirstPicture(t *testing.T) {
	var st POCState
	sps := &SPS{MaxPicOrderCntLsb: 256}
	_, noRasl := st.Compute(&SliceSegmentHeader{NALType: NALTypeCRA}, sps)
	if !noRasl {
		t.Error("expected NoRaslOutputFlag at the first picture of a stream")
	}
	_, noRasl2 := st.Compute(&SliceSegmentHeader{NALType: NALTypeTrailR, PicOrderCntLsb: 1}, sps)
	if noRasl2 {
		t.Error("expected NoRaslOutputFlag false for a subsequent non-IRAP picture")
	}
}
