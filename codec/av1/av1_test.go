package av1

import (
	"testing"

	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/av/sampleentry"
)

func TestReducedRatioMatchesRenderResizeExample(t *testing.T) {
	// spec scenario: seq (coded) dims 1280x720, running max render size
	// grows to 1920x1080; PAR = 1920*720 : 1280*1080, reduced to 1:1.
	num, den := reducedRatio(1920*720, 1280*1080)
	if num != 1 || den != 1 {
		t.Errorf("reducedRatio = %d:%d, want 1:1", num, den)
	}
}

func TestReducedRatioDegenerate(t *testing.T) {
	if num, den := reducedRatio(0, 100); num != 1 || den != 1 {
		t.Errorf("reducedRatio(0, 100) = %d:%d, want 1:1", num, den)
	}
}

func TestGCD(t *testing.T) {
	if g := gcd(1382400, 1382400); g != 1382400 {
		t.Errorf("gcd(1382400, 1382400) = %d, want 1382400", g)
	}
	if g := gcd(48, 18); g != 6 {
		t.Errorf("gcd(48, 18) = %d, want 6", g)
	}
}

func TestGetAccessUnitReportsStatusChangeOnRenderResize(t *testing.T) {
	im := &Importer{
		aus:           []accessUnit{{renderWidth: 1280, renderHeight: 720}, {renderWidth: 1920, renderHeight: 1080}},
		activeSummary: &sampleentry.Summary{ParNum: 1, ParDen: 1},
		pendingByAU:   map[int]*sampleentry.Summary{1: {ParNum: 1, ParDen: 1}},
	}
	_, status, err := im.GetAccessUnit(0)
	if err != nil || status != imp.StatusOK {
		t.Fatalf("au 0: status=%v err=%v, want StatusOK", status, err)
	}
	_, status, err = im.GetAccessUnit(0)
	if err != nil || status != imp.StatusChange {
		t.Fatalf("au 1: status=%v err=%v, want StatusChange", status, err)
	}
}
