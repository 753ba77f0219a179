package als

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
)

// buildALS constructs a minimal ALSSpecificConfig (mono, 16-bit, 44100 Hz,
// frame_length=2047+1=2048, random_access=1, ra_flag=2, no optional
// sections) followed by a ra_unit_size table and the matching frame
// payloads. samples=3000 spans two frames (2048 + 952).
func buildALS() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x41, 0x4c, 0x53, 0x00}) // "ALS\0"
	writeBE32(&b, 44100)                    // samp_freq
	writeBE32(&b, 3000)                     // samples
	writeBE16(&b, 0)                        // channels-1 = 0 (mono)
	b.WriteByte(1 << 2)                     // file_type/resolution/floating/msb_first: resolution idx=1 -> 16 bit
	writeBE16(&b, 2047)                     // frame_length-1
	b.WriteByte(1)                          // random_access = 1
	writeBE32(&b, uint32(2)<<30)            // ra_flag=2, all other flag bits 0

	// ra_unit_size table: two frames, sizes 10 and 8 bytes.
	writeBE32(&b, 10)
	writeBE32(&b, 8)
	b.Write(bytes.Repeat([]byte{0x11}, 10))
	b.Write(bytes.Repeat([]byte{0x22}, 8))
	return b.Bytes()
}

func writeBE32(b *bytes.Buffer, v uint32) {
	b.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func writeBE16(b *bytes.Buffer, v uint16) {
	b.Write([]byte{byte(v >> 8), byte(v)})
}

func TestProbeTwoFrames(t *testing.T) {
	data := buildALS()
	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}

	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Channels != 1 {
		t.Errorf("Channels = %d, want 1", summary.Channels)
	}
	if summary.Frequency != 44100 {
		t.Errorf("Frequency = %d, want 44100", summary.Frequency)
	}
	if len(im.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(im.Frames))
	}
	if im.Frames[1].SamplesInFrame != 3000-2048 {
		t.Errorf("second frame samples = %d, want %d", im.Frames[1].SamplesInFrame, 3000-2048)
	}
}

func TestProbeRejectsBadMagic(t *testing.T) {
	bs := bytestream.New(bytes.NewReader(make([]byte, 16)), 32)
	im := &Importer{src: bs}
	if _, err := im.Probe(); err == nil {
		t.Error("expected error for missing ALS magic")
	}
}
