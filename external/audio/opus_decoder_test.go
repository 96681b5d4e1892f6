//go:build opus

package audio

import "testing"

func TestEncodePCM_LittleEndian(t *testing.T) {
	got := encodePCM([]int16{1, -2, 0x0102}, 3)
	want := []byte{0x01, 0x00, 0xfe, 0xff, 0x02, 0x01}
	if string(got) != string(want) {
		t.Fatalf("unexpected pcm bytes: %v", got)
	}
	if len(encodePCM([]int16{1}, 4)) != 2 {
		t.Fatal("encodePCM must clamp to the decoded sample count")
	}
}

func TestOpusDecoder_IgnoresEmptyPackets(t *testing.T) {
	d, err := NewOpusDecoder()
	if err != nil {
		t.Fatalf("NewOpusDecoder returned error: %v", err)
	}
	defer d.Close()
	pcm, err := d.Decode(nil)
	if err != nil || pcm != nil {
		t.Fatalf("expected empty result, got %v, %v", pcm, err)
	}
}
