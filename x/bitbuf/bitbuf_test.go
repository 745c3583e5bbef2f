package bitbuf

import "testing"

func TestMutViewSetBitRoundTrip(t *testing.T) {
	buf := make([]byte, 1)
	mv := NewMutView(buf)

	if err := mv.SetBit(3, true); err != nil {
		t.Fatalf("SetBit: %v", err)
	}
	if buf[0] != 0b0000_1000 {
		t.Fatalf("buf[0] = %08b, want 00001000", buf[0])
	}

	got, err := mv.Bit(3)
	if err != nil {
		t.Fatalf("Bit: %v", err)
	}
	if !got {
		t.Fatalf("Bit(3) = false, want true")
	}

	if err := mv.SetBit(3, false); err != nil {
		t.Fatalf("SetBit clear: %v", err)
	}
	if buf[0] != 0 {
		t.Fatalf("buf[0] = %08b, want 00000000", buf[0])
	}
}

func TestViewOutOfRange(t *testing.T) {
	v := NewView(make([]byte, 1))
	if _, err := v.Bit(8); err == nil {
		t.Fatalf("Bit(8) on a 1-byte view should error")
	}
}

func TestUint8RequiresAlignment(t *testing.T) {
	v := NewView(make([]byte, 2))
	if _, err := v.Uint8(3); err == nil {
		t.Fatalf("Uint8(3) should require byte alignment")
	}
	if _, err := v.Uint8(8); err != nil {
		t.Fatalf("Uint8(8): %v", err)
	}
}
