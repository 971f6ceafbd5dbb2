package domain

import "testing"

func TestBetween(t *testing.T) {
	sp, _ := NewSpace(8)
	mk := func(h string) ID {
		id, err := sp.FromHexString(h)
		if err != nil {
			t.Fatalf("FromHexString(%q) failed: %v", h, err)
		}
		return id
	}

	tests := []struct {
		name string
		x    string
		a    string
		b    string
		want bool
	}{
		{"linear, inside", "0x10", "0x05", "0x20", true},
		{"linear, equals upper bound", "0x20", "0x05", "0x20", true},
		{"linear, equals lower bound excluded", "0x05", "0x05", "0x20", false},
		{"linear, outside", "0x30", "0x05", "0x20", false},
		{"wrap-around, inside high side", "0xf0", "0xe0", "0x10", true},
		{"wrap-around, inside low side", "0x05", "0xe0", "0x10", true},
		{"wrap-around, equals upper bound", "0x10", "0xe0", "0x10", true},
		{"wrap-around, outside", "0x50", "0xe0", "0x10", false},
		{"degenerate a==b covers whole ring", "0x00", "0x42", "0x42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, a, b := mk(tt.x), mk(tt.a), mk(tt.b)
			if got := x.Between(a, b); got != tt.want {
				t.Errorf("Between(%s, %s, %s) = %v, want %v", tt.x, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFromHexStringRoundTrip(t *testing.T) {
	sp, _ := NewSpace(160)
	tests := []struct {
		name    string
		hex     string
		wantErr bool
	}{
		{"plain", "d41d8cd98f00b204e9800998ecf8427e2aa70000", false},
		{"0x-prefixed", "0xD41D8CD98F00B204E9800998ECF8427E2AA70000", false},
		{"padded too long but zero prefix", "00" + "d41d8cd98f00b204e9800998ecf8427e2aa70000", false},
		{"empty", "", true},
		{"non-hex", "zz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := sp.FromHexString(tt.hex)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got id %s", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(id) != sp.ByteLen {
				t.Fatalf("len(id) = %d, want %d", len(id), sp.ByteLen)
			}
		})
	}
}

func TestNewIDFromStringDeterministic(t *testing.T) {
	sp, _ := NewSpace(160)
	a := sp.NewIDFromString("127.0.0.1:4000")
	b := sp.NewIDFromString("127.0.0.1:4000")
	if !a.Equal(b) {
		t.Fatalf("hashing the same input twice produced different ids: %s vs %s", a, b)
	}
	c := sp.NewIDFromString("127.0.0.1:4001")
	if a.Equal(c) {
		t.Fatalf("hashing distinct inputs produced the same id")
	}
	if err := sp.IsValidID(a); err != nil {
		t.Fatalf("derived id failed validation: %v", err)
	}
}

func TestIsValidIDRejectsWrongLength(t *testing.T) {
	sp, _ := NewSpace(160)
	if err := sp.IsValidID(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for short id")
	}
}
