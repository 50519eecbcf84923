package slug

import "testing"

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		id   uint32
		want string
	}{
		{0, "000000"},
		{1, "000001"},
		{35, "00000z"},
		{36, "000010"},
		{MaxID - 1, "zzzzzz"},
	}
	for _, c := range cases {
		got := Encode(c.id).String()
		if got != c.want {
			t.Errorf("Encode(%d) = %q, want %q", c.id, got, c.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	ids := []uint32{0, 1, 35, 36, 1000, 123456789, MaxID - 1}
	for _, id := range ids {
		s := Encode(id)
		for _, c := range s {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("Encode(%d) produced byte %q outside [0-9a-z]", id, c)
			}
		}
		got, err := Decode(s)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)) returned error: %v", id, err)
		}
		if got != id {
			t.Errorf("Decode(Encode(%d)) = %d, want %d", id, got, id)
		}
	}
}

func TestEncodeOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Encode to panic for id >= MaxID")
		}
	}()
	Encode(MaxID)
}

func TestDecodeInvalidByte(t *testing.T) {
	var s Slug
	copy(s[:], "00000!")
	if _, err := Decode(s); err == nil {
		t.Fatal("expected error decoding invalid byte")
	}
}
