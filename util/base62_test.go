package util

import "testing"

func TestBase62EncodeZero(t *testing.T) {
	code := Base62Encode(0)
	if code != "0" {
		t.Errorf("Encode(0) = %q, want \"0\"", code)
	}
}

func TestBase62EncodeSingleChar(t *testing.T) {
	code := Base62Encode(61)
	if len(code) != 1 {
		t.Errorf("Encode(61) = %q, want a single character", code)
	}
	if code != "Z" {
		t.Errorf("Encode(61) = %q, want last alphabet symbol \"Z\"", code)
	}
}

func TestBase62EncodeRollover(t *testing.T) {
	code := Base62Encode(62)
	if len(code) != 2 {
		t.Errorf("Encode(62) = %q, want two characters", code)
	}

	n, err := Base62Decode(code)
	if err != nil {
		t.Fatalf("Decode(%q) failed: %v", code, err)
	}
	if n != 62 {
		t.Errorf("Decode(%q) = %d, want 62", code, n)
	}
}

func TestBase62RoundTrip(t *testing.T) {
	ids := []int64{0, 1, 61, 62, 3843, 3844, 123456789, 987654321012}
	for _, id := range ids {
		code := Base62Encode(id)
		got, err := Base62Decode(code)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", code, err)
		}
		if got != id {
			t.Errorf("round trip %d -> %q -> %d", id, code, got)
		}
	}
}

func TestBase62DecodeInvalid(t *testing.T) {
	if _, err := Base62Decode(""); err == nil {
		t.Errorf("Decode(\"\") should fail")
	}
	if _, err := Base62Decode("abc-def"); err == nil {
		t.Errorf("Decode with invalid character should fail")
	}
}
