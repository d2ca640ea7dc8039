package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr error
	}{
		{"space separated", "AA BB CC", []byte{0xAA, 0xBB, 0xCC}, nil},
		{"mixed separators", "AA,BB:CC", []byte{0xAA, 0xBB, 0xCC}, nil},
		{"no separators", "0102fF", []byte{0x01, 0x02, 0xFF}, nil},
		{"lowercase", "de ad be ef", []byte{0xDE, 0xAD, 0xBE, 0xEF}, nil},
		{"junk skipped", "zz12 34yy", []byte{0x12, 0x34}, nil},
		{"pairs split by separator", "A,A", []byte{0xAA}, nil},
		{"odd digits", "AA B", nil, ErrOddHexDigits},
		{"single nibble", "F", nil, ErrOddHexDigits},
		{"empty", "", nil, ErrEmptyHex},
		{"separators only", " ,: ", nil, ErrEmptyHex},
		{"no hex at all", "xyz!", nil, ErrEmptyHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseHex(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHex(%q) unexpected error: %v", tt.in, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ParseHex(%q) = %x, want %x", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatHex(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x00}, "00"},
		{[]byte{0xAA, 0xBB, 0xCC}, "AA BB CC"},
		{[]byte{0x0f, 0xf0, 0x7e}, "0F F0 7E"},
	}
	for _, tt := range tests {
		if got := FormatHex(tt.in); got != tt.want {
			t.Errorf("FormatHex(%x) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// reseparate rewrites a FormatHex string with random separators between bytes.
func reseparate(rng *rand.Rand, s string) string {
	seps := []string{"", " ", ",", ":", ", ", " : "}
	var sb strings.Builder
	for i, pair := range strings.Fields(s) {
		if i > 0 {
			sb.WriteString(seps[rng.Intn(len(seps))])
		}
		sb.WriteString(pair)
	}
	return sb.String()
}

func TestHexRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		data := make([]byte, 1+rng.Intn(64))
		rng.Read(data)

		encoded := reseparate(rng, FormatHex(data))
		got, err := ParseHex(encoded)
		if err != nil {
			t.Fatalf("ParseHex(%q) error: %v", encoded, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("round trip of %x via %q = %x", data, encoded, got)
		}
	}
}

func TestHexOddDigitsAlwaysFails(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(32))
		rng.Read(data)

		encoded := reseparate(rng, FormatHex(data)) + " G" + string(hexDigits[rng.Intn(16)])
		if _, err := ParseHex(encoded); !errors.Is(err, ErrOddHexDigits) {
			t.Fatalf("ParseHex(%q) error = %v, want ErrOddHexDigits", encoded, err)
		}
	}
}
