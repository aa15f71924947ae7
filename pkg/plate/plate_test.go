package plate

import (
	"math/rand"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "abc1d23", want: "ABC1D23"},
		{in: "abc-1d23", want: "ABC1D23"},
		{in: "ABC 1D2 3", want: "ABC1D23"},
		{in: "abc1234", want: "ABC1C34"},
		{in: "ab", want: "AB"},
		{in: "abc1", want: "ABC1"},
		{in: "abc1d", want: "ABC1D"},
		{in: "abc1d2399", want: "ABC1D23"},
		{in: "1abc", want: "ABC"},
		{in: "abcd1e23", want: "ABC1E23"},
		{in: "çabc1d23", want: "ABC1D23"},
	}
	for _, tc := range tests {
		if got := Format(tc.in); got != tc.want {
			t.Fatalf("Format(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatProperties(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 -./_é"
	runes := []rune(alphabet)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		n := rng.Intn(14)
		in := make([]rune, n)
		for j := range in {
			in[j] = runes[rng.Intn(len(runes))]
		}
		got := Format(string(in))
		if len(got) > Length {
			t.Fatalf("Format(%q) too long: %q", string(in), got)
		}
		for pos := 0; pos < len(got); pos++ {
			c := got[pos]
			wantLetter := pos < 3 || pos == 4
			if wantLetter && !isLetter(c) {
				t.Fatalf("Format(%q) = %q: position %d should be a letter", string(in), got, pos)
			}
			if !wantLetter && !isDigit(c) {
				t.Fatalf("Format(%q) = %q: position %d should be a digit", string(in), got, pos)
			}
		}
		if again := Format(got); again != got {
			t.Fatalf("Format not idempotent: %q -> %q", got, again)
		}
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "abc1d23", want: "ABC1D23"},
		{in: "ABC-1234", want: "ABC1C34"},
		{in: "abc1d2", wantErr: true},
		{in: "1234567", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := Canonical(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Canonical(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("Canonical(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("ABC1D23") {
		t.Fatalf("expected mercosul plate to be valid")
	}
	if Valid("ABC1234") {
		t.Fatalf("legacy plate is not mercosul")
	}
	if !ValidLegacy("ABC1234") {
		t.Fatalf("expected legacy plate to be valid")
	}
	if Valid("abc1d23") {
		t.Fatalf("lowercase plate should not validate")
	}
}
