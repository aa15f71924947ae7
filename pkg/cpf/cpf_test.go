package cpf

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "5", want: "5"},
		{in: "529", want: "529"},
		{in: "5299", want: "529.9"},
		{in: "529982", want: "529.982"},
		{in: "5299822", want: "529.982.2"},
		{in: "529982247", want: "529.982.247"},
		{in: "5299822472", want: "529.982.247-2"},
		{in: "52998224725", want: "529.982.247-25"},
		{in: "529.982.247-25", want: "529.982.247-25"},
		{in: "52998224725999", want: "529.982.247-25"},
		{in: "abc529x982", want: "529.982"},
	}
	for _, tc := range tests {
		if got := Format(tc.in); got != tc.want {
			t.Fatalf("Format(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPunctuationPositions(t *testing.T) {
	digits := "12345678901234"
	for n := 0; n <= len(digits); n++ {
		got := Format(digits[:n])
		if len(got) > FormattedLength {
			t.Fatalf("Format(%q) too long: %q", digits[:n], got)
		}
		for i := 0; i < len(got); i++ {
			punct := strings.ContainsRune(".-", rune(got[i]))
			want := i == 3 || i == 7 || i == 11
			if punct != want {
				t.Fatalf("Format(%q) = %q: unexpected punctuation layout at %d", digits[:n], got, i)
			}
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("529.982.247-25") {
		t.Fatalf("expected valid cpf")
	}
	if Valid("529.982.247-26") {
		t.Fatalf("expected wrong check digit to fail")
	}
	if Valid("111.111.111-11") {
		t.Fatalf("expected repeated digits to fail")
	}
	if Valid("5299822472") {
		t.Fatalf("expected short cpf to fail")
	}
}
