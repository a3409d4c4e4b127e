package media

import "testing"

func TestParseFormat(t *testing.T) {
	cases := []struct {
		input string
		want  Format
		ok    bool
	}{
		{"webm", FormatWebM, true},
		{" MP4 ", FormatMP4, true},
		{"gif", FormatGIF, true},
		{"mov", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.input)
		if tc.ok && err != nil {
			t.Fatalf("ParseFormat(%q): unexpected error: %v", tc.input, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseFormat(%q): expected error", tc.input)
		}
		if got != tc.want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestRequiresConversion(t *testing.T) {
	if FormatWebM.RequiresConversion() {
		t.Fatal("webm should ship without conversion")
	}
	if !FormatMP4.RequiresConversion() || !FormatGIF.RequiresConversion() {
		t.Fatal("mp4 and gif require the conversion engine")
	}
}

func TestSniff(t *testing.T) {
	webm := []byte{0x1a, 0x45, 0xdf, 0xa3, 0x00, 0x00}
	if got, ok := Sniff(webm); !ok || got != FormatWebM {
		t.Fatalf("Sniff(webm) = %q, %v", got, ok)
	}
	mp4 := append([]byte{0, 0, 0, 0x18}, []byte("ftypisom\x00\x00\x00\x00")...)
	if got, ok := Sniff(mp4); !ok || got != FormatMP4 {
		t.Fatalf("Sniff(mp4) = %q, %v", got, ok)
	}
	gif := []byte("GIF89a trailer")
	if got, ok := Sniff(gif); !ok || got != FormatGIF {
		t.Fatalf("Sniff(gif) = %q, %v", got, ok)
	}
	if _, ok := Sniff([]byte("plain text")); ok {
		t.Fatal("Sniff accepted unrecognized payload")
	}
	if _, ok := Sniff(nil); ok {
		t.Fatal("Sniff accepted empty payload")
	}
}
