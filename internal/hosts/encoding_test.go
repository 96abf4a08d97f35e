package hosts

import (
	"errors"
	"testing"
)

func TestLookupEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"utf-8", "utf-8"},
		{"UTF8", "utf-8"},
		{"gbk", "gbk"},
		{"ansi", "windows-1252"},
		{"cp1252", "windows-1252"},
		{"shift_jis", "shift_jis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := LookupEncoding(tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if enc.Name != tt.want {
				t.Errorf("name = %q, want %q", enc.Name, tt.want)
			}
		})
	}
}

func TestLookupEncoding_Unknown(t *testing.T) {
	t.Parallel()

	_, err := LookupEncoding("klingon")
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("err = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestEncoding_DecodeStrict(t *testing.T) {
	t.Parallel()

	if _, ok := UTF8.Decode([]byte{0xff}); ok {
		t.Error("utf-8 should reject invalid bytes")
	}
	if _, ok := GBK.Decode([]byte{0x81, 0x20}); ok {
		t.Error("gbk should reject a truncated double-byte sequence")
	}

	text, ok := Windows1252.Decode([]byte("caf\xe9"))
	if !ok {
		t.Fatal("windows-1252 should decode latin text")
	}
	if text != "café" {
		t.Errorf("text = %q, want %q", text, "café")
	}
}

func TestDetect_PreferenceOrder(t *testing.T) {
	t.Parallel()

	// Valid UTF-8 is also valid windows-1252; the first listed encoding wins.
	raw := []byte("café")
	_, enc, err := detect(raw, []Encoding{Windows1252, UTF8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc != Windows1252 {
		t.Errorf("encoding = %q, want windows-1252", enc.Name)
	}

	_, enc, err = detect(raw, DefaultEncodings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc != UTF8 {
		t.Errorf("encoding = %q, want utf-8", enc.Name)
	}
}
