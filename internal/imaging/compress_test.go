package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 5 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return EncodeDataURI("image/png", buf.Bytes())
}

func decodedSize(t *testing.T, uri string) (int, int) {
	t.Helper()
	mime, raw, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mime != OutputMIME {
		t.Errorf("mime: want %s, got %s", OutputMIME, mime)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestCompress_BoundsLongerSide(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 2048, 1024, 1024, 512},
		{"portrait", 1200, 3000, 410, 1024},
		{"uneven ratio", 3000, 2000, 1024, 683},
		{"square", 1500, 1500, 1024, 1024},
		{"already small", 640, 480, 640, 480},
		{"exactly max", 1024, 300, 1024, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compress(pngDataURI(t, tt.w, tt.h))
			if !res.Compressed() {
				t.Fatalf("unexpected fallback: %v", res.Fallback)
			}
			if res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("result size: want %dx%d, got %dx%d", tt.wantW, tt.wantH, res.Width, res.Height)
			}
			w, h := decodedSize(t, res.DataURI)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("encoded size: want %dx%d, got %dx%d", tt.wantW, tt.wantH, w, h)
			}
		})
	}
}

func TestCompress_FallbackReturnsInputExactly(t *testing.T) {
	inputs := []string{
		"",
		"not a data uri",
		"data:image/png;base64,@@@not-base64@@@",
		EncodeDataURI("image/png", []byte("definitely not a png")),
		"data:image/png,raw-not-base64",
	}
	for _, in := range inputs {
		res := Compress(in)
		if res.Fallback == nil {
			t.Errorf("Compress(%q): expected fallback", in)
		}
		if res.DataURI != in {
			t.Errorf("Compress(%q): output must equal input, got %q", in, res.DataURI)
		}
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{4000, 1, 1024, 1},
		{1, 4000, 1, 1024},
		{1025, 1025, 1024, 1024},
		{10, 20, 10, 20},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, MaxDimension)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("FitWithin(%d,%d) = %d,%d; want %d,%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	mime, raw, err := DecodeDataURI("data:image/webp;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mime != "image/webp" || string(raw) != "hello" {
		t.Errorf("got %q %q", mime, raw)
	}
	if _, _, err := DecodeDataURI("data:;base64"); err == nil {
		t.Error("expected error without payload separator")
	}
}

func TestEncodeDataURI(t *testing.T) {
	got := EncodeDataURI("image/jpeg", []byte("hi"))
	if !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("bad prefix: %s", got)
	}
}

// hugePNG is a valid 1x1 PNG whose header claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	b := buf.Bytes()
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return EncodeDataURI("image/png", b)
}

func TestCompress_OversizedHeaderFallsBack(t *testing.T) {
	in := hugePNG(t, 50000, 50000)
	res := Compress(in)
	if !errors.Is(res.Fallback, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge fallback, got %v", res.Fallback)
	}
	if res.DataURI != in {
		t.Error("oversized input must be returned unchanged")
	}
}
