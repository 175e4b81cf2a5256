// Package imaging normalises user photographs before they are submitted for
// analysis. Compression is best-effort: when the input cannot be decoded the
// original payload is returned untouched.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension bounds the longer side of a compressed image.
	MaxDimension = 1024
	// Quality is the JPEG quality used for re-encoding (0.8).
	Quality = 80
	// OutputMIME is the media type of every compressed image.
	OutputMIME = "image/jpeg"
	// MaxPixels bounds the decoded size of an input image.
	MaxPixels = 64 << 20
)

var errNotDataURI = errors.New("not a base64 data URI")

// ErrTooLarge reports an image whose header declares more than MaxPixels.
var ErrTooLarge = errors.New("image too large to decode")

// Result is the outcome of Compress. DataURI is always usable: it is the
// re-encoded image, or the original input when Fallback is set.
type Result struct {
	DataURI  string
	Width    int
	Height   int
	Fallback error // why the original was kept; nil when re-encoded
}

// Compressed reports whether DataURI holds a re-encoded image.
func (r Result) Compressed() bool { return r.Fallback == nil }

// Compress decodes the data URI, scales it so the longer side is at most
// MaxDimension and re-encodes it as JPEG. Images declaring more than
// MaxPixels are not decoded.
func Compress(dataURI string) Result {
	_, raw, err := DecodeDataURI(dataURI)
	if err != nil {
		return Result{DataURI: dataURI, Fallback: err}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Result{DataURI: dataURI, Fallback: fmt.Errorf("decode image: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Result{DataURI: dataURI, Fallback: fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)}
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{DataURI: dataURI, Fallback: fmt.Errorf("decode image: %w", err)}
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return Result{DataURI: dataURI, Fallback: fmt.Errorf("encode jpeg: %w", err)}
	}
	return Result{
		DataURI: EncodeDataURI(OutputMIME, buf.Bytes()),
		Width:   w,
		Height:  h,
	}
}

// FitWithin scales (w, h) down so that neither side exceeds limit, keeping
// the aspect ratio. The longer side becomes exactly limit; sizes already
// within bounds are returned unchanged.
func FitWithin(w, h, limit int) (int, int) {
	if w > h {
		if w > limit {
			h = scaleSide(h, limit, w)
			w = limit
		}
	} else if h > limit {
		w = scaleSide(w, limit, h)
		h = limit
	}
	return w, h
}

func scaleSide(side, num, den int) int {
	s := int(math.Round(float64(side) * float64(num) / float64(den)))
	if s < 1 {
		s = 1
	}
	return s
}

// DecodeDataURI splits "data:<mime>;base64,<payload>" into its media type
// and decoded bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", nil, errNotDataURI
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	return mime, raw, nil
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
