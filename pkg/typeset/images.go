package typeset

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/matzehuels/docsmith/pkg/httputil"
)

// ImageLoader fetches the raw bytes behind an image block's src.
type ImageLoader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

// DefaultLoader resolves data URLs, http(s) URLs and local files.
// Relative file paths are resolved against BaseDir.
type DefaultLoader struct {
	BaseDir string
	Client  *http.Client
}

// Load implements ImageLoader.
func (l DefaultLoader) Load(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURL(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return httputil.Fetch(ctx, l.Client, src)
	default:
		path := src
		if !filepath.IsAbs(path) && l.BaseDir != "" {
			path = filepath.Join(l.BaseDir, path)
		}
		return os.ReadFile(path)
	}
}

// decodeDataURL decodes an RFC 2397 data URL.
func decodeDataURL(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL: missing ','")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data URL payload: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL payload: %w", err)
	}
	return []byte(text), nil
}

// decodedImage is an image ready for embedding.
type decodedImage struct {
	data   []byte
	kind   string // fpdf image type: PNG, JPG or GIF
	width  int    // natural size in pixels
	height int
}

// decodeImage sniffs the format and reads the natural dimensions.
func decodeImage(data []byte) (decodedImage, error) {
	if len(data) == 0 {
		return decodedImage{}, fmt.Errorf("empty image data")
	}

	var kind string
	switch mt := mimetype.Detect(data); {
	case mt.Is("image/png"):
		kind = "PNG"
	case mt.Is("image/jpeg"):
		kind = "JPG"
	case mt.Is("image/gif"):
		kind = "GIF"
	default:
		return decodedImage{}, fmt.Errorf("unsupported image type %s", mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return decodedImage{}, fmt.Errorf("decode %s: %w", kind, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return decodedImage{}, fmt.Errorf("image has no area (%dx%d)", cfg.Width, cfg.Height)
	}
	return decodedImage{data: data, kind: kind, width: cfg.Width, height: cfg.Height}, nil
}

// fitImage converts pixel dimensions to millimetres and scales the result
// down to maxW x maxH. Images are never enlarged.
func fitImage(pxW, pxH int, dpi, maxW, maxH float64) (float64, float64) {
	w := float64(pxW) * 25.4 / dpi
	h := float64(pxH) * 25.4 / dpi
	if w > maxW {
		h *= maxW / w
		w = maxW
	}
	if h > maxH {
		w *= maxH / h
		h = maxH
	}
	return w, h
}
