package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Keyer builds cache keys for rendered artifacts.
type Keyer interface {
	// DiagramKey identifies the SVG rendered from a diagram source by an engine.
	DiagramKey(engine, source string) string

	// RasterKey identifies a PNG rasterized from an SVG at a scale.
	RasterKey(rasterizer string, svgHash string, scale float64) string
}

// DefaultKeyer hashes every key component with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

func (DefaultKeyer) DiagramKey(engine, source string) string {
	return hashKey("diagram", engine, source)
}

func (DefaultKeyer) RasterKey(rasterizer string, svgHash string, scale float64) string {
	return hashKey("raster", rasterizer, svgHash, strconv.FormatFloat(scale, 'g', -1, 64))
}

// hashKey returns "prefix:" followed by the SHA-256 of the parts, each
// length-prefixed so that ("ab", "c") and ("a", "bc") differ.
func hashKey(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of data. Raster keys use it to identify an
// SVG without embedding it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
