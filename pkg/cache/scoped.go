package cache

// ScopedKeyer wraps a Keyer with a prefix so several documents or users
// can share one backend without colliding.
//
//	perDoc := NewScopedKeyer(NewDefaultKeyer(), "doc:"+docID+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer means [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

func (k *ScopedKeyer) DiagramKey(engine, source string) string {
	return k.prefix + k.inner.DiagramKey(engine, source)
}

func (k *ScopedKeyer) RasterKey(rasterizer string, svgHash string, scale float64) string {
	return k.prefix + k.inner.RasterKey(rasterizer, svgHash, scale)
}
