package dataset

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/manningwu07/textdata/params"
)

// DefaultCacheSize bounds the artifacts kept by NewArtifactCache(0).
const DefaultCacheSize = 64

type artifactKind int

const (
	kindRaw artifactKind = iota
	kindAlphabet
	kindLexicon
)

// artifactKey identifies one derived artifact. extra distinguishes
// builds with different parameters (reserved symbols, cutoffs).
type artifactKey struct {
	kind    artifactKind
	dir     string
	variant params.Variant
	count   int
	extra   string
}

// ArtifactCache keeps raw documents, alphabets and lexicons built from
// the same (directory, variant, document count) so that repeated loads
// skip re-reading and re-sorting. Cached values are shared and must be
// treated as read-only. A nil *ArtifactCache caches nothing.
type ArtifactCache struct {
	c *lru.Cache
}

// NewArtifactCache creates a cache holding up to size artifacts.
func NewArtifactCache(size int) (*ArtifactCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ArtifactCache{c: c}, nil
}

func (ac *ArtifactCache) get(k artifactKey) (interface{}, bool) {
	if ac == nil {
		return nil, false
	}
	return ac.c.Get(k)
}

func (ac *ArtifactCache) add(k artifactKey, v interface{}) {
	if ac == nil {
		return
	}
	ac.c.Add(k, v)
}

// Len is the number of cached artifacts.
func (ac *ArtifactCache) Len() int {
	if ac == nil {
		return 0
	}
	return ac.c.Len()
}

// Purge drops everything.
func (ac *ArtifactCache) Purge() {
	if ac != nil {
		ac.c.Purge()
	}
}
