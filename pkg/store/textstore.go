package store

import (
	"context"
	"errors"
	"os"
	"time"

	libcache "github.com/Voskan/dasm-cache/pkg"
	"github.com/Voskan/dasm-cache/internal/u128"
	"github.com/Voskan/dasm-cache/pkg/dasm"
)

// PathResolver maps a content key back to the filesystem path it was
// derived from. *FileWatch implements this by remembering every path it has
// hashed via KeyFromPath.
type PathResolver interface {
	PathForKey(key u128.U128) (string, bool)
}

// textResult is what TextStore caches per (key, lang): the parsed line
// table plus the blob-store hash of the raw file bytes it was built from.
type textResult struct {
	info dasm.TextInfo
	hash u128.U128
}

// TextStore is a path -> parsed-line-table cache: the reference
// implementation of dasm.TextStore. It reuses the teacher's generic
// sharded Cache[K,V] (package cache, import path pkg) wholesale rather than
// rolling a bespoke cache, since the read-mostly / singleflight-deduped /
// capacity-bound shape is exactly what a file's line table needs.
type TextStore struct {
	cache    *libcache.Cache[u128.U128, textResult]
	resolver PathResolver
	blobs    *BlobStore
}

// NewTextStore constructs a TextStore backed by a cache.Cache sized
// capBytes. ttl must be positive; entries are not aged out by time.
func NewTextStore(resolver PathResolver, blobs *BlobStore, capBytes int64, ttl time.Duration) (*TextStore, error) {
	c, err := libcache.New[u128.U128, textResult](capBytes, ttl, 16)
	if err != nil {
		return nil, err
	}
	return &TextStore{cache: c, resolver: resolver, blobs: blobs}, nil
}

// TextInfoFromKeyLang implements dasm.TextStore. lang is accepted for
// interface conformance but otherwise unused by this reference
// implementation — a real text subsystem would use it to pick a
// language-aware line splitter; plain newline splitting is enough here.
func (t *TextStore) TextInfoFromKeyLang(ctx context.Context, key u128.U128, lang string) (dasm.TextInfo, u128.U128) {
	res, err := t.cache.GetOrLoad(ctx, key, func(ctx context.Context, key u128.U128) (textResult, error) {
		return t.load(key)
	})
	if err != nil {
		return dasm.TextInfo{}, u128.Zero
	}
	return res.info, res.hash
}

func (t *TextStore) load(key u128.U128) (textResult, error) {
	path, ok := t.resolver.PathForKey(key)
	if !ok {
		return textResult{}, errors.New("store: no path registered for key")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return textResult{}, err
	}
	hash := t.blobs.SubmitData(key, data)
	return textResult{info: dasm.TextInfo{LineRanges: lineRanges(data)}, hash: hash}, nil
}

// lineRanges splits data into 1-based line byte ranges, each including its
// trailing newline (the last line may lack one).
func lineRanges(data []byte) []dasm.TextRange {
	ranges := make([]dasm.TextRange, 0, 64)
	start := uint64(0)
	for i, b := range data {
		if b == '\n' {
			ranges = append(ranges, dasm.TextRange{Start: start, End: uint64(i) + 1})
			start = uint64(i) + 1
		}
	}
	if start < uint64(len(data)) {
		ranges = append(ranges, dasm.TextRange{Start: start, End: uint64(len(data))})
	}
	return ranges
}
