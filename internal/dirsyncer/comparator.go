package dirsyncer

import (
	"bytes"
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"dirmirror/internal/model"
	"dirmirror/pkg/helpers/iout"
)

const (
	hashCacheSize = 4096
	// a file modified this close to the moment it was hashed could have been rewritten
	// within the same mtime tick, so its cached hash is not trusted
	racyWindow = 2 * time.Second
)

type hashKey struct {
	path    string
	size    int64
	modTime int64 // unix nanoseconds
}

type hashEntry struct {
	sum      []byte
	hashedAt time.Time
}

//contentComparator compares the content of two files which already match by size and mtime.
type contentComparator struct {
	cache *lru.Cache[hashKey, hashEntry]
	now   func() time.Time
}

func newContentComparator() (*contentComparator, error) {
	cache, err := lru.New[hashKey, hashEntry](hashCacheSize)
	if err != nil {
		return nil, err
	}
	return &contentComparator{cache: cache, now: time.Now}, nil
}

func (c *contentComparator) equal(ctx context.Context, a Tree, aInfo model.PathInfo, b Tree, bInfo model.PathInfo) (bool, error) {
	aSum, err := c.hash(ctx, a.FS, aInfo)
	if err != nil {
		return false, err
	}
	bSum, err := c.hash(ctx, b.FS, bInfo)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aSum, bSum), nil
}

func (c *contentComparator) hash(ctx context.Context, fsys afero.Fs, info model.PathInfo) ([]byte, error) {
	key := hashKey{path: info.FullPath, size: info.Size, modTime: info.ModTime.UnixNano()}
	if cached, ok := c.cache.Get(key); ok && cached.hashedAt.Sub(info.ModTime) > racyWindow {
		return cached.sum, nil
	}

	hashedAt := c.now()
	sum, err := iout.HashFile(ctx, fsys, info.FullPath)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, hashEntry{sum: sum, hashedAt: hashedAt})
	return sum, nil
}
