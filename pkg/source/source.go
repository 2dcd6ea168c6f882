// Package source resolves opaque photo identifiers into readable streams.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when an identifier does not resolve to a resource.
var ErrNotFound = errors.New("source: resource not found")

// Provider opens a fresh stream for a resource identifier. Every call must
// return an independent stream positioned at the start of the resource.
type Provider interface {
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// DirProvider resolves identifiers as slash separated paths below a root directory.
type DirProvider struct {
	root string
	fsys fs.FS
}

// NewDirProvider creates a provider rooted at dir
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{root: dir, fsys: os.DirFS(dir)}
}

// Root returns the directory identifiers are resolved against
func (p *DirProvider) Root() string {
	return p.root
}

// Open opens the file named by id
func (p *DirProvider) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(id, "./")
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid resource id %q: %w", id, ErrNotFound)
	}
	f, err := p.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", id, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", id, ErrNotFound)
	}
	return f, nil
}

// MapProvider serves resources from memory. It is safe for concurrent use.
type MapProvider struct {
	mu    sync.RWMutex
	items map[string][]byte
	opens map[string]int
}

// NewMapProvider creates an empty in-memory provider
func NewMapProvider() *MapProvider {
	return &MapProvider{
		items: make(map[string][]byte),
		opens: make(map[string]int),
	}
}

// Put stores data under id, replacing any previous value
func (p *MapProvider) Put(id string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[id] = data
}

// Open returns a reader over the bytes stored under id
func (p *MapProvider) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.items[id]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", id, ErrNotFound)
	}
	p.opens[id]++
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Opens reports how many streams have been opened for id
func (p *MapProvider) Opens(id string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opens[id]
}
