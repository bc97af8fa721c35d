package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/calibr8/internal/iopkg"
)

// ObjectStore defines minimal methods for masterlist archive and import needs.
type ObjectStore interface {
	// Get returns a reader for the given URI (s3://bucket/key or file://path).
	Get(ctx context.Context, uri string) (io.ReadCloser, int64, error)
	// Put writes content to the given URI; returns final URI.
	Put(ctx context.Context, uri string, body io.Reader) (string, error)
}

// New returns a store serving both file:// and s3:// URIs. The S3 client is
// created eagerly when baseURI is an s3:// prefix and on first use otherwise.
func New(ctx context.Context, baseURI string) (ObjectStore, error) {
	r := &Router{newS3: func(ctx context.Context) (ObjectStore, error) { return NewS3Store(ctx) }}
	if iopkg.Scheme(baseURI) == iopkg.SchemeS3 {
		if _, err := r.remote(ctx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Router dispatches on the URI scheme.
type Router struct {
	local LocalStore
	newS3 func(ctx context.Context) (ObjectStore, error)

	mu sync.Mutex
	s3 ObjectStore
}

func (r *Router) remote(ctx context.Context) (ObjectStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s3 == nil {
		s, err := r.newS3(ctx)
		if err != nil {
			return nil, err
		}
		r.s3 = s
	}
	return r.s3, nil
}

func (r *Router) pick(ctx context.Context, uri string) (ObjectStore, error) {
	switch s := iopkg.Scheme(uri); s {
	case iopkg.SchemeFile:
		return r.local, nil
	case iopkg.SchemeS3:
		return r.remote(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", iopkg.ErrUnsupportedScheme, s)
	}
}

func (r *Router) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	st, err := r.pick(ctx, uri)
	if err != nil {
		return nil, 0, err
	}
	return st.Get(ctx, uri)
}

func (r *Router) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	st, err := r.pick(ctx, uri)
	if err != nil {
		return "", err
	}
	return st.Put(ctx, uri, body)
}

// LocalStore reads and writes file:// URIs.
type LocalStore struct{}

func (LocalStore) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	return iopkg.Open(ctx, uri)
}

func (LocalStore) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	w, c, err := iopkg.CreateWriter(ctx, uri)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, body); err != nil {
		c.Close()
		return "", err
	}
	if err := c.Close(); err != nil {
		return "", err
	}
	return uri, nil
}

// Archive keeps a copy of every uploaded masterlist under Base.
type Archive struct {
	Store ObjectStore
	Base  string
}

// Key returns a collision-free location for fileName under the archive base.
func (a Archive) Key(fileName string) string {
	return iopkg.Join(a.Base, uuid.NewString()+"/"+path.Base(fileName))
}

var ErrArchiveDisabled = errors.New("archive not configured")

// Save stores body and returns its URI.
func (a Archive) Save(ctx context.Context, fileName string, body io.Reader) (string, error) {
	if !a.Enabled() {
		return "", ErrArchiveDisabled
	}
	return a.Store.Put(ctx, a.Key(fileName), body)
}

// Enabled reports whether uploads are archived.
func (a Archive) Enabled() bool { return a.Store != nil && a.Base != "" }
