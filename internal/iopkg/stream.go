// Package iopkg resolves object URIs and handles the local file side of
// masterlist archives and exports.
package iopkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedScheme = errors.New("unsupported uri scheme")

const (
	SchemeFile = "file"
	SchemeS3   = "s3"
)

// Scheme returns "file" for file:// URIs and bare paths, "s3" for s3://,
// and the raw scheme otherwise.
func Scheme(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return SchemeFile
	}
	return strings.ToLower(u.Scheme)
}

// LocalPath strips the file:// prefix.
func LocalPath(uri string) string { return strings.TrimPrefix(uri, "file://") }

// Open reads a local file and reports its size.
func Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	if s := Scheme(uri); s != SchemeFile {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedScheme, s)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(LocalPath(uri))
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

// CreateWriter writes to a temp file next to uri and renames it into place
// on Close, so a half-written archive is never visible.
func CreateWriter(ctx context.Context, uri string) (io.Writer, io.Closer, error) {
	if s := Scheme(uri); s != SchemeFile {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, s)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	dst := LocalPath(uri)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return nil, nil, err
	}
	return tmp, &renameCloser{f: tmp, dst: dst}, nil
}

type renameCloser struct {
	f    *os.File
	dst  string
	done bool
}

func (c *renameCloser) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	if err := c.f.Close(); err != nil {
		os.Remove(c.f.Name())
		return err
	}
	if err := os.Rename(c.f.Name(), c.dst); err != nil {
		os.Remove(c.f.Name())
		return err
	}
	return nil
}

// Join appends name to a file:// or s3:// prefix.
func Join(prefix, name string) string {
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(name, "/")
}
