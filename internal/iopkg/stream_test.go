package iopkg

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "masterlist.csv")
	content := "tags\nTI-101\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, uri := range []string{"file://" + p, p} {
		rc, sz, err := Open(context.Background(), uri)
		if err != nil {
			t.Fatalf("Open(%s) err: %v", uri, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		if sz != int64(len(content)) {
			t.Fatalf("size got %d want %d", sz, len(content))
		}
		if string(b) != content {
			t.Fatalf("content mismatch: %q", string(b))
		}
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, _, err := Open(context.Background(), "file://"+filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestCreateWriterRenamesOnClose(t *testing.T) {
	p := filepath.Join(t.TempDir(), "archive", "2026", "out.xlsx")
	w, c, err := CreateWriter(context.Background(), "file://"+p)
	if err != nil {
		t.Fatalf("CreateWriter err: %v", err)
	}
	_, _ = w.Write([]byte("abc"))
	if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("destination visible before close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close err: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close err: %v", err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "abc" {
		t.Fatalf("file content: %q", string(b))
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %d entries", len(entries))
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := CreateWriter(ctx, filepath.Join(t.TempDir(), "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestUnsupportedScheme(t *testing.T) {
	for _, uri := range []string{"ftp://host/x", "s3://bucket/key"} {
		if _, _, err := Open(context.Background(), uri); !errors.Is(err, ErrUnsupportedScheme) {
			t.Fatalf("Open(%s) err = %v", uri, err)
		}
		if _, _, err := CreateWriter(context.Background(), uri); !errors.Is(err, ErrUnsupportedScheme) {
			t.Fatalf("CreateWriter(%s) err = %v", uri, err)
		}
	}
}

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"/tmp/a.csv":        SchemeFile,
		"file:///tmp/a.csv": SchemeFile,
		"s3://b/k":          SchemeS3,
		"S3://b/k":          SchemeS3,
		"ftp://h/x":         "ftp",
	}
	for in, want := range cases {
		if got := Scheme(in); got != want {
			t.Fatalf("Scheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("s3://b/masterlists/", "/a.csv"); got != "s3://b/masterlists/a.csv" {
		t.Fatalf("Join = %q", got)
	}
}
