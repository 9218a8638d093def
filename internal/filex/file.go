package filex

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

var ErrNotFileURI = errors.New("not a file uri")

// EnsureSubDir creates base/name (base defaults to the working directory)
// and returns its absolute path.
func EnsureSubDir(base, name string) (string, error) {
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		base = cwd
	}

	dir, err := filepath.Abs(filepath.Join(base, name))
	if err != nil {
		return "", fmt.Errorf("abs: %w", err)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

const copyChunk = 256 * 1024

// CopyFile copies src to dst in chunks, checking ctx between chunks.
// A partially written dst is removed on failure.
func CopyFile(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o660)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	var n int64
	fail := func(err error) (int64, error) {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, err
	}

	buf := make([]byte, copyChunk)
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		r, rerr := in.Read(buf)
		if r > 0 {
			w, werr := out.Write(buf[:r])
			n += int64(w)
			if werr != nil {
				return fail(fmt.Errorf("write %s: %w", dst, werr))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(fmt.Errorf("read %s: %w", src, rerr))
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}

// FileURI turns an absolute path into a file:// URI.
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// PathFromURI is the inverse of FileURI. Bare paths are returned as is.
func PathFromURI(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrNotFileURI, uri)
	}
	return filepath.FromSlash(u.Path), nil
}
