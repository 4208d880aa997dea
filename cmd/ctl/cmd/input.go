package cmd

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jpfielding/jpegfrag.go/pkg/stream"
	"github.com/klauspost/compress/zstd"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openInput resolves uri to a ByteStream. Plain files are read on demand;
// stdin, http(s) bodies and compressed files are loaded into memory.
func openInput(ctx context.Context, uri string, insecure bool) (stream.ByteStream, io.Closer, error) {
	uri = strings.TrimPrefix(uri, "file://")
	var in io.Reader
	switch {
	case uri == "-":
		in = os.Stdin
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		cl := &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to download: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("failed to download %s: %s", uri, resp.Status)
		}
		in = resp.Body
	case strings.HasSuffix(uri, ".gz"), strings.HasSuffix(uri, ".zst"):
		f, err := os.Open(uri)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		in = f
	default:
		f, err := stream.Open(uri)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
	in, err := decompress(uri, in)
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return stream.Bytes(data), nopCloser{}, nil
}

// decompress unwraps gzip and zstd inputs by file extension.
func decompress(name string, in io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return zr, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return bytes.NewReader(out), nil
	}
	return in, nil
}
