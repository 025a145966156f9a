package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// fetchSource reads src fully into memory. src may be an http(s) URL,
// a file:// URL or a local path.
func fetchSource(ctx context.Context, client *http.Client, src string, maxBytes int64) ([]byte, error) {
	if src == "" {
		return nil, ErrNoSource
	}

	u, err := url.Parse(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return fetchRemote(ctx, client, src, maxBytes)
	}

	p := src
	if err == nil && u.Scheme == "file" {
		p = u.Path
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()
	return readLimited(f, maxBytes)
}

func fetchRemote(ctx context.Context, client *http.Client, src string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media server returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("track is %d bytes, limit is %d", resp.ContentLength, maxBytes)
	}
	return readLimited(resp.Body, maxBytes)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read track: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("track exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// formatOf guesses the container from the source path. Proxied sources
// carry the real URL escaped in the query.
func formatOf(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return extOf(src)
	}

	p := u.Path
	for _, vals := range u.Query() {
		for _, v := range vals {
			if inner, err := url.Parse(v); err == nil && inner.Host != "" && path.Ext(inner.Path) != "" {
				p = inner.Path
			}
		}
	}
	return extOf(p)
}

func extOf(p string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// detectFormat sniffs the container from magic bytes, falling back to the
// source extension
func detectFormat(data []byte, src string) string {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) >= 12 && string(data[8:12]) == "WAVE":
		return "wav"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return formatOf(src)
}
