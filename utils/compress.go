package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// writerPool holds BestCompression writers shared by snapshot and lyric writes
var writerPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestCompression)
		return w
	},
}

// CompressBytes gzips data at BestCompression
func CompressBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := writerPool.Get().(*gzip.Writer)
	defer writerPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressBytes reverses CompressBytes
func DecompressBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// CompressString gzips input and base64-encodes it so the result can sit
// inside a JSON value in bbolt.
func CompressString(input string) (string, error) {
	out, err := CompressBytes([]byte(input))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecompressString reverses CompressString
func DecompressString(input string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	out, err := DecompressBytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
