package blob

import (
	"context"
	"errors"
	"io"
	"strings"
)

var ErrNotFound = errors.New("blob not found")

// Store keeps rendered videos. Keys are slash separated relative paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// PublicURL is where the HTTP API serves key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/media/" + strings.TrimLeft(key, "/")
}

// VideoKey is the blob key of a job's rendered video.
func VideoKey(jobID string) string {
	return "videos/" + jobID + ".mp4"
}
