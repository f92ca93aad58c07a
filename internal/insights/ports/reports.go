package ports

import (
	"context"
	"io"
)

// ReportArchive stores change reports attached to tickets at close time.
type ReportArchive interface {
	// Store uploads a report and returns its object path.
	Store(ctx context.Context, name string, content io.Reader, size int64) (string, error)
	// Fetch streams a stored report back.
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}
