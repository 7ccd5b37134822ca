package core

import (
	"context"
	"time"
)

// DataFileRefPrefix marks a user_data_file value that points into the
// DataFileStore rather than the local filesystem.
const DataFileRefPrefix = "artifact://"

// DataFile describes an uploaded tabular data file.
type DataFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Ref returns the reference an agent may place in user_data_file.
func (f DataFile) Ref() string { return DataFileRefPrefix + f.ID }

// DataFileStore keeps user-provided data files. Implementations must be safe
// for concurrent use.
type DataFileStore interface {
	Put(ctx context.Context, name string, data []byte) (DataFile, error)
	Get(ctx context.Context, id string) ([]byte, error)
	List(ctx context.Context) ([]DataFile, error)
	Delete(ctx context.Context, id string) error
}
