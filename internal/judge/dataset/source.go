package dataset

import "context"

// Source resolves the dataset of a problem before judging.
type Source interface {
	Open(ctx context.Context, problemID int64) (Dataset, error)
}

// LocalSource reads datasets straight from a data directory.
type LocalSource struct {
	Root string
}

func (s LocalSource) Open(ctx context.Context, problemID int64) (Dataset, error) {
	return Open(s.Root, problemID)
}
