// Package store persists assembled tables as paired artifacts: a
// SQLite database for downstream consumption and a CSV rendering for
// inspection. The database form is authoritative; Load reads it back.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
	"github.com/simonaseno/nhanes/pkg/metrics"
)

// Artifact naming constants.
const (
	binaryExt      = ".db"
	textExt        = ".csv"
	partialSuffix  = ".partial"
	dirPermissions = 0o755
)

// Artifacts lists the files written for one persisted table.
type Artifacts struct {
	Binary string
	Text   string
	Rows   int
}

// Store persists tables and reads them back.
type Store interface {
	// Persist writes tbl under base, producing base+".db" and
	// base+".csv". Both files are complete or absent, never partial.
	Persist(ctx context.Context, tbl *table.Table, base string) (Artifacts, error)

	// Load reads the table previously persisted under base.
	Load(ctx context.Context, base string) (*table.Table, error)
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	logger logger.Logger
}

// NewFileStore creates a file-backed store with configuration options.
func NewFileStore(opts ...Option) *FileStore {
	s := &FileStore{
		logger: logger.Get().Named("store"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Persist writes both artifact forms. Each file is staged next to its
// destination and renamed into place once fully written.
func (s *FileStore) Persist(ctx context.Context, tbl *table.Table, base string) (Artifacts, error) {
	start := time.Now()

	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return Artifacts{}, fmt.Errorf("creating artifact directory: %w", err)
		}
	}

	a := Artifacts{
		Binary: base + binaryExt,
		Text:   base + textExt,
		Rows:   tbl.NumRows(),
	}

	if err := writeDB(ctx, tbl, a.Binary); err != nil {
		return Artifacts{}, fmt.Errorf("writing %s: %w", a.Binary, err)
	}
	metrics.RecordArtifactWritten("db")

	if err := writeCSV(tbl, a.Text); err != nil {
		return Artifacts{}, fmt.Errorf("writing %s: %w", a.Text, err)
	}
	metrics.RecordArtifactWritten("csv")

	name := filepath.Base(base)
	metrics.UpdateArtifactRows(name, tbl.NumRows())
	metrics.RecordPersistDuration(float64(time.Since(start).Milliseconds()))

	s.logger.Debug(ctx, "artifacts written",
		logger.String("artifact", name),
		logger.Int("rows", tbl.NumRows()),
		logger.Int("columns", tbl.NumCols()),
	)

	return a, nil
}

// Load reads the database artifact previously persisted under base.
func (s *FileStore) Load(ctx context.Context, base string) (*table.Table, error) {
	path := base + binaryExt
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoArtifact, path)
		}
		return nil, fmt.Errorf("locating %s: %w", path, err)
	}

	tbl, err := readDB(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	s.logger.Debug(ctx, "artifact loaded",
		logger.String("artifact", filepath.Base(base)),
		logger.Int("rows", tbl.NumRows()),
	)

	return tbl, nil
}
