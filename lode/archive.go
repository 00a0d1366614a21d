// Package lode archives exported animation files and session records to
// a Lode store (local filesystem, memory or S3).
//
// Files land at Hive-partitioned paths under files/, next to the JSONL
// session dataset:
//
//	datasets/<dataset>/partitions/mode=<m>/day=<d>/session_id=<id>/files/<name>
package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// Archiver stores the files written by one session together with its
// record. It returns the store keys of the archived files.
type Archiver interface {
	ArchiveSession(ctx context.Context, rec SessionRecord, files []string) ([]string, error)
	// Backend names the store ("fs", "s3", "memory").
	Backend() string
}

// Archive is a Lode-backed Archiver.
type Archive struct {
	dataset lode.Dataset
	name    string
	backend string

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu sync.Mutex // serializes ArchiveSession
}

var _ Archiver = (*Archive)(nil)

// NewArchive creates an archive over the given store factory.
// Use lode.NewMemoryFactory() for testing.
func NewArchive(dataset, backend string, factory lode.StoreFactory) (*Archive, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newSessionDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &Archive{
		dataset:      ds,
		name:         dataset,
		backend:      backend,
		storeFactory: factory,
	}, nil
}

// NewFSArchive creates an archive rooted at a local directory. An empty
// dataset means DefaultDataset.
func NewFSArchive(root, dataset string) (*Archive, error) {
	return NewArchive(dataset, "fs", lode.NewFSFactory(root))
}

func newSessionDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("mode", "day", "session_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// Backend implements Archiver.
func (a *Archive) Backend() string {
	return a.backend
}

// ArchiveSession copies each file into the store, then writes the session
// record listing the stored keys. A failed copy aborts before the record
// is written, so a record never references a missing file.
func (a *Archive) ArchiveSession(ctx context.Context, rec SessionRecord, files []string) ([]string, error) {
	if rec.SessionID == "" {
		return nil, errors.New("archive: session record has no session_id")
	}
	if rec.Day == "" {
		rec.Day = DeriveDay(rec.StartedAt)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	store, err := a.getOrCreateStore()
	if err != nil {
		return nil, WrapInitError(err, a.name)
	}

	stored := make([]string, 0, len(files))
	for _, file := range files {
		key := a.buildFilePath(rec, filepath.Base(file))
		if err := putFile(ctx, store, key, file); err != nil {
			return stored, err
		}
		stored = append(stored, key)
	}

	rec.Files = stored
	if _, err := a.dataset.Write(ctx, []any{rec.toMap()}, lode.Metadata{}); err != nil {
		return stored, WrapWriteError(err, fmt.Sprintf("%s/session_id=%s", a.name, rec.SessionID))
	}
	return stored, nil
}

func putFile(ctx context.Context, store lode.Store, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return WrapReadError(err, file)
	}
	defer f.Close()
	if err := store.Put(ctx, key, f); err != nil {
		return WrapWriteError(err, key)
	}
	return nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (a *Archive) getOrCreateStore() (lode.Store, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = a.storeFactory()
	})
	return a.store, a.storeErr
}

// buildFilePath computes the Hive-partitioned key for an exported file.
func (a *Archive) buildFilePath(rec SessionRecord, filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/mode=%s/day=%s/session_id=%s/files/%s",
		a.name, rec.Mode, rec.Day, rec.SessionID, filename)
}
