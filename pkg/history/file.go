package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/types"
)

const (
	DefaultFileName = ".cellroute-history.json"
)

// FileStore keeps swap records in a single JSON file. The file is re-read
// before every operation, so records written by other processes sharing the
// path are seen and kept; an upsert only replaces the record with its own id.
type FileStore struct {
	filePath string
	mu       sync.Mutex
}

var _ Repository = (*FileStore)(nil)

// fileLayout represents the JSON structure on disk
type fileLayout struct {
	Swaps map[string]Record `json:"swaps"`
}

// NewFileStore opens the history file, creating it lazily on first write. An
// empty path means $HOME/.cellroute-history.json.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	store := &FileStore{filePath: filePath}
	if _, err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// load reads every record from disk. A missing file holds no records.
func (s *FileStore) load() (map[string]Record, error) {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if layout.Swaps == nil {
		layout.Swaps = make(map[string]Record)
	}
	return layout.Swaps, nil
}

func (s *FileStore) save(records map[string]Record) error {
	data, err := json.MarshalIndent(fileLayout{Swaps: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmp, err := os.CreateTemp(dir, filepath.Base(s.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id common.Hash) (*types.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[id.Hex()]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Swap()
}

func (s *FileStore) Upsert(ctx context.Context, swap *types.Swap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records[swap.ID.Hex()] = NewRecord(swap)
	return s.save(records)
}

func (s *FileStore) List(ctx context.Context) ([]*types.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Swap, 0, len(records))
	for key, rec := range records {
		swap, err := rec.Swap()
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", key, err)
		}
		out = append(out, swap)
	}
	sortNewestFirst(out)
	return out, nil
}

// Path returns the history file location.
func (s *FileStore) Path() string {
	return s.filePath
}
