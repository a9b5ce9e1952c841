package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/orchestral/conductor/internal/metrickeys"
	lg "github.com/orchestral/conductor/log"
	"github.com/orchestral/conductor/metrics"
)

type fileStore struct {
	dir     string
	options Options
}

// NewFileStore stores one JSON document per key at dir, named {key}.json.
// An empty dir disables checkpointing: the returned store accepts saves and
// reports ErrNotFound on loads, without failing the caller.
func NewFileStore(dir string, opts ...Option) Store {
	if dir == "" {
		return NewNoopStore()
	}

	return &fileStore{
		dir:     dir,
		options: ApplyOptions(opts...),
	}
}

var _ Store = (*fileStore)(nil)

func (s *fileStore) Save(ctx context.Context, key string, state any) error {
	data, err := s.options.Converter.To(state)
	if err != nil {
		return &IOError{Op: "save", Key: key, Err: err}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &IOError{Op: "save", Key: key, Err: err}
	}

	path := s.path(key)

	// Write to a temp file first so readers never observe a partial document.
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return &IOError{Op: "save", Key: key, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &IOError{Op: "save", Key: key, Err: err}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &IOError{Op: "save", Key: key, Err: err}
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &IOError{Op: "save", Key: key, Err: err}
	}

	s.options.Logger.Debug("checkpoint saved", lg.CheckpointKey, key)
	s.options.Metrics.Counter(metrickeys.CheckpointSaved, metrics.Tags{metrickeys.Store: "file"}, 1)

	return nil
}

func (s *fileStore) Load(ctx context.Context, key string, vptr any) error {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return &IOError{Op: "load", Key: key, Err: err}
	}

	if err := s.options.Converter.From(data, vptr); err != nil {
		return &IOError{Op: "load", Key: key, Err: err}
	}

	s.options.Metrics.Counter(metrickeys.CheckpointLoaded, metrics.Tags{metrickeys.Store: "file"}, 1)

	return nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "delete", Key: key, Err: err}
	}

	return nil
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", sanitizeKey(key)))
}

// sanitizeKey keeps keys usable as file names.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		default:
			return r
		}
	}, key)
}
