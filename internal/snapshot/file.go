package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend persists every key in one JSON document. Each Save rewrites the
// document through a temp file and rename.
type FileBackend struct {
	path   string
	values map[string]json.RawMessage
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{
		path:   path,
		values: make(map[string]json.RawMessage),
	}
}

func (b *FileBackend) LoadAll() (map[string][]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	if err := json.Unmarshal(data, &b.values); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	if b.values == nil {
		b.values = make(map[string]json.RawMessage)
	}

	out := make(map[string][]byte, len(b.values))
	for k, v := range b.values {
		out[k] = []byte(v)
	}
	return out, nil
}

func (b *FileBackend) Save(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}
	b.values[key] = json.RawMessage(append([]byte(nil), value...))

	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return os.Rename(tmp, b.path)
}

func (b *FileBackend) Close() error {
	return nil
}
