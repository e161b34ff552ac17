package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var errRecordMissing = errors.New("record file does not exist")

// collection stores one JSON document per record under root/<name>/<key>.json.
type collection[T any] struct {
	dir string
}

func newCollection[T any](root, name string) collection[T] {
	return collection[T]{dir: path.Join(root, name)}
}

func (c collection[T]) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)

	return filepath.Clean(path.Join(c.dir, safe+".json"))
}

func (c collection[T]) read(key string) (*T, error) {
	body, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errRecordMissing
		}

		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return &record, nil
}

func (c collection[T]) write(key string, record *T) error {
	err := os.MkdirAll(c.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	return os.WriteFile(c.path(key), data, 0600)
}

// remove reports whether the record existed.
func (c collection[T]) remove(key string) (bool, error) {
	err := os.Remove(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return true, nil
}

func (c collection[T]) all() ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	records := make([]*T, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		record, err := c.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			if errors.Is(err, errRecordMissing) {
				continue
			}

			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}
