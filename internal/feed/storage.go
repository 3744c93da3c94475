package feed

import (
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"time"

	"github.com/capcom6/difffeed/internal/snapshot"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

const storageVersion = 1

type document struct {
	Version int           `yaml:"version"`
	Files   []string      `yaml:"files"`
	Items   []eventRecord `yaml:"items"`
}

type eventRecord struct {
	Time    time.Time `yaml:"time"`
	Added   []string  `yaml:"added,omitempty"`
	Removed []string  `yaml:"removed,omitempty"`
}

// Load reads a history saved by Save. Errors wrap fs.ErrNotExist when the
// file is missing and ErrCorruptStorage when it can't be understood; callers
// decide whether to start over with New.
func Load(filename string, maxItems int, opts ...Option) (*History, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", filename, err)
	}

	var doc document
	if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStorage, filename, yamlErr)
	}

	if validErr := doc.validate(); validErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStorage, filename, validErr)
	}

	h := New(maxItems, opts...)
	h.files = append(snapshot.FileSet{}, doc.Files...)
	for _, record := range doc.Items {
		event, eventErr := NewEvent(record.Time, record.Added, record.Removed)
		if eventErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStorage, filename, eventErr)
		}
		h.Push(event)
	}

	return h, nil
}

// Save atomically replaces filename with the serialized history.
func Save(filename string, h *History) error {
	doc := document{
		Version: storageVersion,
		Files:   h.Files(),
		Items:   make([]eventRecord, 0, h.Len()),
	}

	for _, event := range h.Events() {
		doc.Items = append(doc.Items, eventRecord{
			Time:    event.Time(),
			Added:   event.Added(),
			Removed: event.Removed(),
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("can't encode history: %w", err)
	}

	if err := renameio.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("can't save history: %w", err)
	}

	return nil
}

func (d *document) validate() error {
	if d.Version != storageVersion {
		return fmt.Errorf("unsupported version %d", d.Version)
	}

	seen := make(map[string]struct{}, len(d.Files))
	for _, file := range d.Files {
		if err := validatePath(file); err != nil {
			return err
		}
		if _, ok := seen[file]; ok {
			return fmt.Errorf("duplicate file %q", file)
		}
		seen[file] = struct{}{}
	}

	for i, item := range d.Items {
		if item.Time.IsZero() {
			return fmt.Errorf("item %d has no time", i)
		}
		if len(item.Added) == 0 && len(item.Removed) == 0 {
			return fmt.Errorf("item %d has no changes", i)
		}
		for _, file := range slices.Concat(item.Added, item.Removed) {
			if err := validatePath(file); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}

	return nil
}

func validatePath(file string) error {
	if file == "" {
		return errors.New("empty path")
	}
	if path.IsAbs(file) {
		return fmt.Errorf("absolute path %q", file)
	}
	return nil
}
