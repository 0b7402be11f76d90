// Package metadata persists the post collection as one JSON document.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	igerrors "igepub/pkg/errors"
	"igepub/pkg/logger"
	"igepub/pkg/models"
	"igepub/pkg/storage"
)

// Store reads and writes the posts document at a fixed path
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store for the document at path
func NewStore(path string) *Store {
	return &Store{path: path, logger: logger.GetLogger()}
}

// SetLogger sets where dropped records are reported
func (s *Store) SetLogger(log logger.Logger) {
	if log != nil {
		s.logger = log
	}
}

// Path returns the document location
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a document is present
func (s *Store) Exists() bool {
	return storage.FileExists(s.path)
}

// Save sorts the collection by capture time and replaces the document.
// The collection passed in is sorted in place.
func (s *Store) Save(collection models.Collection) error {
	collection.SortByCapturedAt()

	if collection == nil {
		collection = models.Collection{}
	}

	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal posts: %w", err)
	}

	if err := storage.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write posts document: %w", err)
	}
	return nil
}

// Load reads the document. A missing document yields a not_found error,
// which callers treat as nothing to build. A record that breaks the id
// invariant is logged and dropped; the rest of the document still loads.
func (s *Store) Load() (models.Collection, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, igerrors.New(igerrors.ErrorTypeNotFound, fmt.Sprintf("posts document %s does not exist", s.path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read posts document: %w", err)
	}

	var records models.Collection
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeParsing, err, fmt.Sprintf("posts document %s is not a JSON array of posts", s.path))
	}

	collection := make(models.Collection, 0, len(records))
	for i, record := range records {
		if err := record.Validate(); err != nil {
			s.logger.WithError(err).WarnWithFields("Dropping invalid post record", map[string]interface{}{
				"path":   s.path,
				"record": i,
			})
			continue
		}
		collection = append(collection, record)
	}
	return collection, nil
}
