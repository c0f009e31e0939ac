package learning

import (
	"context"
	"fmt"

	"github.com/keshon/datastore"
)

const (
	recordsKey  = "action_records"
	insightsKey = "insights"
)

// Store persists learning state in a single JSON-backed datastore file.
type Store struct {
	ds *datastore.DataStore
}

// NewStore opens (or creates) the datastore file at path. The context
// bounds the store's background routines.
func NewStore(ctx context.Context, path string) (*Store, error) {
	ds, err := datastore.New(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{ds: ds}, nil
}

// Load reads persisted records and insights. Missing keys are not errors.
func (s *Store) Load() ([]*ActionRecord, []*Insight, error) {
	var records []*ActionRecord
	if _, err := s.ds.Get(recordsKey, &records); err != nil {
		return nil, nil, fmt.Errorf("error loading %s: %w", recordsKey, err)
	}
	var insights []*Insight
	if _, err := s.ds.Get(insightsKey, &insights); err != nil {
		return nil, nil, fmt.Errorf("error loading %s: %w", insightsKey, err)
	}
	return records, insights, nil
}

// SaveRecords replaces the persisted record set.
func (s *Store) SaveRecords(records []*ActionRecord) error {
	return s.ds.Set(recordsKey, records)
}

// SaveInsights replaces the persisted insight set.
func (s *Store) SaveInsights(insights []*Insight) error {
	return s.ds.Set(insightsKey, insights)
}

// Close flushes and closes the datastore.
func (s *Store) Close() error {
	return s.ds.Close()
}
