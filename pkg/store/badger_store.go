package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/types"
)

const reportPrefix = "report:"

// BadgerStore is the on-disk run journal.
type BadgerStore struct {
	db     *badger.DB
	logger log.Logger
}

// Open opens or creates the journal at dir.
func Open(dir string, logger log.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run journal at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, logger: logger.WithComponent("store")}, nil
}

// SaveReport persists one finished run report. Keys embed the start time
// so key order matches run order.
func (s *BadgerStore) SaveReport(report *types.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.RunID, err)
	}
	key := reportKey(report.StartedAt, report.RunID)

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.RunID, err)
	}
	return nil
}

// GetReport returns the report for a run ID.
func (s *BadgerStore) GetReport(runID string) (*types.Report, error) {
	var found *types.Report

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(reportPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !strings.HasSuffix(string(it.Item().Key()), ":"+runID) {
				continue
			}
			return it.Item().Value(func(val []byte) error {
				var report types.Report
				if err := json.Unmarshal(val, &report); err != nil {
					return fmt.Errorf("decode report %s: %w", runID, err)
				}
				found = &report
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ListReports returns up to limit reports, newest first.
func (s *BadgerStore) ListReports(limit int) ([]*types.Report, error) {
	var reports []*types.Report

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(reportPrefix)
		// Reverse iteration seeks past the end of the prefix range.
		seek := append([]byte(reportPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(reports) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var report types.Report
				if err := json.Unmarshal(val, &report); err != nil {
					return err
				}
				reports = append(reports, &report)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// keyTimeLayout is fixed width so key order matches chronological order.
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

func reportKey(startedAt time.Time, runID string) []byte {
	return []byte(reportPrefix + startedAt.UTC().Format(keyTimeLayout) + ":" + runID)
}
