package store

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

// CaptureStore persists captures. Each record field is stored under its own
// predicate:id key.
type CaptureStore struct {
	Store      *badger.DB
	filepath   string
	predicates []*PredicateField
}

// NewCaptureStore for capture storage
func NewCaptureStore(filepath string) *CaptureStore {
	return &CaptureStore{filepath: filepath}
}

// Init the capture storage
func (s *CaptureStore) Init() error {
	var err error

	if err = os.MkdirAll(s.filepath, 0755); err != nil {
		return err
	}

	opts := badger.DefaultOptions(s.filepath).WithLogger(badgerLogger{})
	s.Store, err = badger.Open(opts)

	if errors.Is(err, badger.ErrTruncateNeeded) {
		log.Warn().Msg("there was a failure re-opening database, trying to recover")
		opts.Truncate = true
		s.Store, err = badger.Open(opts)
	}

	if err != nil {
		return errors.Wrap(err, "failed to open capture store")
	}

	s.predicates = discoverPredicates(&Record{})
	return nil
}

// Observe persists capture, errors are logged
func (s *CaptureStore) Observe(capture *xhrk.Capture) {
	if err := s.Add(NewRecord(capture)); err != nil {
		log.Error().Err(err).Str("capture_id", capture.ID).Msg("failed to store capture")
	}
}

// Add a record
func (s *CaptureStore) Add(record *Record) error {
	if record.ID == "" {
		return errors.New("record has no id")
	}

	return s.Store.Update(func(txn *badger.Txn) error {
		rv := reflect.ValueOf(*record)
		for _, pred := range s.predicates {
			bytez, err := Encode(rv, pred.index)
			if err != nil {
				return errors.Wrapf(err, "encoding %s", pred.name)
			}
			// key = <predicate>:<id>, value = msgpack'd bytes
			if err := txn.Set(MakeKey([]byte(record.ID), pred.name), bytez); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get the record by id
func (s *CaptureStore) Get(id string) (*Record, error) {
	var record *Record
	err := s.Store.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(MakeKey([]byte(id), "id")); err != nil {
			return err
		}

		var err error
		record, err = DecodeRecord(txn, s.predicates, []byte(id))
		return err
	})
	return record, err
}

// All records ordered by the time they were observed
func (s *CaptureStore) All() ([]*Record, error) {
	return s.find(func(*Record) bool { return true })
}

// ForRequest returns the records of a single intercepted request in order
func (s *CaptureStore) ForRequest(requestID string) ([]*Record, error) {
	return s.find(func(r *Record) bool { return r.RequestID == requestID })
}

func (s *CaptureStore) find(match func(r *Record) bool) ([]*Record, error) {
	records := make([]*Record, 0)
	err := s.Store.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte("id:")})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id := GetID(it.Item().KeyCopy(nil))
			record, err := DecodeRecord(txn, s.predicates, id)
			if err != nil {
				return err
			}
			if match(record) {
				records = append(records, record)
			}
		}
		return nil
	})

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Observed.Before(records[j].Observed)
	})
	return records, err
}

// Close the capture store
func (s *CaptureStore) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// badgerLogger sends badger's logs through zerolog
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Str("component", "badger").Msg(trimLine(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn().Str("component", "badger").Msg(trimLine(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msg(trimLine(format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msg(trimLine(format, args...))
}

func trimLine(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
