package store

import (
	"bytes"
	"reflect"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v4"
)

// PredicateField of a record, index is the struct field index
type PredicateField struct {
	index int
	name  string
}

// MakeKey of a predicate and id
func MakeKey(id []byte, predicate string) []byte {
	key := []byte(predicate)
	key = append(key, byte(':'))
	key = append(key, id...)
	return key
}

// GetID of key from a pred:key
func GetID(key []byte) []byte {
	split := bytes.SplitN(key, []byte(":"), 2)
	if len(split) == 1 {
		return []byte{}
	}
	return split[1]
}

// GetPredicate from pred:key
func GetPredicate(key []byte) []byte {
	split := bytes.SplitN(key, []byte(":"), 2)
	return split[0]
}

// Encode a struct reflect.Value denoted by index into a msgpack []byte slice
func Encode(val reflect.Value, index int) ([]byte, error) {
	return msgpack.Marshal(val.Field(index).Interface())
}

// discoverPredicates from the store tags of f's struct type
func discoverPredicates(f interface{}) []*PredicateField {
	predicates := make([]*PredicateField, 0)
	rt := reflect.TypeOf(f).Elem()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		fname := f.Tag.Get("store")
		if fname != "" {
			predicates = append(predicates, &PredicateField{
				index: i,
				name:  fname,
			})
		}
	}
	return predicates
}

// DecodeRecord takes a transaction and an id and returns the record or err
func DecodeRecord(txn *badger.Txn, predicates []*PredicateField, id []byte) (*Record, error) {
	record := &Record{}
	rv := reflect.ValueOf(record).Elem()

	for _, pred := range predicates {
		item, err := txn.Get(MakeKey(id, pred.name))
		if err == badger.ErrKeyNotFound {
			continue
		}

		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", pred.name)
		}

		if err := DecodeRecordItem(item, rv.Field(pred.index)); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", pred.name)
		}
	}

	return record, nil
}

// DecodeRecordItem of the predicate value into the record field
func DecodeRecordItem(item *badger.Item, field reflect.Value) error {
	return item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, field.Addr().Interface())
	})
}
