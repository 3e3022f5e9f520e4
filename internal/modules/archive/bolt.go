package archive

import (
	"context"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var slotsBucket = []byte("slots")

// BoltStore keeps slots in a local bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, errors.Wrapf(ErrStoreLocked, "open bolt store %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create slots bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(slotsBucket).Get([]byte(key))
		if v != nil {
			// v is only valid inside the transaction.
			value, ok = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "read slot %s", key)
	}
	return value, ok, nil
}

func (s *BoltStore) Set(ctx context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(slotsBucket).Put([]byte(key), []byte(value))
	})
	return errors.Wrapf(err, "write slot %s", key)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
