package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bolt is the persistent backend. Each table is a bucket; every step of
// the VM is one bolt read-write transaction.
type Bolt struct {
	db *bolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, t := range AllTables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Begin() (Tx, error) {
	tx, err := b.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &boltTx{tx: tx}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

type boltTx struct {
	tx   *bolt.Tx
	done bool
}

func (tx *boltTx) bucket(t Table) (*bolt.Bucket, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	bk := tx.tx.Bucket([]byte(t))
	if bk == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, t)
	}
	return bk, nil
}

func (tx *boltTx) Get(t Table, id string, v any) error {
	bk, err := tx.bucket(t)
	if err != nil {
		return err
	}
	raw := bk.Get([]byte(id))
	if raw == nil {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, t, id)
	}
	return json.Unmarshal(raw, v)
}

func (tx *boltTx) Insert(t Table, id string, v any) error {
	bk, err := tx.bucket(t)
	if err != nil {
		return err
	}
	if bk.Get([]byte(id)) != nil {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, t, id)
	}
	return tx.Put(t, id, v)
}

func (tx *boltTx) Put(t Table, id string, v any) error {
	bk, err := tx.bucket(t)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", t, id, err)
	}
	return bk.Put([]byte(id), raw)
}

func (tx *boltTx) Delete(t Table, id string) error {
	bk, err := tx.bucket(t)
	if err != nil {
		return err
	}
	return bk.Delete([]byte(id))
}

// Scan hands fn values that are only valid for the duration of the call.
func (tx *boltTx) Scan(t Table, fn func(id string, raw []byte) error) error {
	bk, err := tx.bucket(t)
	if err != nil {
		return err
	}
	return bk.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

func (tx *boltTx) Clear(t Table) error {
	if _, err := tx.bucket(t); err != nil {
		return err
	}
	name := []byte(t)
	if err := tx.tx.DeleteBucket(name); err != nil {
		return err
	}
	_, err := tx.tx.CreateBucket(name)
	return err
}

func (tx *boltTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	return tx.tx.Commit()
}

func (tx *boltTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.tx.Rollback()
}
