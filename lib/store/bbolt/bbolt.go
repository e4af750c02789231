package bbolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store"
	"go.etcd.io/bbolt"
)

// Sentinel error values used for testing and in admin-visible error messages.
var (
	ErrBucketDoesNotExist = errors.New("bbolt: bucket does not exist")
	ErrNotExists          = errors.New("bbolt: value does not exist in store")
)

var (
	dataKey   = []byte("data")
	expiryKey = []byte("expiry")
)

// Store implements store.Interface backed by bbolt[1].
//
// Every value lives in its own bucket holding two keys:
//
// 1. data - The raw data; rate limit counters are decimal integers
// 2. expiry - The expiry time formatted as a time.RFC3339Nano timestamp string
//
// Cleanup only has to scan expiry keys to find dead buckets.
//
// bbolt holds an exclusive file lock, so a database can only back a single
// instance. Replicas that need a shared rate limit should use valkey.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb *bbolt.DB
}

// Delete a key from the datastore. If the key does not exist, return an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(key)) == nil {
			return fmt.Errorf("%w: %w: %q", store.ErrNotFound, ErrNotExists, key)
		}

		return tx.DeleteBucket([]byte(key))
	})
}

// expiry reads the expiry time of an item bucket.
func expiry(key string, itemBucket *bbolt.Bucket) (time.Time, error) {
	expiryStr := itemBucket.Get(expiryKey)
	if expiryStr == nil {
		return time.Time{}, fmt.Errorf("[unexpected] %w: %q (expiry is nil)", store.ErrNotFound, key)
	}

	result, err := time.Parse(time.RFC3339Nano, string(expiryStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("[unexpected] %w: %w", store.ErrCantDecode, err)
	}

	return result, nil
}

// Get a value from the datastore. Expired values are deleted in the
// background and reported as missing.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		itemBucket := tx.Bucket([]byte(key))
		if itemBucket == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		exp, err := expiry(key, itemBucket)
		if err != nil {
			return err
		}

		if time.Now().After(exp) {
			go s.Delete(context.Background(), key)
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		data := itemBucket.Get(dataKey)
		if data == nil {
			return fmt.Errorf("[unexpected] %w: %q (data is nil)", store.ErrNotFound, key)
		}

		result = append([]byte(nil), data...)
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func put(tx *bbolt.Tx, key string, value []byte, expires time.Time) error {
	valueBkt, err := tx.CreateBucketIfNotExists([]byte(key))
	if err != nil {
		return fmt.Errorf("%w: %w: %q (create bucket)", store.ErrCantEncode, err, key)
	}

	if err := valueBkt.Put(expiryKey, []byte(expires.Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
	}

	if err := valueBkt.Put(dataKey, value); err != nil {
		return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
	}

	return nil
}

// Set a value into the store with a given expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := time.Now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return put(tx, key, value, expires)
	})
}

// Increment bumps a counter inside a single read-write transaction. bbolt
// serializes writers, which makes the read-modify-write atomic.
func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var count int64

	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		now := time.Now()
		expires := now.Add(window)

		if itemBucket := tx.Bucket([]byte(key)); itemBucket != nil {
			exp, err := expiry(key, itemBucket)
			if err != nil {
				return err
			}

			if !now.After(exp) {
				count, err = strconv.ParseInt(string(itemBucket.Get(dataKey)), 10, 64)
				if err != nil {
					return fmt.Errorf("%w: counter %q: %w", store.ErrCantDecode, key, err)
				}
				expires = exp
			}
		}

		count++
		return put(tx, key, []byte(strconv.FormatInt(count, 10)), expires)
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		var dead [][]byte

		if err := tx.ForEach(func(key []byte, valueBkt *bbolt.Bucket) error {
			if valueBkt.Get(expiryKey) == nil {
				slog.Warn("while running cleanup, expiry is not set somehow, file a bug?", "key", string(key))
				return nil
			}

			exp, err := expiry(string(key), valueBkt)
			if err != nil {
				return fmt.Errorf("in bucket %q: %w", string(key), err)
			}

			if now.After(exp) {
				dead = append(dead, append([]byte(nil), key...))
			}

			return nil
		}); err != nil {
			return err
		}

		for _, key := range dead {
			if err := tx.DeleteBucket(key); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
