/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package keyval implements a local BoltDB-backed recovery record backend
package keyval

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/storage"

	"github.com/boltdb/bolt"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// BoltConfig is a BoltDB configuration
type BoltConfig struct {
	// Path is a path to DB file
	Path string `json:"path"`
	// Readonly sets bolt to read only mode
	Readonly bool `json:"readonly"`
	// When left unspecified, it will block for maximum of defaults.DBOpenTimeout.
	// When set to a negative duration, it will fail immediately if the file is already locked.
	// Use NoTimeout to make the operation non-blocking
	Timeout time.Duration
}

// NoTimeout defines a special duration value indicating that the blocking operation
// should not block
const NoTimeout = -1

// CheckAndSetDefaults validates this configuration and sets defaults
func (b *BoltConfig) CheckAndSetDefaults() error {
	if b.Path == "" {
		return trace.BadParameter("missing Path parameter")
	}
	path, err := filepath.Abs(b.Path)
	if err != nil {
		return trace.Wrap(err, "expected a valid path")
	}
	dir := filepath.Dir(path)
	s, err := os.Stat(dir)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	if !s.IsDir() {
		return trace.BadParameter("path '%v' should be a valid directory", dir)
	}
	if b.Timeout == 0 {
		b.Timeout = defaults.DBOpenTimeout
	}
	return nil
}

// Bolt is a BoltDB-backed recovery record backend.
//
// Every record is a nested bucket under the recovery root bucket,
// with one key per auto scaling group. Each method runs in a single
// bolt transaction which gives conditional create, upsert and remove
// the same semantics DynamoDB provides for a single item
type Bolt struct {
	sync.Mutex
	logrus.FieldLogger

	db   *bolt.DB
	path string
}

// NewBolt returns new BoltDB-backed recovery record backend
func NewBolt(cfg BoltConfig) (*Bolt, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	b := &Bolt{
		path: path,
		FieldLogger: logrus.WithFields(logrus.Fields{
			trace.Component: "boltdb",
			"path":          path,
		}),
	}
	// When opening bolt in read-only mode, make sure bolt properly initializes
	// the database file in case no database file exists before applying
	// read-only mode
	if cfg.Readonly {
		if err := b.initDatafile(path); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	if err := b.open(cfg.Readonly, cfg.Timeout); err != nil {
		return nil, trace.Wrap(err)
	}
	return b, nil
}

// GetRecord returns the recovery record for the specified key
func (b *Bolt) GetRecord(ctx context.Context, key string) (*storage.RecoveryRecord, error) {
	record := storage.RecoveryRecord{
		Key:    key,
		Events: make(map[string]storage.UpdateAutoScalingGroupEvent),
	}
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := getBucket(tx, recordBucket(key))
		if err != nil {
			return trace.Wrap(err)
		}
		return bkt.ForEach(func(name, data []byte) error {
			event, err := storage.UnmarshalEvent(string(data))
			if err != nil {
				return trace.Wrap(err, "invalid entry %s in record %v", name, key)
			}
			record.Events[string(name)] = *event
			return nil
		})
	})
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.NotFound("recovery record %v not found", key)
		}
		return nil, trace.Wrap(err)
	}
	return &record, nil
}

// CreateRecord creates an empty recovery record.
// Returns trace.AlreadyExists if the record exists
func (b *Bolt) CreateRecord(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := createBucket(tx, recordBucket(key))
		return trace.Wrap(err)
	})
	if err != nil {
		if trace.IsAlreadyExists(err) {
			return trace.AlreadyExists("recovery record %v already exists", key)
		}
		return trace.Wrap(err)
	}
	b.WithField("key", key).Debug("Created recovery record.")
	return nil
}

// UpsertEntry creates or replaces the entry of the event's auto scaling group.
// The record must exist
func (b *Bolt) UpsertEntry(ctx context.Context, key string, event storage.UpdateAutoScalingGroupEvent) error {
	if err := event.Check(); err != nil {
		return trace.Wrap(err)
	}
	data, err := storage.MarshalEvent(event)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := getBucket(tx, recordBucket(key))
		if err != nil {
			return trace.Wrap(err)
		}
		return trace.Wrap(bkt.Put([]byte(event.Details.Name), []byte(data)))
	}))
}

// RemoveEntry removes the entry of the specified auto scaling group.
// Removing an entry from a missing record is a no-op
func (b *Bolt) RemoveEntry(ctx context.Context, key, asgName string) error {
	if asgName == "" {
		return trace.BadParameter("missing auto scaling group name")
	}
	return trace.Wrap(b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := getBucket(tx, recordBucket(key))
		if err != nil {
			if trace.IsNotFound(err) {
				return nil
			}
			return trace.Wrap(err)
		}
		return trace.Wrap(bkt.Delete([]byte(asgName)))
	}))
}

// Close closes the underlying database
func (b *Bolt) Close() error {
	b.Lock()
	defer b.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return trace.Wrap(err)
}

func (b *Bolt) open(readonly bool, timeout time.Duration) error {
	b.Lock()
	defer b.Unlock()
	if b.db != nil {
		return trace.AlreadyExists("database %v is already open", b.path)
	}
	if timeout == NoTimeout {
		timeout = 0
	}
	db, err := bolt.Open(b.path, defaults.PrivateFileMask, &bolt.Options{
		Timeout:  timeout,
		ReadOnly: readonly,
	})
	if err != nil {
		if err == bolt.ErrTimeout {
			return trace.ConnectionProblem(err,
				"database %v is locked, is another instance running?", b.path)
		}
		// bolt needs mmap so when running on a filesystem that doesn't support
		// it, the mmap call fails with errno == "invalid value"
		if err == syscall.EINVAL {
			return trace.BadParameter("%v resides on a filesystem without mmap support", b.path)
		}
		return trace.Wrap(err)
	}
	b.db = db
	return nil
}

func (b *Bolt) initDatafile(path string) error {
	_, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return trace.ConvertSystemError(err)
	}
	if os.IsNotExist(err) {
		db, err := bolt.Open(path, defaults.PrivateFileMask, &bolt.Options{
			Timeout: defaults.DBOpenTimeout,
		})
		if err != nil {
			return trace.Wrap(err)
		}
		defer db.Close()
		b.Debug("Initialized datafile.")
	}
	return nil
}

func recordBucket(key string) []string {
	return []string{rootBucket, recordsBucket, key}
}

func createBucket(tx *bolt.Tx, buckets []string) (*bolt.Bucket, error) {
	bkt, err := tx.CreateBucketIfNotExists([]byte(buckets[0]))
	if err != nil {
		return nil, trace.Wrap(boltErr(err))
	}
	rest := buckets[1:]
	for i, key := range rest {
		if i == len(rest)-1 {
			bkt, err = bkt.CreateBucket([]byte(key))
		} else {
			bkt, err = bkt.CreateBucketIfNotExists([]byte(key))
		}
		if err != nil {
			return nil, trace.Wrap(boltErr(err))
		}
	}
	return bkt, nil
}

func getBucket(tx *bolt.Tx, buckets []string) (*bolt.Bucket, error) {
	bkt := tx.Bucket([]byte(buckets[0]))
	if bkt == nil {
		return nil, trace.NotFound("bucket %v not found", buckets[0])
	}
	for _, key := range buckets[1:] {
		bkt = bkt.Bucket([]byte(key))
		if bkt == nil {
			return nil, trace.NotFound("bucket %v not found", key)
		}
	}
	return bkt, nil
}

func boltErr(err error) error {
	if err == bolt.ErrBucketNotFound {
		return trace.NotFound(err.Error())
	}
	if err == bolt.ErrBucketExists {
		return trace.AlreadyExists(err.Error())
	}
	return err
}

const (
	rootBucket    = "root"
	recordsBucket = "recovery"
)
