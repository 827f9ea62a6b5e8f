// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	writeOpt = &opt.WriteOptions{}
	readOpt  = &opt.ReadOptions{}
)

// Options options for creating a leveldb instance.
type Options struct {
	CacheSize              int
	OpenFilesCacheCapacity int
}

type levelDB struct {
	db *leveldb.DB
}

var _ Store = (*levelDB)(nil)

// OpenLevelDB opens (or creates) a persistent leveldb store at path.
func OpenLevelDB(path string, opts Options) (Store, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb storage")
	}
	return openLevelDB(stg, opts)
}

// NewMemStore creates an in-memory store, for tests and solo mode.
func NewMemStore() Store {
	db, err := openLevelDB(storage.NewMemStorage(), Options{})
	if err != nil {
		panic(err)
	}
	return db
}

func openLevelDB(stg storage.Storage, opts Options) (*levelDB, error) {
	cacheSize := opts.CacheSize
	if cacheSize < 16 {
		cacheSize = 16
	}
	openFiles := opts.OpenFilesCacheCapacity
	if openFiles < 16 {
		openFiles = 16
	}

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: openFiles,
		BlockCacheCapacity:     cacheSize / 2 * opt.MiB,
		WriteBuffer:            cacheSize / 4 * opt.MiB, // two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}
	return &levelDB{db: db}, nil
}

func (l *levelDB) Get(key []byte) ([]byte, error) {
	return l.db.Get(key, readOpt)
}

func (l *levelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, readOpt)
}

func (l *levelDB) IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

func (l *levelDB) Put(key, val []byte) error {
	return l.db.Put(key, val, writeOpt)
}

func (l *levelDB) Delete(key []byte) error {
	return l.db.Delete(key, writeOpt)
}

func (l *levelDB) Close() error {
	return l.db.Close()
}

func (l *levelDB) NewBatch() Batch {
	return &levelDBBatch{l.db, &leveldb.Batch{}}
}

func (l *levelDB) Iterate(r Range) Iterator {
	return l.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, readOpt)
}

type levelDBBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelDBBatch) Put(key, val []byte) error {
	b.batch.Put(key, val)
	return nil
}

func (b *levelDBBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelDBBatch) Len() int {
	return b.batch.Len()
}

func (b *levelDBBatch) Write() error {
	return b.db.Write(b.batch, writeOpt)
}
