// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Bucket provides a logical prefix bucket for a kv store.
type Bucket string

type bucketStore struct {
	prefix string
	src    Store
}

// NewStore creates a bucketed view over the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{string(b), src}
}

func (s *bucketStore) key(key []byte) []byte {
	return append([]byte(s.prefix), key...)
}

func (s *bucketStore) Get(key []byte) ([]byte, error) { return s.src.Get(s.key(key)) }
func (s *bucketStore) Has(key []byte) (bool, error)   { return s.src.Has(s.key(key)) }
func (s *bucketStore) IsNotFound(err error) bool      { return s.src.IsNotFound(err) }
func (s *bucketStore) Put(key, val []byte) error      { return s.src.Put(s.key(key), val) }
func (s *bucketStore) Delete(key []byte) error        { return s.src.Delete(s.key(key)) }
func (s *bucketStore) Close() error                   { return nil }

func (s *bucketStore) NewBatch() Batch {
	return &bucketBatch{s.prefix, s.src.NewBatch()}
}

func (s *bucketStore) Iterate(r Range) Iterator {
	start := append([]byte(s.prefix), r.Start...)
	var limit []byte
	if len(r.Limit) > 0 {
		limit = append([]byte(s.prefix), r.Limit...)
	} else {
		// [prefix, prefix+1) covers the whole bucket
		limit = []byte(s.prefix)
		limit = append([]byte{}, limit...)
		for i := len(limit) - 1; i >= 0; i-- {
			limit[i]++
			if limit[i] != 0 {
				break
			}
		}
	}
	return &bucketIterator{len(s.prefix), s.src.Iterate(Range{Start: start, Limit: limit})}
}

type bucketBatch struct {
	prefix string
	src    Batch
}

func (b *bucketBatch) Put(key, val []byte) error {
	return b.src.Put(append([]byte(b.prefix), key...), val)
}

func (b *bucketBatch) Delete(key []byte) error {
	return b.src.Delete(append([]byte(b.prefix), key...))
}

func (b *bucketBatch) Len() int    { return b.src.Len() }
func (b *bucketBatch) Write() error { return b.src.Write() }

type bucketIterator struct {
	prefixLen int
	src       Iterator
}

func (i *bucketIterator) Next() bool    { return i.src.Next() }
func (i *bucketIterator) Key() []byte   { return i.src.Key()[i.prefixLen:] }
func (i *bucketIterator) Value() []byte { return i.src.Value() }
func (i *bucketIterator) Release()      { i.src.Release() }
func (i *bucketIterator) Error() error  { return i.src.Error() }
