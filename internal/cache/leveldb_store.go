package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	c:<name>            -> creation sequence (big-endian uint64)
//	e:<name>\x00<url>   -> gob record
const (
	cachePrefix = "c:"
	entryPrefix = "e:"
)

// NewLevelDBStorage 打开（或创建）path 处的 leveldb 数据库作为缓存存储。
func NewLevelDBStorage(path string) (Storage, error) {
	if path == "" {
		return nil, errors.New("storage path required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	s := &levelStorage{db: db}
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s, nil
}

type levelStorage struct {
	db  *leveldb.DB
	seq atomic.Uint64
}

func (s *levelStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	marker := []byte(cachePrefix + name)
	exists, err := s.db.Has(marker, nil)
	if err != nil {
		return nil, err
	}
	if !exists {
		var seq [8]byte
		binary.BigEndian.PutUint64(seq[:], s.seq.Add(1))
		if err := s.db.Put(marker, seq[:], nil); err != nil {
			return nil, err
		}
	}
	return &levelCache{storage: s, name: name}, nil
}

func (s *levelStorage) Keys(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	it := s.db.NewIterator(util.BytesPrefix([]byte(cachePrefix)), nil)
	defer it.Release()

	type named struct {
		name string
		seq  uint64
	}
	var found []named
	for it.Next() {
		var seq uint64
		if v := it.Value(); len(v) == 8 {
			seq = binary.BigEndian.Uint64(v)
		}
		found = append(found, named{name: string(it.Key()[len(cachePrefix):]), seq: seq})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	names := make([]string, len(found))
	for i, n := range found {
		names[i] = n.name
	}
	return names, nil
}

func (s *levelStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	marker := []byte(cachePrefix + name)
	exists, err := s.db.Has(marker, nil)
	if err != nil || !exists {
		return false, err
	}

	batch := new(leveldb.Batch)
	it := s.db.NewIterator(util.BytesPrefix(entryKeyPrefix(name)), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return false, err
	}
	batch.Delete(marker)
	if err := s.db.Write(batch, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *levelStorage) Close() error {
	return s.db.Close()
}

type levelCache struct {
	storage *levelStorage
	name    string
}

func (c *levelCache) Name() string {
	return c.name
}

func (c *levelCache) Match(ctx context.Context, req Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if !req.IsGet() {
		return nil, ErrNotFound
	}
	raw, err := c.storage.db.Get(entryKey(c.name, req.Key()), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return rec.response(), nil
}

func (c *levelCache) Put(ctx context.Context, req Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

// PutAll 使用单个 leveldb.Batch 写入，天然满足全有或全无。
func (c *levelCache) PutAll(ctx context.Context, entries []Entry) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, e := range entries {
		if err := validateEntry(e.Request, e.Response); err != nil {
			return err
		}
		payload, err := encodeRecord(newRecord(e.Request, e.Response))
		if err != nil {
			return fmt.Errorf("encode cache entry: %w", err)
		}
		batch.Put(entryKey(c.name, e.Request.Key()), payload)
	}
	return c.storage.db.Write(batch, nil)
}

func (c *levelCache) Keys(ctx context.Context) ([]Request, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	it := c.storage.db.NewIterator(util.BytesPrefix(entryKeyPrefix(c.name)), nil)
	defer it.Release()

	var out []Request
	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			continue
		}
		out = append(out, rec.request())
	}
	return out, it.Error()
}

func entryKeyPrefix(name string) []byte {
	return []byte(entryPrefix + name + "\x00")
}

func entryKey(name, key string) []byte {
	return append(entryKeyPrefix(name), key...)
}
