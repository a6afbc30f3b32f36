package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	entrySuffix = ".entry"
	// markerFile 保存缓存的创建序号，Storage.Keys 据此保持创建顺序。
	markerFile = ".created"
)

// NewFileStorage 以 basePath 为根目录构建磁盘缓存，目录布局：
//
//	<basePath>/<escaped cache name>/.created
//	<basePath>/<escaped cache name>/<xxhash64(url)>.entry
func NewFileStorage(basePath string) (Storage, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	s := &fileStorage{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s, nil
}

// fileStorage 通过 entryLock 避免同一条目并发写入，所有缓存共享 basePath。
type fileStorage struct {
	basePath string
	seq      atomic.Uint64

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	dir, err := s.cacheDir(name)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create cache %s: %w", name, err)
		}
	} else if err := s.writeMarker(dir); err != nil {
		return nil, fmt.Errorf("create cache %s: %w", name, err)
	}
	return &fileCache{storage: s, name: name, dir: dir}, nil
}

// Keys 按 marker 中记录的创建序号返回缓存名称（目录名即转义后的缓存名）；
// 缺少 marker 的目录排在最后，按名称排序。
func (s *fileStorage) Keys(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	type named struct {
		name string
		seq  uint64
	}
	found := make([]named, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, err := url.PathUnescape(entry.Name())
		if err != nil {
			continue
		}
		found = append(found, named{name: name, seq: s.readMarker(filepath.Join(s.basePath, entry.Name()))})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	names := make([]string, len(found))
	for i, n := range found {
		names[i] = n.name
	}
	return names, nil
}

func (s *fileStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	dir, err := s.cacheDir(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	return true, nil
}

func (s *fileStorage) Close() error {
	return nil
}

func (s *fileStorage) writeMarker(dir string) error {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], s.seq.Add(1))
	return os.WriteFile(filepath.Join(dir, markerFile), seq[:], 0o644)
}

func (s *fileStorage) readMarker(dir string) uint64 {
	raw, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil || len(raw) != 8 {
		return math.MaxUint64
	}
	return binary.BigEndian.Uint64(raw)
}

func (s *fileStorage) cacheDir(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.basePath, url.PathEscape(name))
	if !strings.HasPrefix(dir, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return dir, nil
}

func (s *fileStorage) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

type fileCache struct {
	storage *fileStorage
	name    string
	dir     string
}

func (c *fileCache) Name() string {
	return c.name
}

func (c *fileCache) Match(ctx context.Context, req Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if !req.IsGet() {
		return nil, ErrNotFound
	}
	raw, err := os.ReadFile(c.entryPath(req.Key()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	// 64 位哈希可能碰撞，以记录中的 URL 为准
	if rec.URL != req.Key() {
		return nil, ErrNotFound
	}
	return rec.response(), nil
}

func (c *fileCache) Put(ctx context.Context, req Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

// PutAll 先把全部条目写成临时文件，再逐个替换正式文件；已存在的条目先挪到
// 备份文件。任一步失败都会撤销已替换的条目并清理临时文件，成功后删除备份。
func (c *fileCache) PutAll(ctx context.Context, entries []Entry) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	for _, e := range entries {
		if err := validateEntry(e.Request, e.Response); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	pending := make([]stagedEntry, 0, len(entries))
	for _, e := range entries {
		if err := checkContext(ctx); err != nil {
			discardStaged(pending)
			return err
		}
		payload, err := encodeRecord(newRecord(e.Request, e.Response))
		if err != nil {
			discardStaged(pending)
			return fmt.Errorf("encode cache entry: %w", err)
		}
		temp, err := writeTemp(c.dir, payload)
		if err != nil {
			discardStaged(pending)
			return err
		}
		pending = append(pending, stagedEntry{temp: temp, final: c.entryPath(e.Request.Key())})
	}

	for i := range pending {
		unlock := c.storage.lockEntry(pending[i].final)
		err := pending[i].commit()
		unlock()
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				unlock := c.storage.lockEntry(pending[j].final)
				pending[j].rollback()
				unlock()
			}
			discardStaged(pending[i:])
			return err
		}
	}
	for _, p := range pending {
		if p.backup != "" {
			os.Remove(p.backup)
		}
	}
	return nil
}

// stagedEntry 是一个已写入临时文件、尚未生效的条目。
type stagedEntry struct {
	temp   string
	final  string
	backup string
}

func (p *stagedEntry) commit() error {
	info, err := os.Lstat(p.final)
	switch {
	case err == nil && !info.Mode().IsRegular():
		return fmt.Errorf("cache entry %s is not a regular file", p.final)
	case err == nil:
		backup := p.temp + ".prev"
		if err := os.Rename(p.final, backup); err != nil {
			return err
		}
		p.backup = backup
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	if err := os.Rename(p.temp, p.final); err != nil {
		p.restore()
		return err
	}
	return nil
}

// rollback 撤销一次成功的 commit。
func (p *stagedEntry) rollback() {
	os.Remove(p.final)
	p.restore()
}

func (p *stagedEntry) restore() {
	if p.backup == "" {
		return
	}
	if err := os.Rename(p.backup, p.final); err == nil {
		p.backup = ""
	}
}

func discardStaged(pending []stagedEntry) {
	for _, p := range pending {
		os.Remove(p.temp)
	}
}

func (c *fileCache) Keys(ctx context.Context) ([]Request, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Request, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), entrySuffix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			continue
		}
		out = append(out, rec.request())
	}
	return out, nil
}

func (c *fileCache) entryPath(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%016x%s", xxhash.Sum64String(key), entrySuffix))
}

func writeTemp(dir string, payload []byte) (string, error) {
	tempFile, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return "", err
	}
	name := tempFile.Name()
	_, err = tempFile.Write(payload)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
