package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Storage 管理一组按名称区分的缓存，对应页面运行时的 caches 全局对象。
type Storage interface {
	// Open 返回指定名称的缓存，不存在时创建。
	Open(ctx context.Context, name string) (Cache, error)

	// Keys 按创建顺序列出所有缓存名称。
	Keys(ctx context.Context) ([]string, error)

	// Delete 删除整个缓存及其全部条目，返回缓存此前是否存在。
	Delete(ctx context.Context, name string) (bool, error)

	// Close 释放底层资源（文件句柄、数据库）。
	Close() error
}

// Cache 是单个命名缓存，条目以请求 URL 为键。
type Cache interface {
	Name() string

	// Match 精确匹配请求 URL；未命中返回 ErrNotFound。非 GET 请求永远不会命中。
	Match(ctx context.Context, req Request) (*Response, error)

	// Put 写入单个条目，同一键的并发写入以最后一次为准。
	Put(ctx context.Context, req Request, resp *Response) error

	// PutAll 要么写入全部条目，要么一个都不写。
	PutAll(ctx context.Context, entries []Entry) error

	// Keys 列出缓存中的请求。
	Keys(ctx context.Context) ([]Request, error)
}

// Request 描述缓存键：方法 + URL，头部仅用于透传网络请求。
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Key 返回条目键。缓存只保存 GET，所以键只包含 URL。
func (r Request) Key() string {
	return r.URL
}

// IsGet reports whether the request is a GET; an empty method counts as GET.
func (r Request) IsGet() bool {
	return r.Method == "" || strings.EqualFold(r.Method, http.MethodGet)
}

// Response 是一次网络响应的完整快照（状态、头部、正文）。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
}

// OK 对应 fetch Response.ok：状态码位于 200-299。
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Clone 深拷贝响应，使一份交给页面、一份写入缓存。
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	clone := &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		URL:    r.URL,
	}
	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}
	return clone
}

// Entry 是 PutAll 的单个写入单元。
type Entry struct {
	Request  Request
	Response *Response
}

var (
	// ErrNotFound 表示缓存条目不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrUnsupportedMethod 表示尝试缓存非 GET 请求。
	ErrUnsupportedMethod = errors.New("cache only stores GET requests")
	// ErrInvalidName 表示缓存名称为空或包含非法字符。
	ErrInvalidName = errors.New("invalid cache name")
)

// Storage backends understood by NewStorage.
const (
	BackendMemory  = "memory"
	BackendFS      = "fs"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
)

// NewStorage 根据后端类型构建存储实例，进程内复用一份。
func NewStorage(backend, path string) (Storage, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendFS:
		return NewFileStorage(path)
	case BackendLevelDB:
		return NewLevelDBStorage(path)
	case BackendSQLite:
		return NewSQLiteStorage(path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func validateEntry(req Request, resp *Response) error {
	if !req.IsGet() {
		return fmt.Errorf("%w: %s %s", ErrUnsupportedMethod, req.Method, req.URL)
	}
	if req.URL == "" {
		return errors.New("cache key requires a URL")
	}
	if resp == nil {
		return errors.New("cache put requires a response")
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
