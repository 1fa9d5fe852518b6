package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 抽象派生产物的持久化后端。对象以 "<指纹>.<格式>" 的扁平名称寻址，
// 时间戳由后端分配，供缓存管理器做过期判断。
//
// 读取语义是刻意的 fail-open：句柄建立之后的检索故障由实现自行吞掉并
// 以 ErrNotFound 呈现，只有句柄本身无法建立（凭证缺失/容器不可用）才会
// 把 ErrMissingCredential / ErrInitFailed 传给调用方。
type Store interface {
	// Get 返回一个可流式读取的对象。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, name string) (*ReadResult, error)

	// Put 写入对象正文及 Content-Type / Cache-Control 元数据。
	// 实现必须保证写入原子性：失败的写入不能留下可读的半截对象。
	Put(ctx context.Context, name string, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除对象，对不存在的对象幂等返回 nil，用于过期惰性清理。
	Remove(ctx context.Context, name string) error
}

// PutOptions 控制写入过程中的元数据属性。
type PutOptions struct {
	ContentType  string
	CacheControl string
	ModTime      time.Time
}

// Entry 描述一次对象操作的结果元信息。
type Entry struct {
	Name      string
	SizeBytes int64
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于调用方直接消费。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadCloser
}

// ErrNotFound 表示对象不存在（或检索故障被降级为未命中）。
var ErrNotFound = errors.New("blob not found")

// ErrMissingCredential 表示未提供存储连接串，属于配置错误，每次请求都会失败。
var ErrMissingCredential = errors.New("storage connection string missing")

// ErrInitFailed 表示存储句柄建立失败，下一次调用会重新尝试。
var ErrInitFailed = errors.New("storage initialization failed")
