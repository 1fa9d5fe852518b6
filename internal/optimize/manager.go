package optimize

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nostria-app/nostria-proxy/internal/blobstore"
)

// Transformer 抽象变换流水线，便于在测试中注入桩实现。
type Transformer interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// Result 是缓存管理器的产出：响应正文及与之配套的缓存元数据。
// 命中与未命中共用同一组头部值，保证 HTTP 契约一致。
type Result struct {
	Body         []byte
	ContentType  string
	CacheControl string
	Hit          bool
}

// Manager orchestrate「指纹 → 查询 → 过期判断 →（未命中时）变换 → 持久化」
// 的全流程。存储故障 fail-open 降级为重算，变换故障原样上抛。
// 相同指纹的并发未命中不做 single-flight 去重：各自回源并写入同一对象，
// 最后写入者胜出。
type Manager struct {
	store        blobstore.Store
	transformer  Transformer
	logger       *logrus.Logger
	staleAfter   time.Duration
	cacheControl string
	now          func() time.Time
}

// NewManager 构造缓存管理器，默认使用 time.Now 作为时钟。
func NewManager(store blobstore.Store, transformer Transformer, logger *logrus.Logger, staleAfter time.Duration, cacheControl string) *Manager {
	return &Manager{
		store:        store,
		transformer:  transformer,
		logger:       logger,
		staleAfter:   staleAfter,
		cacheControl: cacheControl,
		now:          time.Now,
	}
}

// Get 返回请求对应的产物。未命中（含过期降级）时触发变换并尽力持久化；
// 持久化失败不阻塞响应。返回 error 仅有两类：变换失败（*TransformError）
// 与存储句柄无法建立（blobstore.ErrMissingCredential / ErrInitFailed）。
func (m *Manager) Get(ctx context.Context, req Request) (*Result, error) {
	name := req.BlobName()

	cached, err := m.lookup(ctx, req, name)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	body, err := m.transformer.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := blobstore.PutOptions{
		ContentType:  req.ContentType(),
		CacheControl: m.cacheControl,
		ModTime:      m.now().UTC(),
	}
	if _, err := m.store.Put(ctx, name, bytes.NewReader(body), opts); err != nil {
		// 写入失败只影响下一次请求的命中率，本次响应照常返回。
		m.logger.WithFields(logrus.Fields{
			"action": "cache_put",
			"blob":   name,
			"error":  err.Error(),
		}).Warn("cache_put_failed")
	}

	return &Result{
		Body:         body,
		ContentType:  req.ContentType(),
		CacheControl: m.cacheControl,
		Hit:          false,
	}, nil
}

// lookup 查询存储并执行过期判断。返回 (nil, nil) 表示未命中，进入重算；
// 过期条目被惰性删除后同样按未命中处理。
func (m *Manager) lookup(ctx context.Context, req Request, name string) (*Result, error) {
	result, err := m.store.Get(ctx, name)
	switch {
	case err == nil:
		// fallthrough to freshness check below
	case errors.Is(err, blobstore.ErrNotFound):
		return nil, nil
	case errors.Is(err, blobstore.ErrMissingCredential), errors.Is(err, blobstore.ErrInitFailed):
		// 句柄无法建立时请求无法继续（fail-closed），错误上抛为 500。
		return nil, err
	default:
		// 其余读取故障 fail-open：降级为未命中，仅记录观测字段。
		m.logger.WithFields(logrus.Fields{
			"action": "cache_get",
			"blob":   name,
			"error":  err.Error(),
		}).Warn("cache_get_failed")
		return nil, nil
	}

	age := m.now().Sub(result.Entry.ModTime)
	if age > m.staleAfter {
		result.Reader.Close()
		if err := m.store.Remove(ctx, name); err != nil {
			m.logger.WithFields(logrus.Fields{
				"action": "cache_evict",
				"blob":   name,
				"error":  err.Error(),
			}).Warn("cache_evict_failed")
		} else {
			m.logger.WithFields(logrus.Fields{
				"action":  "cache_evict",
				"blob":    name,
				"age_sec": int64(age.Seconds()),
			}).Info("cache_evict_stale")
		}
		return nil, nil
	}

	body, err := io.ReadAll(result.Reader)
	result.Reader.Close()
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"action": "cache_get",
			"blob":   name,
			"error":  err.Error(),
		}).Warn("cache_read_failed")
		return nil, nil
	}

	return &Result{
		Body:         body,
		ContentType:  req.ContentType(),
		CacheControl: m.cacheControl,
		Hit:          true,
	}, nil
}
