package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewDiskStore 以 basePath/container 为根目录构建磁盘存储，整站复用一份实例。
// 主要用于本地运行与测试，与 azure 驱动共享同一套语义。
func NewDiskStore(basePath, container string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}
	if container == "" {
		return nil, errors.New("container name required")
	}

	abs, err := filepath.Abs(filepath.Join(basePath, container))
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &diskStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// diskStore 通过 entryLock 避免同一对象并发写入，同时复用 basePath。
type diskStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *diskStore) Get(ctx context.Context, name string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry: Entry{
			Name:      name,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		},
		Reader: f,
	}, nil
}

func (s *diskStore) Put(ctx context.Context, name string, body io.Reader, opts PutOptions) (*Entry, error) {
	unlock, err := s.lockEntry(name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".blob-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(filePath, modTime, modTime); err != nil {
		return nil, err
	}

	entry := Entry{
		Name:      name,
		SizeBytes: written,
		ModTime:   modTime,
	}
	return &entry, nil
}

func (s *diskStore) Remove(ctx context.Context, name string) error {
	unlock, err := s.lockEntry(name)
	if err != nil {
		return err
	}
	defer unlock()

	filePath, err := s.entryPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *diskStore) lockEntry(name string) (func(), error) {
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}, nil
}

// entryPath 校验对象名并拼出磁盘路径。对象名是 "<hex>.<格式>" 的扁平名称，
// 不允许路径分隔符，防止越出容器目录。
func (s *diskStore) entryPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("blob name required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid blob name: %s", name)
	}
	return filepath.Join(s.basePath, name), nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
