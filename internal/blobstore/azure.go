package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/sirupsen/logrus"
)

// NewAzureStore 构建 Azure Blob Storage 后端。容器客户端按需建立：
// 构造函数本身不触网，首个请求到来时才验证连接串并确保容器存在。
func NewAzureStore(connectionString, containerName string, logger *logrus.Logger) Store {
	return &azureStore{
		connectionString: connectionString,
		containerName:    containerName,
		logger:           logger,
	}
}

// azureStore 持有进程级的容器客户端。初始化失败不会被缓存：
// 下一次调用会重新尝试建立句柄。
type azureStore struct {
	connectionString string
	containerName    string
	logger           *logrus.Logger

	mu     sync.Mutex
	client *container.Client
}

// ensureClient 在互斥锁内完成惰性初始化，并发首调不会产生重复句柄。
func (s *azureStore) ensureClient(ctx context.Context) (*container.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if s.connectionString == "" {
		return nil, ErrMissingCredential
	}

	svc, err := azblob.NewClientFromConnectionString(s.connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	if _, err := svc.CreateContainer(ctx, s.containerName, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("%w: create container %s: %v", ErrInitFailed, s.containerName, err)
		}
	}

	s.client = svc.ServiceClient().NewContainerClient(s.containerName)
	return s.client, nil
}

func (s *azureStore) Get(ctx context.Context, name string) (*ReadResult, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.NewBlobClient(name).DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		// 检索故障降级为未命中，调用方会重新计算并尝试覆盖写入。
		s.logger.WithFields(logrus.Fields{
			"action": "blob_get",
			"blob":   name,
			"error":  err.Error(),
		}).Warn("blob_get_failed")
		return nil, ErrNotFound
	}

	entry := Entry{Name: name}
	if resp.LastModified != nil {
		entry.ModTime = *resp.LastModified
	}
	if resp.ContentLength != nil {
		entry.SizeBytes = *resp.ContentLength
	}

	return &ReadResult{
		Entry:  entry,
		Reader: resp.Body,
	}, nil
}

func (s *azureStore) Put(ctx context.Context, name string, body io.Reader, opts PutOptions) (*Entry, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	uploadOpts := &blockblob.UploadStreamOptions{}
	headers := blob.HTTPHeaders{}
	if opts.ContentType != "" {
		headers.BlobContentType = &opts.ContentType
	}
	if opts.CacheControl != "" {
		headers.BlobCacheControl = &opts.CacheControl
	}
	uploadOpts.HTTPHeaders = &headers

	if _, err := client.NewBlockBlobClient(name).UploadStream(ctx, body, uploadOpts); err != nil {
		return nil, fmt.Errorf("upload blob %s: %w", name, err)
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	return &Entry{Name: name, ModTime: modTime}, nil
}

func (s *azureStore) Remove(ctx context.Context, name string) error {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return err
	}

	if _, err := client.NewBlobClient(name).Delete(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}
