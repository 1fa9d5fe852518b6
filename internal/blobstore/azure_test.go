package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newAzureTestStore(connectionString string) Store {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAzureStore(connectionString, "image-cache", logger)
}

func TestAzureStoreMissingCredential(t *testing.T) {
	store := newAzureTestStore("")

	if _, err := store.Get(context.Background(), "abc.webp"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("期望 ErrMissingCredential，得到 %v", err)
	}
	if _, err := store.Put(context.Background(), "abc.webp", bytes.NewReader(nil), PutOptions{}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("期望 ErrMissingCredential，得到 %v", err)
	}
	if err := store.Remove(context.Background(), "abc.webp"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("期望 ErrMissingCredential，得到 %v", err)
	}
}

func TestAzureStoreInitFailureIsRetryable(t *testing.T) {
	store := newAzureTestStore("not-a-connection-string")

	_, err1 := store.Get(context.Background(), "abc.webp")
	if !errors.Is(err1, ErrInitFailed) {
		t.Fatalf("非法连接串应返回 ErrInitFailed，得到 %v", err1)
	}

	// 失败不应被缓存：第二次调用会重新尝试初始化并报同类错误。
	_, err2 := store.Get(context.Background(), "abc.webp")
	if !errors.Is(err2, ErrInitFailed) {
		t.Fatalf("第二次调用应重新尝试初始化，得到 %v", err2)
	}
}
