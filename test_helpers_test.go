package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var (
	rootOnce sync.Once
	rootDir  string
)

// projectRoot 从当前目录向上查找 go.mod，定位仓库根。
// go test 的工作目录是包目录，main 包正好在根上，一般一步命中。
func projectRoot(t *testing.T) string {
	t.Helper()

	rootOnce.Do(func() {
		dir, err := os.Getwd()
		if err != nil {
			return
		}
		for {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				rootDir = dir
				return
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				return
			}
			dir = parent
		}
	})

	if rootDir == "" {
		t.Fatal("无法定位项目根目录")
	}
	return rootDir
}

func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "internal", "config", "testdata", name)
}
