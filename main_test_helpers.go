package main

import (
	"bytes"
	"testing"
)

// useBufferWriters 在测试期间把 stdOut/stdErr 换成内存缓冲区，
// 返回两个缓冲区供断言 CLI 输出。
func useBufferWriters(t *testing.T) (outBuf, errBuf *bytes.Buffer) {
	t.Helper()

	outBuf = &bytes.Buffer{}
	errBuf = &bytes.Buffer{}

	prevOut := stdOut
	prevErr := stdErr

	stdOut = outBuf
	stdErr = errBuf

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
	})
	return outBuf, errBuf
}
