package server

import (
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/nostria-app/nostria-proxy/internal/config"
)

const defaultUpstreamTimeout = 30 * time.Second

// upstreamTransport 是所有回源与代理请求共享的传输层，
// 复用长连接，超时集中在这里配置。
var upstreamTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 15 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回整站共享的 http.Client。整体超时取配置中的
// upstream_timeout，覆盖从建连到读完正文的全过程，防止慢源站拖垮 worker。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := defaultUpstreamTimeout
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: upstreamTransport.Clone(),
	}
}

// hopByHopHeaders 是 RFC 7230 中禁止代理转发的头部，
// Proxy-Connection 虽非标准但仍有代理在用。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// IsHopByHopHeader 判断给定头部是否属于 hop-by-hop，比较前先规范化大小写。
func IsHopByHopHeader(key string) bool {
	_, ok := hopByHopHeaders[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

// CopyHeaders 把 src 中允许透传的头复制到 dst，hop-by-hop 字段一律丢弃。
func CopyHeaders(dst, src http.Header) {
	for key, values := range src {
		if IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
