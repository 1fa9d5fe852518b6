// Package proxy implements the plain passthrough proxy at /api/proxy: a
// parameter-validation-and-forward wrapper restricted to an allowlist of
// upstream hosts, with no caching discipline of its own.
package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/nostria-app/nostria-proxy/internal/server"
)

// Handler 将 ?url= 指向的上游响应原样转发，仅放行允许清单内的主机。
type Handler struct {
	client  *http.Client
	logger  *logrus.Logger
	allowed map[string]struct{}
}

// NewHandler 构造允许清单代理，host 比较忽略大小写与端口。
func NewHandler(client *http.Client, logger *logrus.Logger, allowedHosts []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, host := range allowedHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			allowed[host] = struct{}{}
		}
	}
	return &Handler{
		client:  client,
		logger:  logger,
		allowed: allowed,
	}
}

// Handle 校验目标地址后转发请求，并透传除 hop-by-hop 外的响应头。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	raw := c.Query("url")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
	}

	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_invalid"})
	}

	if !h.hostAllowed(target.Host) {
		h.logResult(raw, requestID, fiber.StatusForbidden, started, nil)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "host_not_allowed"})
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_invalid"})
	}
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())

	resp, err := h.client.Do(req)
	if err != nil {
		h.logResult(raw, requestID, 0, started, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream_failed"})
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(resp.StatusCode)

	_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	h.logResult(raw, requestID, resp.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "proxy stream failed: "+err.Error())
	}
	return nil
}

// hostAllowed 去掉端口后做不区分大小写的精确匹配。
func (h *Handler) hostAllowed(host string) bool {
	if stripped, _, err := net.SplitHostPort(host); err == nil {
		host = stripped
	}
	_, ok := h.allowed[strings.ToLower(host)]
	return ok
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}

func (h *Handler) logResult(target, requestID string, status int, started time.Time, err error) {
	fields := logrus.Fields{
		"action": "proxy",
		"source": target,
	}
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}
