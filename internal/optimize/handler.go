package optimize

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/nostria-app/nostria-proxy/internal/logging"
	"github.com/nostria-app/nostria-proxy/internal/server"
)

// HandlerOptions 控制入口层的参数钳制与缺省值。
type HandlerOptions struct {
	MaxDimension   int
	DefaultFormat  string
	DefaultQuality int
}

// Handler 是 /api/ImageOptimizeProxy 的 Fiber 入口：把查询参数收敛为
// 类型化请求，调用缓存管理器，并把结果映射为传输层响应。
type Handler struct {
	manager *Manager
	logger  *logrus.Logger
	opts    HandlerOptions
}

// NewHandler 构造入口 handler，未填写的选项回退到包级缺省值。
func NewHandler(manager *Manager, logger *logrus.Logger, opts HandlerOptions) *Handler {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1024
	}
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = DefaultFormat
	}
	if opts.DefaultQuality <= 0 {
		opts.DefaultQuality = DefaultQuality
	}
	return &Handler{
		manager: manager,
		logger:  logger,
		opts:    opts,
	}
}

// Handle 校验参数并驱动缓存管理器。命中与未命中使用相同的
// Content-Type / Cache-Control，仅 X-Cache 区分来源。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	source := c.Query("url")
	if source == "" {
		return c.Status(fiber.StatusBadRequest).SendString("url parameter required")
	}

	req := h.parseRequest(c, source)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.manager.Get(ctx, req)
	if err != nil {
		h.logResult(req, requestID, fiber.StatusInternalServerError, false, started, err)
		return c.Status(fiber.StatusInternalServerError).
			SendString("Error processing image: " + err.Error())
	}

	c.Set("Content-Type", result.ContentType)
	c.Set("Cache-Control", result.CacheControl)
	c.Set("X-Cache", cacheLabel(result.Hit))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}

	h.logResult(req, requestID, fiber.StatusOK, result.Hit, started, nil)
	return c.Status(fiber.StatusOK).Send(result.Body)
}

// parseRequest 应用入口钳制规则：w/h 解析为整数并钳制上界（无下界），
// format/quality 缺省替换，quality 不做范围钳制。无法解析的值按缺省处理。
func (h *Handler) parseRequest(c fiber.Ctx, source string) Request {
	req := Request{
		SourceURL: source,
		Format:    h.opts.DefaultFormat,
		Quality:   h.opts.DefaultQuality,
	}

	if raw := c.Query("w"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			clamped := ClampDimension(v, h.opts.MaxDimension)
			req.Width = &clamped
		}
	}
	if raw := c.Query("h"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			clamped := ClampDimension(v, h.opts.MaxDimension)
			req.Height = &clamped
		}
	}
	if raw := c.Query("format"); raw != "" {
		req.Format = raw
	}
	if raw := c.Query("quality"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			req.Quality = v
		}
	}

	return req
}

func cacheLabel(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) logResult(req Request, requestID string, status int, hit bool, started time.Time, err error) {
	fields := logging.RequestFields("optimize", req.SourceURL, req.EffectiveFormat(), hit)
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("optimize_failed")
		return
	}
	h.logger.WithFields(fields).Info("optimize_complete")
}
