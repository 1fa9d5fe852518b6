package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nostria-app/nostria-proxy/internal/version"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger        *logrus.Logger
	Optimize      fiber.Handler
	Proxy         fiber.Handler
	StorageDriver string
	ListenPort    int
}

const contextKeyRequestID = "_nostria_request_id"

// NewApp builds a Fiber application with the image proxy route table and
// structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Optimize == nil {
		return nil, errors.New("optimize handler is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/api/ImageOptimizeProxy", opts.Optimize)
	app.Get("/api/proxy", opts.Proxy)
	app.Get("/api/ping", pingHandler())
	app.Get("/-/health", healthHandler(opts.StorageDriver))

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，写入 Locals 与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// pingHandler 是延迟探针：不触碰存储与上游，直接返回进程信息。
func pingHandler() fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
		})
	}
}

// healthHandler 暴露 /-/ 诊断命名空间下的健康信息，供 SRE 查询。
func healthHandler(storageDriver string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":         "ok",
			"storage_driver": storageDriver,
			"version":        version.Full(),
		})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
