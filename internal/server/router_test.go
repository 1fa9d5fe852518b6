package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	noop := func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app, err := NewApp(AppOptions{
		Logger:        logger,
		Optimize:      noop,
		Proxy:         noop,
		StorageDriver: "disk",
		ListenPort:    5000,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	return app
}

func TestNewAppRequiresDependencies(t *testing.T) {
	noop := func(c fiber.Ctx) error { return nil }
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := NewApp(AppOptions{Optimize: noop, Proxy: noop, ListenPort: 5000}); err == nil {
		t.Fatal("缺少 logger 应报错")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Proxy: noop, ListenPort: 5000}); err == nil {
		t.Fatal("缺少 optimize handler 应报错")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Optimize: noop, Proxy: noop, ListenPort: 0}); err == nil {
		t.Fatal("非法端口应报错")
	}
}

func TestPingRoute(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ping", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("status 字段错误: %s", payload["status"])
	}
	if payload["version"] == "" {
		t.Fatal("version 字段不应为空")
	}
}

func TestHealthRoute(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/health", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if payload["storage_driver"] != "disk" {
		t.Fatalf("storage_driver 字段错误: %s", payload["storage_driver"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ping", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("每个响应都应携带 X-Request-ID")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("未注册路由应返回 404，得到 %d", resp.StatusCode)
	}
}
