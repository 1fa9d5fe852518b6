package optimize

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// capturingTransformer 记录收到的请求参数，便于断言入口钳制行为。
type capturingTransformer struct {
	last Request
	body []byte
	err  error
}

func (s *capturingTransformer) Run(ctx context.Context, req Request) ([]byte, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.body, nil
}

func newHandlerApp(t *testing.T, transformer Transformer) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	manager := NewManager(newFakeStore(), transformer, logger, 24*time.Hour, "public, max-age=604800")
	handler := NewHandler(manager, logger, HandlerOptions{})

	app := fiber.New()
	app.Get("/api/ImageOptimizeProxy", handler.Handle)
	return app
}

func TestHandlerMissingURL(t *testing.T) {
	app := newHandlerApp(t, &capturingTransformer{body: []byte("artifact")})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ImageOptimizeProxy", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("缺少 url 应返回 400，得到 %d", resp.StatusCode)
	}
}

func TestHandlerMissThenHitHeaders(t *testing.T) {
	app := newHandlerApp(t, &capturingTransformer{body: []byte("artifact")})
	target := "/api/ImageOptimizeProxy?url=https://example.com/a.png&w=200&h=100&format=webp&quality=80"

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	first, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Cache"); got != "MISS" {
		t.Fatalf("首次请求应为 MISS，得到 %s", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/webp" {
		t.Fatalf("Content-Type 错误: %s", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "public, max-age=604800" {
		t.Fatalf("Cache-Control 错误: %s", got)
	}

	resp2, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	second, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if got := resp2.Header.Get("X-Cache"); got != "HIT" {
		t.Fatalf("二次请求应为 HIT，得到 %s", got)
	}
	if string(first) != string(second) {
		t.Fatal("命中与未命中的响应正文必须一致")
	}
	if resp2.Header.Get("Cache-Control") != resp.Header.Get("Cache-Control") {
		t.Fatal("命中与未命中的 Cache-Control 必须一致")
	}
}

func TestHandlerClampsOversizedDimensions(t *testing.T) {
	transformer := &capturingTransformer{body: []byte("artifact")}
	app := newHandlerApp(t, transformer)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ImageOptimizeProxy?url=https://example.com/a.png&w=5000&h=9000", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if transformer.last.Width == nil || *transformer.last.Width != 1024 {
		t.Fatalf("w=5000 应钳制为 1024，得到 %v", transformer.last.Width)
	}
	if transformer.last.Height == nil || *transformer.last.Height != 1024 {
		t.Fatalf("h=9000 应钳制为 1024，得到 %v", transformer.last.Height)
	}
}

func TestHandlerNoLowerBound(t *testing.T) {
	transformer := &capturingTransformer{body: []byte("artifact")}
	app := newHandlerApp(t, transformer)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ImageOptimizeProxy?url=https://example.com/a.png&w=0", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if transformer.last.Width == nil || *transformer.last.Width != 0 {
		t.Fatalf("w=0 应原样透传，得到 %v", transformer.last.Width)
	}
	if transformer.last.Height != nil {
		t.Fatal("未提供的 h 应保持缺省")
	}
}

func TestHandlerDefaults(t *testing.T) {
	transformer := &capturingTransformer{body: []byte("artifact")}
	app := newHandlerApp(t, transformer)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ImageOptimizeProxy?url=https://example.com/a.png", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if transformer.last.Width != nil || transformer.last.Height != nil {
		t.Fatal("未提供尺寸时应透传原始大小")
	}
	if transformer.last.EffectiveFormat() != "webp" {
		t.Fatalf("format 缺省应为 webp，得到 %s", transformer.last.EffectiveFormat())
	}
	if transformer.last.EffectiveQuality() != 75 {
		t.Fatalf("quality 缺省应为 75，得到 %d", transformer.last.EffectiveQuality())
	}
}

func TestHandlerTransformFailure(t *testing.T) {
	transformer := &capturingTransformer{err: transformErrorf(StageOriginFetch, "origin https://example.com/a.png returned status 404")}
	app := newHandlerApp(t, transformer)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ImageOptimizeProxy?url=https://example.com/a.png", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("变换失败应返回 500，得到 %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "Error processing image: ") {
		t.Fatalf("500 正文格式错误: %s", body)
	}
	if !strings.Contains(string(body), "origin_fetch") {
		t.Fatalf("错误信息应标明回源失败: %s", body)
	}
}
