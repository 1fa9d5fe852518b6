package optimize

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"io"
	"net/http"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	// 注册解码器：png/jpeg/gif 来自标准库，webp 来自 x/image。
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Pipeline 执行「回源 → 解码 → 缩放 → 编码」的完整变换。
// 复用进程级共享的 http.Client，超时由该 client 统一配置。
type Pipeline struct {
	client        *http.Client
	logger        *logrus.Logger
	maxSourceSize int64
}

// NewPipeline 构造变换流水线，maxSourceSize 限制回源响应的最大字节数。
func NewPipeline(client *http.Client, logger *logrus.Logger, maxSourceSize int64) *Pipeline {
	return &Pipeline{
		client:        client,
		logger:        logger,
		maxSourceSize: maxSourceSize,
	}
}

// Run 按请求参数产出编码后的产物字节。任何环节失败都返回 *TransformError，
// 调用方据此中止请求，绝不缓存部分结果。
func (p *Pipeline) Run(ctx context.Context, req Request) ([]byte, error) {
	started := time.Now()

	source, err := p.fetch(ctx, req.SourceURL)
	if err != nil {
		return nil, err
	}

	img, sourceFormat, err := decode(source)
	if err != nil {
		return nil, err
	}

	img = resize(img, req)

	encoded, err := encode(img, req.EffectiveFormat(), req.EffectiveQuality())
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"action":        "transform",
		"source":        req.SourceURL,
		"source_format": sourceFormat,
		"format":        req.EffectiveFormat(),
		"bytes_in":      len(source),
		"bytes_out":     len(encoded),
		"elapsed_ms":    time.Since(started).Milliseconds(),
	}).Debug("transform_complete")

	return encoded, nil
}

// fetch 拉取源图字节。非 2xx 状态或超出大小上限都按回源失败处理。
func (p *Pipeline) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, http.NoBody)
	if err != nil {
		return nil, transformErrorf(StageOriginFetch, "build request for %s: %v", sourceURL, err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transformErrorf(StageOriginFetch, "fetch %s: %v", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, transformErrorf(StageOriginFetch, "origin %s returned status %d", sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxSourceSize+1))
	if err != nil {
		return nil, transformErrorf(StageOriginFetch, "read origin body: %v", err)
	}
	if int64(len(body)) > p.maxSourceSize {
		return nil, transformErrorf(StageOriginFetch, "origin body exceeds %d bytes", p.maxSourceSize)
	}

	return body, nil
}

func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", transformErrorf(StageDecode, "decode source image: %v", err)
	}
	return img, format, nil
}

// resize 应用 cover-fit 策略：两个维度都给定时缩放填满目标框并裁掉溢出，
// 只给定一边时按比例推导另一边，都缺省时透传原始尺寸。
func resize(img image.Image, req Request) image.Image {
	switch {
	case req.Width != nil && req.Height != nil:
		return imaging.Fill(img, *req.Width, *req.Height, imaging.Center, imaging.Lanczos)
	case req.Width != nil:
		return imaging.Resize(img, *req.Width, 0, imaging.Lanczos)
	case req.Height != nil:
		return imaging.Resize(img, 0, *req.Height, imaging.Lanczos)
	default:
		return img
	}
}

func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, transformErrorf(StageEncode, "encode webp: %v", err)
		}
	case "jpeg", "jpg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, transformErrorf(StageEncode, "encode jpeg: %v", err)
		}
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, transformErrorf(StageEncode, "encode png: %v", err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, transformErrorf(StageEncode, "encode gif: %v", err)
		}
	default:
		return nil, transformErrorf(StageEncode, "unsupported output format %q", format)
	}

	return buf.Bytes(), nil
}
