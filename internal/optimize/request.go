package optimize

import (
	"strconv"
	"strings"
)

// 缺省的输出参数。调整 DefaultFormat/DefaultQuality 会改变指纹的
// 规范化结果，使既有缓存条目全部失效。
const (
	DefaultFormat  = "webp"
	DefaultQuality = 75
)

// Request 描述一次图片变换请求，构造后不可变。
// Width/Height 使用指针区分「未提供」与「显式传 0」：上界钳制在入口完成，
// 下界刻意不做校验，0 或负值会原样传给编解码层。
type Request struct {
	SourceURL string
	Width     *int
	Height    *int
	Format    string
	Quality   int
}

// EffectiveFormat 返回规范化后的输出格式，缺省回退 webp。
func (r Request) EffectiveFormat() string {
	format := strings.ToLower(strings.TrimSpace(r.Format))
	if format == "" {
		return DefaultFormat
	}
	return format
}

// EffectiveQuality 返回编码质量，缺省回退 75，不做范围钳制。
func (r Request) EffectiveQuality() int {
	if r.Quality == 0 {
		return DefaultQuality
	}
	return r.Quality
}

// ContentType 返回响应与存储元数据共用的 MIME 值。
func (r Request) ContentType() string {
	return "image/" + r.EffectiveFormat()
}

// ClampDimension 将尺寸钳制到上界。下界不设限，见 Request 注释。
func ClampDimension(value, max int) int {
	if value > max {
		return max
	}
	return value
}

func dimensionString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
