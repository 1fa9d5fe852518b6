package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有请求共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// StorageDriver 选择持久化后端：azure（生产）或 disk（本地/测试）。
	StorageDriver         string `mapstructure:"StorageDriver"`
	StoragePath           string `mapstructure:"StoragePath"`
	AzureConnectionString string `mapstructure:"AzureConnectionString"`
	ContainerName         string `mapstructure:"ContainerName"`

	StaleAfter      Duration `mapstructure:"StaleAfter"`
	BrowserMaxAge   Duration `mapstructure:"BrowserMaxAge"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	MaxSourceSize   int64    `mapstructure:"MaxSourceSize"`

	MaxDimension   int    `mapstructure:"MaxDimension"`
	DefaultFormat  string `mapstructure:"DefaultFormat"`
	DefaultQuality int    `mapstructure:"DefaultQuality"`

	ProxyAllowlist []string `mapstructure:"ProxyAllowlist"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// CacheControl 渲染浏览器与存储共用的 Cache-Control 值，命中与未命中保持一致。
func (g GlobalConfig) CacheControl() string {
	return fmt.Sprintf("public, max-age=%d", int64(g.BrowserMaxAge.DurationValue().Seconds()))
}

// HasConnectionString 表示是否已提供 Azure 连接串（配置文件或环境变量）。
func (g GlobalConfig) HasConnectionString() bool {
	return strings.TrimSpace(g.AzureConnectionString) != ""
}
