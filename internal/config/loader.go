package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envConnectionString 允许通过环境变量注入 Azure 连接串，避免写入配置文件。
const envConnectionString = "AZURE_STORAGE_CONNECTION_STRING"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// 连接串缺失不视为加载错误：存储句柄首次使用时才会报错（见 blobstore）。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.StorageDriver == "disk" {
		absStorage, err := filepath.Abs(cfg.Global.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.StoragePath = absStorage
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StorageDriver", "azure")
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("ContainerName", "image-cache")
	v.SetDefault("StaleAfter", "24h")
	v.SetDefault("BrowserMaxAge", "168h")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("MaxSourceSize", 20*1024*1024)
	v.SetDefault("MaxDimension", 1024)
	v.SetDefault("DefaultFormat", "webp")
	v.SetDefault("DefaultQuality", 75)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.StorageDriver == "" {
		g.StorageDriver = "azure"
	}
	g.StorageDriver = strings.ToLower(strings.TrimSpace(g.StorageDriver))
	if g.ContainerName == "" {
		g.ContainerName = "image-cache"
	}
	if g.StaleAfter.DurationValue() == 0 {
		g.StaleAfter = Duration(24 * time.Hour)
	}
	if g.BrowserMaxAge.DurationValue() == 0 {
		g.BrowserMaxAge = Duration(7 * 24 * time.Hour)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.MaxSourceSize == 0 {
		g.MaxSourceSize = 20 * 1024 * 1024
	}
	if g.MaxDimension == 0 {
		g.MaxDimension = 1024
	}
	if g.DefaultFormat == "" {
		g.DefaultFormat = "webp"
	}
	g.DefaultFormat = strings.ToLower(strings.TrimSpace(g.DefaultFormat))
	if g.DefaultQuality == 0 {
		g.DefaultQuality = 75
	}
	if g.AzureConnectionString == "" {
		g.AzureConnectionString = os.Getenv(envConnectionString)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
