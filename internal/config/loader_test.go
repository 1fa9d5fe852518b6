package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func fixture(name string) string {
	return filepath.Join("testdata", name)
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(fixture("valid.toml"))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	g := cfg.Global
	if g.ListenPort != 5000 {
		t.Fatalf("ListenPort 期望 5000，得到 %d", g.ListenPort)
	}
	if g.StorageDriver != "disk" {
		t.Fatalf("StorageDriver 期望 disk，得到 %s", g.StorageDriver)
	}
	if g.ContainerName != "image-cache" {
		t.Fatalf("ContainerName 期望 image-cache，得到 %s", g.ContainerName)
	}
	if g.StaleAfter.DurationValue() != 24*time.Hour {
		t.Fatalf("StaleAfter 期望 24h，得到 %v", g.StaleAfter.DurationValue())
	}
	if !filepath.IsAbs(g.StoragePath) {
		t.Fatalf("disk 驱动下 StoragePath 应转换为绝对路径: %s", g.StoragePath)
	}
	if len(g.ProxyAllowlist) != 2 {
		t.Fatalf("ProxyAllowlist 期望 2 项，得到 %d", len(g.ProxyAllowlist))
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(fixture("valid.toml"))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	g := cfg.Global
	if g.MaxDimension != 1024 {
		t.Fatalf("MaxDimension 默认值应为 1024，得到 %d", g.MaxDimension)
	}
	if g.DefaultFormat != "webp" {
		t.Fatalf("DefaultFormat 默认值应为 webp，得到 %s", g.DefaultFormat)
	}
	if g.DefaultQuality != 75 {
		t.Fatalf("DefaultQuality 默认值应为 75，得到 %d", g.DefaultQuality)
	}
	if g.MaxSourceSize != 20*1024*1024 {
		t.Fatalf("MaxSourceSize 默认值应为 20MiB，得到 %d", g.MaxSourceSize)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := Load(fixture("invalid_driver.toml"))
	if err == nil {
		t.Fatal("未知存储驱动应报错")
	}
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "StorageDriver" {
		t.Fatalf("期望 StorageDriver 字段错误，得到 %v", err)
	}
}

func TestLoadRejectsQualityOutOfRange(t *testing.T) {
	_, err := Load(fixture("invalid_quality.toml"))
	if err == nil {
		t.Fatal("超出范围的 DefaultQuality 应报错")
	}
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "DefaultQuality" {
		t.Fatalf("期望 DefaultQuality 字段错误，得到 %v", err)
	}
}

func TestLoadConnectionStringFromEnv(t *testing.T) {
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")

	cfg, err := Load(fixture("valid.toml"))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Global.AzureConnectionString != "UseDevelopmentStorage=true" {
		t.Fatalf("连接串应从环境变量注入，得到 %q", cfg.Global.AzureConnectionString)
	}
}

func TestLoadMissingConnectionStringIsNotFatal(t *testing.T) {
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "")

	cfg, err := Load(fixture("valid.toml"))
	if err != nil {
		t.Fatalf("连接串缺失不应导致加载失败: %v", err)
	}
	if cfg.Global.HasConnectionString() {
		t.Fatal("期望连接串为空")
	}
}

func TestCacheControlRendering(t *testing.T) {
	g := GlobalConfig{BrowserMaxAge: Duration(7 * 24 * time.Hour)}
	if got := g.CacheControl(); got != "public, max-age=604800" {
		t.Fatalf("Cache-Control 渲染错误: %s", got)
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if d.DurationValue() != 90*time.Second {
		t.Fatalf("期望 90s，得到 %v", d.DurationValue())
	}

	if err := d.UnmarshalText([]byte("3600")); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if d.DurationValue() != time.Hour {
		t.Fatalf("纯数字应按秒解析，得到 %v", d.DurationValue())
	}
}
