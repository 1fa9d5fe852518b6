package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedStorageDrivers = map[string]struct{}{
	"azure": {},
	"disk":  {},
}

// supportedOutputFormats 列出编码能力支持的输出格式，DefaultFormat 必须落在其中。
var supportedOutputFormats = map[string]struct{}{
	"webp": {},
	"jpeg": {},
	"jpg":  {},
	"png":  {},
	"gif":  {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if _, ok := supportedStorageDrivers[g.StorageDriver]; !ok {
		return newFieldError("StorageDriver", "仅支持 azure|disk")
	}
	if g.StorageDriver == "disk" && g.StoragePath == "" {
		return newFieldError("StoragePath", "disk 驱动下不能为空")
	}
	if g.ContainerName == "" {
		return newFieldError("ContainerName", "不能为空")
	}
	if g.StaleAfter.DurationValue() <= 0 {
		return newFieldError("StaleAfter", "必须大于 0")
	}
	if g.BrowserMaxAge.DurationValue() <= 0 {
		return newFieldError("BrowserMaxAge", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if g.MaxSourceSize <= 0 {
		return newFieldError("MaxSourceSize", "必须大于 0")
	}
	if g.MaxDimension <= 0 {
		return newFieldError("MaxDimension", "必须大于 0")
	}
	if _, ok := supportedOutputFormats[g.DefaultFormat]; !ok {
		return newFieldError("DefaultFormat", "仅支持 webp|jpeg|jpg|png|gif")
	}
	if g.DefaultQuality < 1 || g.DefaultQuality > 100 {
		return newFieldError("DefaultQuality", "必须在 1-100")
	}

	for _, host := range g.ProxyAllowlist {
		if err := validateAllowlistHost(host); err != nil {
			return fmt.Errorf("ProxyAllowlist[%s]: %w", host, err)
		}
	}

	return nil
}

func validateAllowlistHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return errors.New("不能为空")
	}
	if strings.Contains(host, "/") {
		return errors.New("不允许包含路径")
	}
	if strings.Contains(host, " ") {
		return errors.New("不允许包含空格")
	}
	if strings.HasPrefix(host, "http") {
		return errors.New("不应包含协议头")
	}
	return nil
}
