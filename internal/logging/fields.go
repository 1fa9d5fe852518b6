package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供源地址/输出格式/命中状态字段，供请求日志复用。
func RequestFields(action, source, format string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"action":    action,
		"source":    source,
		"format":    format,
		"cache_hit": cacheHit,
	}
}
