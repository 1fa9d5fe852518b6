// Package version 集中存放构建期注入的版本信息。
package version

import "fmt"

// 构建时通过 -ldflags "-X .../version.Version=... -X .../version.Commit=..."
// 覆盖，未注入时使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 拼出 "nostria-proxy <版本> (<提交>)" 形式的版本串，
// 供 CLI 的 -version 输出与健康探针复用。
func Full() string {
	return fmt.Sprintf("nostria-proxy %s (%s)", Version, Commit)
}
