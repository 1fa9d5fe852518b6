package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// canonicalSeparator 是指纹规范化串的分隔符。字段顺序与分隔符都是
// 缓存契约的一部分，改动会让所有既有条目不可达。
const canonicalSeparator = "|"

// canonical 按固定顺序拼接所有影响输出字节的字段：
// sourceURL | width | height | format | quality。
// 未提供的尺寸以空串表示，format/quality 以缺省值替换后参与拼接。
func (r Request) canonical() string {
	parts := []string{
		r.SourceURL,
		dimensionString(r.Width),
		dimensionString(r.Height),
		r.EffectiveFormat(),
		strconv.Itoa(r.EffectiveQuality()),
	}
	return strings.Join(parts, canonicalSeparator)
}

// Fingerprint 计算请求的确定性缓存键：规范化串的 SHA-256，小写十六进制。
// 纯函数，永不失败。
func Fingerprint(r Request) string {
	sum := sha256.Sum256([]byte(r.canonical()))
	return hex.EncodeToString(sum[:])
}

// BlobName 返回持久化对象名 "<指纹>.<格式>"。
func (r Request) BlobName() string {
	return Fingerprint(r) + "." + r.EffectiveFormat()
}
