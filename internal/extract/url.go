package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// IsAbsolute 报告 u 是否是 http/https 绝对 URL。
func IsAbsolute(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// NormalizeURL 把相对 / 协议相对 URL 以 base 为基准转换为绝对 URL；已是绝对 URL 时原样返回。
//
// 约束：
// - data:/javascript:/about:/"#" 一律视为不可用，返回 ""
// - 无法解析成 http(s) 绝对 URL 时返回 ""，调用方绝不能拿到相对路径
func NormalizeURL(raw, base string) string {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, p := range []string{"data:", "javascript:", "about:", "blob:", "mailto:"} {
		if strings.HasPrefix(lower, p) {
			return ""
		}
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if IsAbsolute(raw) {
		return raw
	}

	bu, err := url.Parse(strings.TrimSpace(base))
	if err != nil || !IsAbsolute(bu.String()) {
		return ""
	}
	ru, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	out := bu.ResolveReference(ru).String()
	if !IsAbsolute(out) {
		return ""
	}
	return out
}

var sizeSuffixRE = regexp.MustCompile(`(?i)-\d{2,5}x\d{2,5}(\.(?:jpe?g|png|webp|gif|avif|bmp))((?:[?#].*)?)$`)

// StripSizeSuffix 去掉紧贴图片扩展名之前的 "-{w}x{h}" 尺寸后缀（例如 WordPress 生成的缩略图），
// 以恢复原图地址。没有后缀时原样返回。
func StripSizeSuffix(u string) string {
	return sizeSuffixRE.ReplaceAllString(u, "$1$2")
}

// ProxyAsset 把 u 包装成 relay 端点的 url 查询参数，用于绕过 CORS / 区域限制。
//
// 约束：
// - 幂等：u 已经指向 relay 时原样返回（绝不二次包装）
// - relay 为空、u 为空或 u 不是绝对 URL 时原样返回
func ProxyAsset(u, relay string) string {
	u = strings.TrimSpace(u)
	relay = strings.TrimSpace(relay)
	if u == "" || relay == "" || !IsAbsolute(u) {
		return u
	}
	if IsRelayed(u, relay) {
		return u
	}
	sep := "?"
	if strings.Contains(relay, "?") {
		sep = "&"
		if strings.HasSuffix(relay, "?") || strings.HasSuffix(relay, "&") {
			sep = ""
		}
	}
	return relay + sep + "url=" + url.QueryEscape(u)
}

// IsRelayed 判断 u 是否已经是 relay 包装后的地址（同 host + 同 path + 带 url 参数）。
func IsRelayed(u, relay string) bool {
	ru, err := url.Parse(strings.TrimSpace(relay))
	if err != nil || ru.Host == "" {
		return false
	}
	pu, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	if !strings.EqualFold(pu.Host, ru.Host) {
		return false
	}
	if strings.TrimRight(pu.Path, "/") != strings.TrimRight(ru.Path, "/") {
		return false
	}
	return pu.Query().Get("url") != ""
}

// Unrelay 取出 relay 包装地址里的原始目标；u 不是 relay 地址时原样返回。
func Unrelay(u, relay string) string {
	if !IsRelayed(u, relay) {
		return u
	}
	pu, err := url.Parse(u)
	if err != nil {
		return u
	}
	return pu.Query().Get("url")
}

// LastSegment 返回 URL path 的最后一个非空段（常用于从详情页 URL 推导 slug）。
func LastSegment(u string) string {
	pu, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(pu.Path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}
