// Package slug 生成 URL 安全的路由标识。
package slug

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

const maxRunes = 80

// Make 由标题生成 slug：先音译为 ASCII，再小写，非字母数字折叠为 '-'。
// 结果为空时返回 "item"。
func Make(title string) string {
	ascii := unidecode.Unidecode(strings.TrimSpace(title))
	var b strings.Builder
	dash := false
	n := 0
	for _, r := range strings.ToLower(ascii) {
		if n >= maxRunes {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			n++
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "item"
	}
	return s
}

// Indexed 生成带 provider 与列表位置的 slug：<title-slug>-<provider>-<index>。
// 用于上游没有稳定 ID 的 provider：详情页需要按同样的列表顺序重新定位。
func Indexed(title, provider string, index int) string {
	return Make(title) + "-" + Make(provider) + "-" + strconv.Itoa(index)
}

// Index 解析 slug 末尾的数字位置；不存在时 ok=false。
func Index(s string) (int, bool) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '-')
	if i < 0 || i == len(s)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FromURL 取详情页 URL 的最后一个非空 path 段作为 slug（已做 path 反转义与小写）。
func FromURL(u string) string {
	pu, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(pu.Path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.TrimSpace(parts[i])
		if p == "" {
			continue
		}
		if un, err := url.PathUnescape(p); err == nil {
			p = un
		}
		p = strings.TrimSuffix(p, ".html")
		return strings.ToLower(p)
	}
	return ""
}
