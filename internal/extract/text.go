package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// NormSpace 把任意空白折叠为单个空格并去掉首尾空白。
func NormSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// NormList 去空、去首尾空白并按首次出现顺序去重。
func NormList(in []string) []string {
	return lo.Uniq(NormNonEmpty(in))
}

// NormNonEmpty 折叠空白并去掉空项，保留重复项与原有顺序（正文段落之类重复有意义的序列）。
func NormNonEmpty(in []string) []string {
	out := lo.FilterMap(in, func(s string, _ int) (string, bool) {
		s = NormSpace(s)
		return s, s != ""
	})
	if len(out) == 0 {
		return []string{}
	}
	return out
}

// StripTags 去掉所有标记，返回折叠空白后的可见文本（实体已解码，script/style 内容被丢弃）。
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var (
		b     strings.Builder
		skip  int
		inTag string
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return NormSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			inTag = string(name)
			if inTag == "script" || inTag == "style" {
				skip++
			}
			if isBlockTag(inTag) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if isBlockTag(tag) {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isBlockTag(string(name)) {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isBlockTag(tag string) bool {
	switch tag {
	case "br", "p", "div", "li", "ul", "ol", "tr", "td", "th", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article", "header", "footer":
		return true
	default:
		return false
	}
}

var digitsRE = regexp.MustCompile(`\d[\d,. ]*`)

// FirstInt 提取文本中第一段数字（允许千分位分隔符），例如 "1,234 views" -> 1234。
// 不认识 K/M 之类的缩写：这些值保留为展示文本，不做解析。
func FirstInt(s string) int {
	m := digitsRE.FindString(s)
	if m == "" {
		return 0
	}
	m = strings.NewReplacer(",", "", ".", "", " ", "").Replace(m)
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Truncate 按 rune 截断到最多 n 个字符（用于 description 之类的摘要）。
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
