package extract

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Candidate 是某个字段的一种提取方式。
// 同一字段的多个 Candidate 组成 Field，按顺序尝试，第一个非空结果胜出。
type Candidate interface {
	Extract(s *goquery.Selection) string
}

// multiCandidate 能返回全部匹配值（图集之类“收集所有”的字段会用到）。
type multiCandidate interface {
	ExtractAll(s *goquery.Selection) []string
}

// Field 是按优先级排列的候选提取方式。
// 新增一种兜底写法只需在规则表里追加一个 Candidate，而不是修改控制流。
type Field []Candidate

// First 返回第一个非空的候选结果；全部为空时返回 ""。
func (f Field) First(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	for _, c := range f {
		if c == nil {
			continue
		}
		if v := strings.TrimSpace(c.Extract(s)); v != "" {
			return v
		}
	}
	return ""
}

// All 依次收集每个候选的全部结果（保持顺序，不去重）。
func (f Field) All(s *goquery.Selection) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, c := range f {
		if c == nil {
			continue
		}
		if mc, ok := c.(multiCandidate); ok {
			for _, v := range mc.ExtractAll(s) {
				if v = strings.TrimSpace(v); v != "" {
					out = append(out, v)
				}
			}
			continue
		}
		if v := strings.TrimSpace(c.Extract(s)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FirstAll 返回第一个有结果的候选的全部匹配（同一字段的不同写法互为替代，而不是互相补充）。
func (f Field) FirstAll(s *goquery.Selection) []string {
	if s == nil {
		return nil
	}
	for _, c := range f {
		if c == nil {
			continue
		}
		var vals []string
		if mc, ok := c.(multiCandidate); ok {
			vals = mc.ExtractAll(s)
		} else if v := c.Extract(s); v != "" {
			vals = []string{v}
		}
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func find(s *goquery.Selection, m cascadia.Selector) *goquery.Selection {
	if m == nil {
		return s
	}
	return s.FindMatcher(m)
}

func compile(css string) cascadia.Selector {
	css = strings.TrimSpace(css)
	if css == "" {
		return nil
	}
	return cascadia.MustCompile(css)
}

type attrCandidate struct {
	sel  cascadia.Selector
	name string
	url  bool
}

// Attr 取 css 命中的第一个带非空 name 属性的元素的属性值；css 为空表示 block 自身。
func Attr(css, name string) Candidate {
	return attrCandidate{sel: compile(css), name: name}
}

// URLAttr 与 Attr 相同，但会跳过 data:/javascript:/"#" 之类不可用的 URL 值
// （懒加载占位图通常就是 data: URI）。
func URLAttr(css, name string) Candidate {
	return attrCandidate{sel: compile(css), name: name, url: true}
}

func (c attrCandidate) Extract(s *goquery.Selection) string {
	vals := c.collect(s, true)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (c attrCandidate) ExtractAll(s *goquery.Selection) []string {
	return c.collect(s, false)
}

func (c attrCandidate) collect(s *goquery.Selection, firstOnly bool) []string {
	var out []string
	find(s, c.sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		v, ok := el.Attr(c.name)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return true
		}
		if c.url && !usableURL(v) {
			return true
		}
		// srcset 形如 "a.jpg 320w, b.jpg 640w"：取最后一个（通常最大）。
		if c.name == "srcset" || c.name == "data-srcset" {
			v = largestSrcset(v)
			if v == "" {
				return true
			}
		}
		out = append(out, v)
		return !firstOnly
	})
	return out
}

func usableURL(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || strings.HasPrefix(v, "#") {
		return false
	}
	for _, p := range []string{"data:", "javascript:", "about:", "blob:"} {
		if strings.HasPrefix(v, p) {
			return false
		}
	}
	return true
}

func largestSrcset(v string) string {
	parts := strings.Split(v, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		f := strings.Fields(parts[i])
		if len(f) > 0 && usableURL(f[0]) {
			return f[0]
		}
	}
	return ""
}

type textCandidate struct {
	sel cascadia.Selector
}

// Text 取 css 命中的第一个非空元素的可见文本（空白已折叠）；css 为空表示 block 自身。
func Text(css string) Candidate {
	return textCandidate{sel: compile(css)}
}

func (c textCandidate) Extract(s *goquery.Selection) string {
	var out string
	find(s, c.sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		out = NormSpace(el.Text())
		return out == ""
	})
	return out
}

func (c textCandidate) ExtractAll(s *goquery.Selection) []string {
	var out []string
	find(s, c.sel).Each(func(_ int, el *goquery.Selection) {
		if t := NormSpace(el.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

type regexCandidate struct {
	re    *regexp.Regexp
	group int
}

// Regex 在 block 的 outer HTML 上应用 re，返回第 group 个捕获组（0 表示整段匹配）。
func Regex(re *regexp.Regexp, group int) Candidate {
	return regexCandidate{re: re, group: group}
}

func (c regexCandidate) Extract(s *goquery.Selection) string {
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	m := c.re.FindStringSubmatch(h)
	if m == nil || c.group >= len(m) {
		return ""
	}
	return m[c.group]
}

func (c regexCandidate) ExtractAll(s *goquery.Selection) []string {
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range ExtractAll(h, c.re) {
		out = append(out, m.Group(c.group))
	}
	return out
}

type mapCandidate struct {
	inner Candidate
	fn    func(string) string
}

// Map 对 inner 的结果做一次转换（例如从 "post-123" 中取出数字）。
func Map(inner Candidate, fn func(string) string) Candidate {
	return mapCandidate{inner: inner, fn: fn}
}

func (c mapCandidate) Extract(s *goquery.Selection) string {
	v := c.inner.Extract(s)
	if v == "" {
		return ""
	}
	return c.fn(v)
}

type base64Candidate struct {
	inner Candidate
	keys  []string
}

var embeddedURLRE = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// Base64Config 解码 inner 取得的 base64 播放器配置（常见于 data-config / data-player 属性或内联脚本），
// 返回 JSON 中第一个存在的 keys 字段；解码结果不是 JSON 时退化为查找第一个 http(s) URL。
func Base64Config(inner Candidate, keys ...string) Candidate {
	return base64Candidate{inner: inner, keys: keys}
}

func (c base64Candidate) Extract(s *goquery.Selection) string {
	raw := strings.TrimSpace(c.inner.Extract(s))
	if raw == "" {
		return ""
	}
	decoded, ok := decodeBase64(raw)
	if !ok {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(decoded, &obj); err == nil {
		for _, k := range c.keys {
			if v := lookupString(obj, k); v != "" {
				return v
			}
		}
		return ""
	}
	return embeddedURLRE.FindString(string(decoded))
}

func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

type jsonLDCandidate struct {
	keys []string
}

var jsonLDSel = cascadia.MustCompile(`script[type="application/ld+json"]`)

// JSONLD 在 selection 内的 application/ld+json 脚本中查找第一个存在的 key（支持 "a.b" 路径与 @graph）。
func JSONLD(keys ...string) Candidate {
	return jsonLDCandidate{keys: keys}
}

func (c jsonLDCandidate) Extract(s *goquery.Selection) string {
	var out string
	s.FindMatcher(jsonLDSel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		for _, obj := range jsonLDObjects(el.Text()) {
			for _, k := range c.keys {
				if v := lookupString(obj, k); v != "" {
					out = v
					return false
				}
			}
		}
		return true
	})
	return out
}

func jsonLDObjects(raw string) []map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var any1 any
	if err := json.Unmarshal([]byte(raw), &any1); err != nil {
		return nil
	}
	var out []map[string]any
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			out = append(out, t)
			if g, ok := t["@graph"]; ok {
				walk(g)
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		}
	}
	walk(any1)
	return out
}

// lookupString 按 "a.b.c" 路径取字符串；遇到数组取第一个能取到值的元素，数字转为十进制文本。
func lookupString(obj map[string]any, path string) string {
	var cur any = obj
	for _, part := range strings.Split(path, ".") {
		cur = descend(cur, part)
		if cur == nil {
			return ""
		}
	}
	return scalarString(cur)
}

func descend(v any, key string) any {
	switch t := v.(type) {
	case map[string]any:
		return t[key]
	case []any:
		for _, e := range t {
			if r := descend(e, key); r != nil {
				return r
			}
		}
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	case []any:
		for _, e := range t {
			if s := scalarString(e); s != "" {
				return s
			}
		}
	}
	return ""
}
