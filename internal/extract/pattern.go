package extract

import "regexp"

// Match 是一次正则匹配的结果（文档顺序）。
type Match struct {
	Full   string
	Groups []string // Groups[0] 是第一个捕获组
	Index  int      // 在输入中的起始字节偏移
}

// Group 返回第 i 个捕获组（从 1 开始）；不存在时返回 ""。
func (m Match) Group(i int) string {
	if i <= 0 {
		return m.Full
	}
	if i > len(m.Groups) {
		return ""
	}
	return m.Groups[i-1]
}

// ExtractFirst 返回 re 在 s 中的第一个匹配：有捕获组时取第一个捕获组，否则取整段匹配。
func ExtractFirst(s string, re *regexp.Regexp) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// ExtractAll 全局应用 re，按文档顺序返回每一个匹配。
func ExtractAll(s string, re *regexp.Regexp) []Match {
	if re == nil {
		return nil
	}
	idx := re.FindAllStringSubmatchIndex(s, -1)
	out := make([]Match, 0, len(idx))
	for _, loc := range idx {
		m := Match{Full: s[loc[0]:loc[1]], Index: loc[0]}
		for g := 2; g+1 < len(loc); g += 2 {
			if loc[g] < 0 {
				m.Groups = append(m.Groups, "")
				continue
			}
			m.Groups = append(m.Groups, s[loc[g]:loc[g+1]])
		}
		out = append(out, m)
	}
	return out
}
