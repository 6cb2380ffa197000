package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Document 把原始 HTML 解析为 goquery 文档。
func Document(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Boundary 是 provider 专属的 item block 边界（一个 CSS 选择器，按顺序尝试多个写法）。
// 第一个命中任何元素的选择器生效，后面的写法只作为站点改版时的兜底。
type Boundary []cascadia.Selector

// NewBoundary 编译一组 block 选择器；非法选择器直接 panic（规则表属于代码，不是用户输入）。
func NewBoundary(css ...string) Boundary {
	b := make(Boundary, 0, len(css))
	for _, c := range css {
		if strings.TrimSpace(c) == "" {
			continue
		}
		b = append(b, cascadia.MustCompile(c))
	}
	return b
}

// Blocks 按文档顺序遍历 root 下的 item block。
func (b Boundary) Blocks(root *goquery.Selection, fn func(i int, s *goquery.Selection)) int {
	if root == nil {
		return 0
	}
	for _, m := range b {
		sel := root.FindMatcher(m)
		if sel.Length() == 0 {
			continue
		}
		sel.Each(fn)
		return sel.Length()
	}
	return 0
}
