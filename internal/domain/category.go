package domain

// Category 是统一的分类条目（UnifiedCategoryData）。
// 分类既可能来自手工维护的静态列表，也可能来自分类索引页的抓取，取决于 provider 能力。
type Category struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Provider  string `json:"provider"`
	Count     int    `json:"count,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}
