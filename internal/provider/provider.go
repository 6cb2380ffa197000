package provider

import (
	"context"

	"github.com/John-Robertt/AVHub/internal/domain"
)

// Fetcher 负责拿到原始 HTML（直连或经 relay）。
//
// 约束：
// - 非 2xx / 网络失败 => *FetchError
// - 需要 relay 却没有配置 => *ConfigurationError（在任何网络 I/O 之前失败）
// - 不做重试（重试策略由调用方决定）
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Scraper 把“站点变化”限制在 provider 子包内部；调用方只依赖统一接口与 domain 类型。
//
// 约束：
// - 每个方法都返回信封，永远不 panic、不返回 Go error
// - 能力差异通过 Info().Capabilities 表达，调用方不得按 provider id 分支
// - page 从 1 开始；<1 按 1 处理
type Scraper interface {
	Info() Info
	FetchVideos(ctx context.Context, page int) domain.Response[[]domain.Video]
	FetchCategoryVideos(ctx context.Context, category string, page int) domain.Response[[]domain.Video]
	GetVideoDetails(ctx context.Context, slug, categorySlug string) domain.Response[domain.Video]
	GetCategories(ctx context.Context) domain.Response[[]domain.Category]
	SearchVideos(ctx context.Context, query string, page int) domain.Response[[]domain.Video]
}

// Info 是 provider 的元数据（GET /providers 的输出）。
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	BaseURL      string       `json:"baseUrl"`
	PageSize     int          `json:"pageSize"`
	Capabilities Capabilities `json:"capabilities"`
}

// Capabilities 是 provider 的能力声明。
type Capabilities struct {
	HasSearch           bool `json:"hasSearch"`
	HasGalleries        bool `json:"hasGalleries"`
	HasStories          bool `json:"hasStories"`
	PaginatesListing    bool `json:"paginatesListing"`
	PaginatesCategories bool `json:"paginatesCategories"`
	DynamicCategories   bool `json:"dynamicCategories"`
	RequiresRelay       bool `json:"requiresRelay"`
	StableIDs           bool `json:"stableIds"`
}
