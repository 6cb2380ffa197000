package domain

import "strings"

// ContentType 决定 Video 中哪些可选字段有意义（视频字段 / 图集 / 文本）。
type ContentType string

const (
	TypeVideo   ContentType = "porn-video"
	TypeGallery ContentType = "sex-gallery"
	TypeStory   ContentType = "sex-story"
)

// Valid 报告 t 是否是已知的内容类型。
func (t ContentType) Valid() bool {
	switch t {
	case TypeVideo, TypeGallery, TypeStory:
		return true
	default:
		return false
	}
}

// Video 是所有 provider 统一归一化后的条目（UnifiedVideoData）。
//
// 约束：
// - Title 必填；PostURL 与 ID 至少有一个，否则条目在提取阶段就应被丢弃
// - Thumbnail/VideoURL/EmbedURL/GalleryImages 一旦输出必须是绝对 URL（可能已经过 relay 代理）
// - Duration/Views/UploadDate 是展示用的自由文本，不做解析；"0"/"Unknown" 是合法占位值
// - RelatedVideos 只有一层：related 条目自身不再携带 RelatedVideos
// - ID 对于没有稳定 ID 的 provider 可能是列表位置，重新抓取后不保证稳定
type Video struct {
	ID           string      `json:"id"`
	Slug         string      `json:"slug"`
	Title        string      `json:"title"`
	Provider     string      `json:"provider"`
	Type         ContentType `json:"type"`
	Thumbnail    string      `json:"thumbnail"`
	ThumbnailURL string      `json:"thumbnailUrl"`

	VideoURL string `json:"videoUrl,omitempty"`
	EmbedURL string `json:"embedUrl,omitempty"`
	URL      string `json:"url,omitempty"`

	Duration   string `json:"duration,omitempty"`
	Views      string `json:"views,omitempty"`
	UploadDate string `json:"uploadDate,omitempty"`

	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`

	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`

	GalleryImages []string `json:"galleryImages,omitempty"`
	RelatedVideos []Video  `json:"relatedVideos,omitempty"`

	PostURL string `json:"postUrl"`
}

// Valid 判断条目是否满足“可输出”的最小要求。
func (v Video) Valid() bool {
	if strings.TrimSpace(v.Title) == "" {
		return false
	}
	return strings.TrimSpace(v.PostURL) != "" || strings.TrimSpace(v.ID) != ""
}

// Shallow 返回不带 RelatedVideos 的副本（用于填充 related 列表，避免递归）。
func (v Video) Shallow() Video {
	v.RelatedVideos = nil
	v.Categories = cloneStrings(v.Categories)
	v.Tags = cloneStrings(v.Tags)
	v.GalleryImages = cloneStrings(v.GalleryImages)
	return v
}

// SetThumbnail 同时写入 thumbnail 与 thumbnailUrl（两者语义相同，前端历史上两个名字都在用）。
func (v *Video) SetThumbnail(u string) {
	v.Thumbnail = u
	v.ThumbnailURL = u
}

// PlaybackKind 标记一个播放来源的类别。
type PlaybackKind string

const (
	PlaybackFile   PlaybackKind = "file"
	PlaybackProxy  PlaybackKind = "proxy"
	PlaybackEmbed  PlaybackKind = "embed"
	PlaybackSource PlaybackKind = "page"
)

// Playback 是一个候选播放来源。
type Playback struct {
	Kind PlaybackKind `json:"kind"`
	URL  string       `json:"url"`
}

// Playback 按固定优先级返回可用的播放来源：
// 直链文件 -> provider 专属代理 -> 通用 iframe 代理 -> 原始页面。
// 第一个元素就是当前权威来源；没有任何来源时返回 nil。
func (v Video) Playback() []Playback {
	cands := []Playback{
		{Kind: PlaybackFile, URL: v.VideoURL},
		{Kind: PlaybackProxy, URL: v.URL},
		{Kind: PlaybackEmbed, URL: v.EmbedURL},
		{Kind: PlaybackSource, URL: v.PostURL},
	}
	out := make([]Playback, 0, len(cands))
	for _, c := range cands {
		if strings.TrimSpace(c.URL) != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
