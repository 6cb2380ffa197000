package tubewp

import (
	"regexp"

	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/provider"
)

var postIDRE = regexp.MustCompile(`(?:post-|[?&]p=)(\d+)`)

func postID(s string) string { return extract.ExtractFirst(s, postIDRE) }

// 列表 / 相关视频条目的规则。主题版本不同，同一字段有多种写法。
var item = struct {
	boundary extract.Boundary
	link     extract.Field
	title    extract.Field
	id       extract.Field
	thumb    extract.Field
	duration extract.Field
	views    extract.Field
}{
	boundary: extract.NewBoundary("article.thumb-block", "div.video-block", "article.post"),
	link:     extract.Field{extract.Attr("a[href]", "href")},
	title: extract.Field{
		extract.Attr("a[title]", "title"),
		extract.Text(".entry-header span"),
		extract.Text(".title"),
		extract.Attr("img[alt]", "alt"),
	},
	id: extract.Field{
		extract.Attr("", "data-post-id"),
		extract.Map(extract.Attr("", "class"), postID),
		extract.Map(extract.Attr("", "id"), postID),
	},
	thumb: extract.Field{
		extract.URLAttr("img", "data-src"),
		extract.URLAttr("img", "data-lazy-src"),
		extract.URLAttr("img", "data-srcset"),
		extract.URLAttr("img", "src"),
		extract.URLAttr("", "data-thumb"),
	},
	duration: extract.Field{extract.Text(".duration")},
	views:    extract.Field{extract.Text(".views")},
}

var (
	pagerNumbers = extract.Field{extract.Text(".pagination a.page-numbers:not(.next):not(.prev)"), extract.Text(".pagination li a")}
	relatedRoot  = extract.NewBoundary(".under-video-block article.thumb-block", ".related-posts article.thumb-block", "#related article")
)

// 详情页规则。视频源按“显式 <source>（mp4 优先）-> <video src> -> base64 播放器配置”的顺序尝试。
var detail = struct {
	title       extract.Field
	canonical   extract.Field
	id          extract.Field
	thumb       extract.Field
	video       extract.Field
	embed       extract.Field
	duration    extract.Field
	views       extract.Field
	uploadDate  extract.Field
	description extract.Field
	categories  extract.Field
	tags        extract.Field
}{
	title: extract.Field{
		extract.Text("h1.entry-title"),
		extract.Attr(`meta[property="og:title"]`, "content"),
		extract.Text("title"),
	},
	canonical: extract.Field{
		extract.URLAttr(`link[rel="canonical"]`, "href"),
		extract.URLAttr(`meta[property="og:url"]`, "content"),
	},
	id: extract.Field{
		extract.Map(extract.Attr(`link[rel="shortlink"]`, "href"), postID),
		extract.Map(extract.Attr("article[id]", "id"), postID),
	},
	thumb: extract.Field{
		extract.URLAttr(`meta[property="og:image"]`, "content"),
		extract.URLAttr("video[poster]", "poster"),
		extract.URLAttr(".video-player img", "src"),
	},
	video: extract.Field{
		extract.URLAttr(`video source[type="video/mp4"]`, "src"),
		extract.URLAttr(`video source[src$=".mp4"]`, "src"),
		extract.URLAttr("video source", "src"),
		extract.URLAttr("video[src]", "src"),
		extract.Base64Config(extract.Attr("[data-config]", "data-config"), "file", "sources.file", "sources.src"),
	},
	embed: extract.Field{
		extract.URLAttr(".responsive-player iframe", "src"),
		extract.URLAttr("iframe[data-src]", "data-src"),
		extract.URLAttr(".video-player iframe", "src"),
	},
	duration: extract.Field{
		extract.Attr(`meta[itemprop="duration"]`, "content"),
		extract.Text("#video-about .duration"),
	},
	views: extract.Field{
		extract.Text("#video-views span"),
		extract.Text(".video-views"),
	},
	uploadDate: extract.Field{
		extract.Attr(`meta[itemprop="uploadDate"]`, "content"),
		extract.Attr(`meta[property="article:published_time"]`, "content"),
	},
	description: extract.Field{
		extract.Text("#video-about .desc"),
		extract.Attr(`meta[name="description"]`, "content"),
	},
	categories: extract.Field{extract.Text(`#video-about .tags a[href*="/category/"]`)},
	tags:       extract.Field{extract.Text(`#video-about .tags a[href*="/tag/"]`), extract.Text(`a[rel="tag"]`)},
}

var categoryRule = provider.CategoryRule{
	Boundary: extract.NewBoundary("article.thumb-block.category", "ul.categories li"),
	Link:     extract.Field{extract.Attr("a[href]", "href")},
	Name:     extract.Field{extract.Text(".cat-title"), extract.Attr("a[title]", "title"), extract.Text("a")},
	Count:    extract.Field{extract.Text(".video-count"), extract.Text(".count")},
	Thumb:    extract.Field{extract.URLAttr("img", "data-src"), extract.URLAttr("img", "src")},
}
