package embedhd

import (
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/provider"
)

var card = struct {
	boundary extract.Boundary
	link     extract.Field
	title    extract.Field
	thumb    extract.Field
	duration extract.Field
	views    extract.Field
}{
	boundary: extract.NewBoundary("div.video-card", "div.item-video", "li.video"),
	link:     extract.Field{extract.Attr(`a[href*="/video/"]`, "href")},
	title:    extract.Field{extract.Text(".title"), extract.Attr(`a[href*="/video/"]`, "title"), extract.Attr("img", "alt")},
	thumb: extract.Field{
		extract.URLAttr("img", "data-src"),
		extract.URLAttr("img", "data-original"),
		extract.URLAttr("img", "src"),
	},
	duration: extract.Field{extract.Text(".duration")},
	views:    extract.Field{extract.Text(".views")},
}

var related = extract.NewBoundary(".related div.video-card", "#related div.video-card")

// 详情页优先读 JSON-LD（VideoObject），缺失时退回 HTML。
var detail = struct {
	title       extract.Field
	description extract.Field
	thumb       extract.Field
	contentURL  extract.Field
	embed       extract.Field
	duration    extract.Field
	uploadDate  extract.Field
	views       extract.Field
	canonical   extract.Field
	categories  extract.Field
	tags        extract.Field
	nextPage    extract.Field
}{
	title:       extract.Field{extract.JSONLD("name"), extract.Text("h1"), extract.Attr(`meta[property="og:title"]`, "content")},
	description: extract.Field{extract.JSONLD("description"), extract.Attr(`meta[name="description"]`, "content")},
	thumb: extract.Field{
		extract.JSONLD("thumbnailUrl", "image.url", "image"),
		extract.URLAttr(`meta[property="og:image"]`, "content"),
	},
	contentURL: extract.Field{extract.JSONLD("contentUrl"), extract.URLAttr("video source", "src")},
	embed: extract.Field{
		extract.JSONLD("embedUrl"),
		extract.URLAttr("iframe.embed", "src"),
		extract.URLAttr(".player iframe", "src"),
	},
	duration:   extract.Field{extract.JSONLD("duration"), extract.Text(".video-info .duration")},
	uploadDate: extract.Field{extract.JSONLD("uploadDate"), extract.Attr("time[datetime]", "datetime")},
	views: extract.Field{
		extract.JSONLD("interactionStatistic.userInteractionCount"),
		extract.Text(".video-info .views"),
	},
	canonical:  extract.Field{extract.URLAttr(`link[rel="canonical"]`, "href")},
	categories: extract.Field{extract.Text(".video-categories a")},
	tags:       extract.Field{extract.Text(".video-tags a")},
	nextPage:   extract.Field{extract.URLAttr(`link[rel="next"]`, "href"), extract.URLAttr(".pagination a.next", "href")},
}

var categoryRule = provider.CategoryRule{
	Boundary: extract.NewBoundary("div.category-card", "ul.categories li"),
	Link:     extract.Field{extract.Attr("a[href]", "href")},
	Name:     extract.Field{extract.Text(".name"), extract.Text("a")},
	Count:    extract.Field{extract.Text(".count")},
	Thumb:    extract.Field{extract.URLAttr("img", "data-src"), extract.URLAttr("img", "src")},
}
