package picgallery

import (
	"github.com/John-Robertt/AVHub/internal/extract"
)

var card = struct {
	boundary extract.Boundary
	link     extract.Field
	title    extract.Field
	thumb    extract.Field
	kind     extract.Field
	count    extract.Field
}{
	boundary: extract.NewBoundary("div.gallery-card", "li.thumb", "article.post"),
	link:     extract.Field{extract.Attr("a.card-link", "href"), extract.Attr("a[href]", "href")},
	title: extract.Field{
		extract.Text(".card-title"),
		extract.Attr("a[title]", "title"),
		extract.Attr("img[alt]", "alt"),
	},
	thumb: extract.Field{
		extract.URLAttr("img", "data-src"),
		extract.URLAttr("img", "data-original"),
		extract.URLAttr("img", "src"),
	},
	kind:  extract.Field{extract.Attr("", "data-type"), extract.Attr("[data-type]", "data-type")},
	count: extract.Field{extract.Text(".card-count"), extract.Text(".count")},
}

var related = extract.NewBoundary(".related div.gallery-card", ".related li.thumb")

var detail = struct {
	title      extract.Field
	kind       extract.Field
	canonical  extract.Field
	thumb      extract.Field
	images     extract.Field
	video      extract.Field
	embed      extract.Field
	views      extract.Field
	uploadDate extract.Field
	categories extract.Field
	tags       extract.Field
}{
	title: extract.Field{
		extract.Text("h1.gallery-title"),
		extract.Text("h1"),
		extract.Attr(`meta[property="og:title"]`, "content"),
	},
	kind: extract.Field{
		extract.Attr("body[data-type]", "data-type"),
		extract.Attr(`meta[name="content-type"]`, "content"),
		extract.Attr("[data-type]", "data-type"),
	},
	canonical: extract.Field{extract.URLAttr(`link[rel="canonical"]`, "href")},
	thumb: extract.Field{
		extract.URLAttr(`meta[property="og:image"]`, "content"),
		extract.URLAttr(".gallery img", "data-src"),
	},
	// 全尺寸链接优先，其次是懒加载属性，最后才是 src（通常是缩略图尺寸）。
	images: extract.Field{
		extract.URLAttr(".gallery a[data-full]", "data-full"),
		extract.URLAttr(".gallery img", "data-src"),
		extract.URLAttr(".gallery img", "src"),
	},
	video: extract.Field{
		extract.URLAttr(`video source[type="video/mp4"]`, "src"),
		extract.URLAttr("video source", "src"),
		extract.URLAttr("video[src]", "src"),
	},
	embed:      extract.Field{extract.URLAttr(".player iframe", "src")},
	views:      extract.Field{extract.Text(".stats .views")},
	uploadDate: extract.Field{extract.Attr("time[datetime]", "datetime"), extract.Text(".stats .date")},
	categories: extract.Field{extract.Text(`.breadcrumbs a[href*="/category/"]`)},
	tags:       extract.Field{extract.Text(".tags a")},
}

// 站点没有分类索引页，分类是手工维护的静态表。
var staticCategories = [][2]string{
	{"amateur", "Amateur"},
	{"cosplay", "Cosplay"},
	{"lingerie", "Lingerie"},
	{"outdoor", "Outdoor"},
	{"selfie", "Selfies"},
	{"vintage", "Vintage"},
}
