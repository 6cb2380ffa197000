package cliprank

import "github.com/John-Robertt/AVHub/internal/extract"

var clip = struct {
	boundary extract.Boundary
	link     extract.Field
	title    extract.Field
	thumb    extract.Field
	duration extract.Field
	views    extract.Field
	source   extract.Field
}{
	boundary: extract.NewBoundary("div.clip", "li.clip-item", "div.ranking-row"),
	link:     extract.Field{extract.Attr("a.clip-link[href]", "href"), extract.Attr("a[href]", "href")},
	title:    extract.Field{extract.Text(".clip-title"), extract.Attr("a.clip-link", "title"), extract.Attr("img", "alt")},
	thumb: extract.Field{
		extract.URLAttr("img", "data-src"),
		extract.URLAttr("img", "data-srcset"),
		extract.URLAttr("img", "src"),
	},
	duration: extract.Field{extract.Text(".duration"), extract.Text(".time")},
	views:    extract.Field{extract.Text(".views")},
	// 有些排行条目直接标出来源站点，作为 tag 保留。
	source: extract.Field{extract.Text(".clip-source"), extract.Attr("", "data-source")},
}

var watch = struct {
	video       extract.Field
	embed       extract.Field
	description extract.Field
	uploadDate  extract.Field
	tags        extract.Field
	categories  extract.Field
}{
	video: extract.Field{
		extract.URLAttr(`video source[type="video/mp4"]`, "src"),
		extract.URLAttr("video source", "src"),
		extract.URLAttr("video[src]", "src"),
		extract.Base64Config(extract.Attr("[data-player]", "data-player"), "file", "src"),
	},
	embed: extract.Field{
		extract.URLAttr(".player iframe", "src"),
		extract.URLAttr("iframe[allowfullscreen]", "src"),
	},
	description: extract.Field{
		extract.Text(".clip-description"),
		extract.Attr(`meta[name="description"]`, "content"),
	},
	uploadDate: extract.Field{extract.Attr("time[datetime]", "datetime")},
	tags:       extract.Field{extract.Text(".clip-tags a")},
	categories: extract.Field{extract.Text(".clip-categories a")},
}

// staticCategories 是站点导航中的固定分类（站点没有可抓取的分类索引页）。
var staticCategories = [][2]string{
	{"amateur", "Amateur"},
	{"homemade", "Homemade"},
	{"couples", "Couples"},
	{"milf", "MILF"},
	{"pov", "POV"},
	{"outdoor", "Outdoor"},
	{"vintage", "Vintage"},
	{"compilation", "Compilation"},
}
