package storyhub

import (
	"github.com/John-Robertt/AVHub/internal/extract"
	"github.com/John-Robertt/AVHub/internal/provider"
)

var entry = struct {
	boundary extract.Boundary
	link     extract.Field
	title    extract.Field
	excerpt  extract.Field
	category extract.Field
	views    extract.Field
	date     extract.Field
	thumb    extract.Field
}{
	boundary: extract.NewBoundary("div.story-item", "article.story", "li.story"),
	link:     extract.Field{extract.Attr("h2 a[href]", "href"), extract.Attr("h3 a[href]", "href"), extract.Attr("a.title[href]", "href")},
	title:    extract.Field{extract.Text("h2 a"), extract.Text("h3 a"), extract.Text("a.title")},
	excerpt:  extract.Field{extract.Text(".excerpt"), extract.Text("p")},
	category: extract.Field{extract.Text(".story-category a"), extract.Text(".cat")},
	views:    extract.Field{extract.Text(".views"), extract.Text(".reads")},
	date:     extract.Field{extract.Attr("time[datetime]", "datetime"), extract.Text(".date")},
	thumb:    extract.Field{extract.URLAttr("img", "data-src"), extract.URLAttr("img", "src")},
}

var related = extract.NewBoundary(".related-stories div.story-item", ".related-stories li.story")

var detail = struct {
	title      extract.Field
	canonical  extract.Field
	paragraphs extract.Field
	pages      extract.Field
	author     extract.Field
	date       extract.Field
	views      extract.Field
	categories extract.Field
	tags       extract.Field
	thumb      extract.Field
}{
	title:      extract.Field{extract.Text("h1.story-title"), extract.Text("article h1"), extract.Attr(`meta[property="og:title"]`, "content")},
	canonical:  extract.Field{extract.URLAttr(`link[rel="canonical"]`, "href")},
	paragraphs: extract.Field{extract.Text(".story-content p"), extract.Text(".story-content")},
	pages:      extract.Field{extract.Attr(".story-pagination a[href]", "href")},
	author:     extract.Field{extract.Text(".story-meta .author"), extract.Attr(`meta[name="author"]`, "content")},
	date:       extract.Field{extract.Attr(".story-meta time[datetime]", "datetime"), extract.Text(".story-meta .date")},
	views:      extract.Field{extract.Text(".story-meta .views")},
	categories: extract.Field{extract.Text(".story-meta .story-category a")},
	tags:       extract.Field{extract.Text(".story-tags a")},
	thumb:      extract.Field{extract.URLAttr(`meta[property="og:image"]`, "content")},
}

var categoryRule = provider.CategoryRule{
	Boundary: extract.NewBoundary("ul.category-list li", "div.category-item"),
	Link:     extract.Field{extract.Attr("a[href]", "href")},
	Name:     extract.Field{extract.Text("a .name"), extract.Text("a")},
	Count:    extract.Field{extract.Text(".count")},
}
