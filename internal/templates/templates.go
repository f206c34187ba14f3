package templates

import (
	"embed"
	"html/template"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"recipebox/internal/html"
)

//go:embed *.html
var htmlFiles embed.FS

var Home,
	Recipe,
	Favorites,
	APIKey *template.Template

var initOnce sync.Once
var initErr error

// Init parses the embedded pages. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		upper := cases.Upper(language.English)
		funcs := template.FuncMap{
			"upper": func(s string) string { return upper.String(s) },
			"text":  html.StripTags,
		}
		tmpls, err := template.New("all").Funcs(funcs).ParseFS(htmlFiles, "*.html")
		if err != nil {
			initErr = err
			return
		}
		Home = ensure(tmpls, "home.html")
		Recipe = ensure(tmpls, "recipe.html")
		Favorites = ensure(tmpls, "favorites.html")
		APIKey = ensure(tmpls, "apikey.html")
	})
	return initErr
}

func ensure(templates *template.Template, name string) *template.Template {
	tmpl := templates.Lookup(name)
	if tmpl == nil {
		panic("template " + name + " not found")
	}
	return tmpl
}
