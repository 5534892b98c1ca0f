package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/parsing"
	"github.com/luminagoods/site/src/utils"
	"github.com/teacat/noire"
)

//go:embed src
var embeddedTemplateFs embed.FS
var embeddedTemplates map[string]*template.Template
var initOnce sync.Once

func getTemplatesFromFS(templateFS fs.ReadDirFS) (map[string]*template.Template, map[string]error) {
	templates := make(map[string]*template.Template)
	errs := make(map[string]error)

	files := utils.Must1(templateFS.ReadDir("src"))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".html") {
			continue
		}

		t := template.New(f.Name())
		t = t.Funcs(sprig.FuncMap())
		t = t.Funcs(SiteTemplateFuncs)
		t, err := t.ParseFS(templateFS,
			"src/include/*",
			"src/"+f.Name(),
		)
		if err != nil {
			errs[f.Name()] = err
			continue
		}

		templates[f.Name()] = t
	}

	return templates, errs
}

// Init parses every embedded template. It panics if any of them fail to parse.
// GetTemplate calls it on first use, so calling it at startup only moves the
// failure earlier.
func Init() {
	initOnce.Do(func() {
		var errs map[string]error
		type errEntry struct {
			name string
			err  error
		}

		embeddedTemplates, errs = getTemplatesFromFS(embeddedTemplateFs)
		if len(errs) > 0 {
			var errsList []errEntry
			for filename, err := range errs {
				errsList = append(errsList, errEntry{filename, err})
			}
			sort.Slice(errsList, func(i, j int) bool {
				return strings.Compare(errsList[i].name, errsList[j].name) < 0
			})
			for _, err := range errsList {
				logging.Error().Str("filename", err.name).Err(err.err).Msg("Failed to parse template")
			}
			panic("Failed to parse templates; see above")
		}
	})
}

func GetTemplate(name string) *template.Template {
	Init()

	template, hasTemplate := embeddedTemplates[name]
	if !hasTemplate {
		panic(oops.New(nil, "Template not found: %s", name))
	}
	return template
}

var controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)

var SiteTemplateFuncs = template.FuncMap{
	"absolutedate": func(t time.Time) string {
		return t.UTC().Format("January 2, 2006, 3:04pm")
	},
	"absoluteshortdate": func(t time.Time) string {
		return t.UTC().Format("January 2, 2006")
	},
	"brighten": func(amount float64, color noire.Color) noire.Color {
		return color.Tint(amount)
	},
	"darken": func(amount float64, color noire.Color) noire.Color {
		return color.Shade(amount)
	},
	"color2css": func(color noire.Color) template.CSS {
		return template.CSS(color.HTML())
	},
	"hex2color": func(hex string) (noire.Color, error) {
		if len(hex) < 6 {
			return noire.Color{}, fmt.Errorf("hex color was invalid: %v", hex)
		}
		return noire.NewHex(hex), nil
	},
	// linkify escapes visitor text and turns bare links into anchors.
	"linkify": func(text string) template.HTML {
		return parsing.LinkifyText(controlCharRegex.ReplaceAllString(text, ""))
	},
	"cleancontrolchars": func(str string) string {
		return controlCharRegex.ReplaceAllString(str, "")
	},
	"lastidx": func(idx int, l int) bool {
		return idx == l-1
	},
}
