package site

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/experimentd/internal/form"
)

//go:embed templates/*.html
var templateFS embed.FS

// View names.
const (
	viewIndex         = "index"
	viewAdd           = "add"
	viewQuestionnaire = "questionnaire"
	viewMessage       = "message"
)

// page is what every view receives; Data fills the "content" block.
type page struct {
	Title string
	Data  any
}

// renderer executes one template set per view, each sharing the layout.
type renderer struct {
	views map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"slug":      Slug,
		"toggleKey": form.ToggleKey,
	}
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	r := &renderer{views: map[string]*template.Template{}}
	for _, name := range []string{viewIndex, viewAdd, viewQuestionnaire, viewMessage} {
		base, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		t, err := base.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing view %s: %w", name, err)
		}
		r.views[name] = t
	}
	return r, nil
}

// Render implements echo.Renderer.
func (r *renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.views[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// Slug turns an experiment name into its questionnaire path segment.
func Slug(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}

// Unslug reverses Slug. Hyphens in a stored name cannot be told apart from
// spaces, so they never round trip.
func Unslug(segment string) string {
	return strings.ReplaceAll(segment, "-", " ")
}
