package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"strconv"

	"app-clima/internal/modules/climate/types"
)

var pageTmpl *template.Template

var errNotLoaded = errors.New("climate templates not loaded: call views.LoadTemplates during startup")

var funcs = template.FuncMap{
	"num": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}

// loadTemplatesFromFS loads page and partial templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("climate").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	pageTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// CoordinatesData is the view model for the coordinate inputs. Latitude and
// Longitude are already formatted with 6 decimals.
type CoordinatesData struct {
	Latitude  string
	Longitude string
	Notice    string
	Error     string
}

// DatesData bounds the two date pickers. All values are YYYY-MM-DD.
type DatesData struct {
	Start string
	End   string
	Min   string
	Max   string
}

// ResultsData is the view model for a successful fetch.
type ResultsData struct {
	Message     string
	Columns     []string
	Records     []types.ClimateRecord
	DownloadURL string
}

type ErrorData struct {
	Message string
}

type IndexData struct {
	Coordinates CoordinatesData
	Dates       DatesData
	Result      *ResultsData
	Error       *ErrorData
}

func RenderIndex(w io.Writer, data *IndexData) error {
	return execute(w, "index.html", data)
}

// RenderCoordinatesPartial executes only the coordinates fieldset.
// Use for HTMX swaps after geolocation.
func RenderCoordinatesPartial(w io.Writer, data *CoordinatesData) error {
	return execute(w, "coordinates", data)
}

func RenderResultsPartial(w io.Writer, data *ResultsData) error {
	return execute(w, "results", data)
}

func RenderErrorPartial(w io.Writer, data *ErrorData) error {
	return execute(w, "error", data)
}

func execute(w io.Writer, name string, data any) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, name, data)
}
