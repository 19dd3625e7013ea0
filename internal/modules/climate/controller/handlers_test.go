package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"app-clima/internal/modules/climate/export"
	"app-clima/internal/modules/climate/power"
	"app-clima/internal/modules/climate/session"
	"app-clima/internal/modules/climate/types"
	"app-clima/internal/modules/climate/views"
)

func TestMain(m *testing.M) {
	if err := views.LoadTemplates(); err != nil {
		fmt.Fprintf(os.Stderr, "load templates: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

var fixedNow = time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)

type stubAcquirer struct {
	table   types.Table
	err     error
	queries []power.Query
}

func (a *stubAcquirer) Acquire(_ context.Context, q power.Query) (types.Table, error) {
	a.queries = append(a.queries, q)
	return a.table, a.err
}

func twoDayTable() types.Table {
	return types.Table{Records: []types.ClimateRecord{
		{Date: "20230101", P: 0.5, Tmed: 22.5},
		{Date: "20230102", P: 1.25, Tmed: 23.5},
	}}
}

type testEnv struct {
	acq *stubAcquirer
	mux *http.ServeMux
	jar []*http.Cookie
}

func newTestEnv(acq *stubAcquirer) *testEnv {
	mgr := session.NewManager(session.NewMemoryStore(time.Hour), "sid", false)
	ctrl := NewClimateController(acq, mgr).(*climateControllerImpl)
	ctrl.now = func() time.Time { return fixedNow }
	mux := http.NewServeMux()
	ctrl.RegisterRoutes(mux)
	return &testEnv{acq: acq, mux: mux}
}

// do sends req with the cookies collected so far and keeps any new ones.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range e.jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	if cs := rec.Result().Cookies(); len(cs) > 0 {
		e.jar = cs
	}
	return rec
}

func formRequest(path string, form url.Values, htmx bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return req
}

func validFetchForm() url.Values {
	return url.Values{
		"latitude":  {"-21.794600"},
		"longitude": {"-48.176600"},
		"start":     {"2023-01-01"},
		"end":       {"2023-01-02"},
	}
}

func Test_handleIndex(t *testing.T) {
	t.Run("renders defaults", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{})
		rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		body := rec.Body.String()
		for _, want := range []string{
			`value="-21.794600"`,
			`value="-48.176600"`,
			`value="1994-10-22"`,
			`min="1990-01-01"`,
			`max="2024-10-14"`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
	})

	t.Run("returns 404 when path is not /", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{})
		rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func Test_handleFetch(t *testing.T) {
	t.Run("htmx success renders results and stores table", func(t *testing.T) {
		acq := &stubAcquirer{table: twoDayTable()}
		env := newTestEnv(acq)

		rec := env.do(formRequest("/fetch", validFetchForm(), true))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		body := rec.Body.String()
		if !strings.Contains(body, msgFetchOK) || !strings.Contains(body, `href="/download"`) {
			t.Errorf("body = %q; want success fragment", body)
		}
		if strings.Contains(body, "<html") {
			t.Error("htmx request got the full page")
		}
		if len(acq.queries) != 1 {
			t.Fatalf("acquisitions = %d; want 1", len(acq.queries))
		}
		q := acq.queries[0]
		if q.StartKey() != "20230101" || q.EndKey() != "20230102" || q.Latitude != -21.7946 || q.Longitude != -48.1766 {
			t.Errorf("query = %+v", q)
		}
		if len(env.jar) == 0 {
			t.Fatal("no session cookie issued")
		}
		c := env.jar[0]
		if !c.HttpOnly || c.MaxAge != 0 || c.SameSite != http.SameSiteLaxMode {
			t.Errorf("cookie = %+v; want HttpOnly, session lifetime, SameSite=Lax", c)
		}
	})

	t.Run("plain form success renders full page", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{table: twoDayTable()})
		rec := env.do(formRequest("/fetch", validFetchForm(), false))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "<html") || !strings.Contains(body, msgFetchOK) {
			t.Errorf("body missing page or result")
		}
		// pickers keep the fetched range
		if !strings.Contains(body, `value="2023-01-01"`) {
			t.Error("start picker not set to the fetched range")
		}
	})

	t.Run("failure shows error and discards previous table", func(t *testing.T) {
		acq := &stubAcquirer{table: twoDayTable()}
		env := newTestEnv(acq)
		if rec := env.do(formRequest("/fetch", validFetchForm(), true)); rec.Code != http.StatusOK {
			t.Fatalf("first fetch status = %d", rec.Code)
		}

		acq.err = &power.StatusError{StatusCode: http.StatusUnprocessableEntity}
		rec := env.do(formRequest("/fetch", validFetchForm(), true))
		if rec.Code != http.StatusOK {
			t.Errorf("htmx status = %d; want 200 so the fragment is swapped", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), msgFetchFailed) {
			t.Errorf("body = %q; want %q", rec.Body.String(), msgFetchFailed)
		}

		dl := env.do(httptest.NewRequest(http.MethodGet, "/download", nil))
		if dl.Code != http.StatusConflict {
			t.Errorf("download after failed fetch = %d; want %d", dl.Code, http.StatusConflict)
		}
	})

	t.Run("plain form failure uses bad gateway", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{err: power.ErrMalformedResponse})
		rec := env.do(formRequest("/fetch", validFetchForm(), false))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadGateway)
		}
		if !strings.Contains(rec.Body.String(), msgFetchFailed) {
			t.Errorf("body missing %q", msgFetchFailed)
		}
	})

	t.Run("invalid input never reaches the service", func(t *testing.T) {
		tests := []struct {
			name  string
			field string
			value string
		}{
			{name: "start before floor", field: "start", value: "1989-12-31"},
			{name: "end in future", field: "end", value: "2024-10-15"},
			{name: "end before start", field: "end", value: "2022-12-31"},
			{name: "bad date", field: "start", value: "01/01/2023"},
			{name: "bad latitude", field: "latitude", value: "north"},
			{name: "missing longitude", field: "longitude", value: ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				acq := &stubAcquirer{table: twoDayTable()}
				env := newTestEnv(acq)
				form := validFetchForm()
				form.Set(tt.field, tt.value)

				rec := env.do(formRequest("/fetch", form, false))
				if rec.Code != http.StatusBadRequest {
					t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
				}
				if !strings.Contains(rec.Body.String(), msgInvalidInput) {
					t.Errorf("body missing %q", msgInvalidInput)
				}
				if len(acq.queries) != 0 {
					t.Errorf("acquisitions = %d; want 0", len(acq.queries))
				}
			})
		}
	})
}

func Test_handleDownload(t *testing.T) {
	t.Run("409 without a fetched table", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{})
		rec := env.do(httptest.NewRequest(http.MethodGet, "/download", nil))
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusConflict)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
	})

	t.Run("serves the session table as xlsx", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{table: twoDayTable()})
		env.do(formRequest("/fetch", validFetchForm(), true))

		rec := env.do(httptest.NewRequest(http.MethodGet, "/download", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if got := rec.Header().Get("Content-Type"); got != export.ContentType {
			t.Errorf("Content-Type = %q", got)
		}
		if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="dados_climaticos.xlsx"` {
			t.Errorf("Content-Disposition = %q", got)
		}

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatalf("open xlsx: %v", err)
		}
		defer f.Close()
		rows, err := f.GetRows(export.SheetName)
		if err != nil {
			t.Fatalf("rows: %v", err)
		}
		// header plus one row per displayed record
		if len(rows) != 3 {
			t.Errorf("rows = %d; want 3", len(rows))
		}
	})
}

func Test_handleLocation(t *testing.T) {
	t.Run("stores coordinates and re-renders inputs", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{})
		rec := env.do(formRequest("/location", url.Values{"latitude": {"-10.5"}, "longitude": {"-50.25"}}, true))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Localização definida: Latitude -10.5, Longitude -50.25") {
			t.Errorf("body = %q; want success notice", body)
		}
		if !strings.Contains(body, `value="-10.500000"`) {
			t.Errorf("latitude not rendered with 6 decimals")
		}

		page := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.Contains(page.Body.String(), `value="-50.250000"`) {
			t.Error("index does not show the stored longitude")
		}
	})

	t.Run("invalid values keep previous coordinates", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{})
		env.do(formRequest("/location", url.Values{"latitude": {"-10.5"}, "longitude": {"-50.25"}}, true))

		rec := env.do(formRequest("/location", url.Values{"latitude": {""}, "longitude": {"NaN"}}, true))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
		body := rec.Body.String()
		if !strings.Contains(body, msgLocationFail) {
			t.Errorf("body missing %q", msgLocationFail)
		}
		if !strings.Contains(body, `value="-10.500000"`) {
			t.Error("previous latitude not retained")
		}
	})
}

func Test_handleClimate(t *testing.T) {
	t.Run("returns JSON records in order", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{table: twoDayTable()})
		rec := env.do(httptest.NewRequest(http.MethodGet,
			"/api/v1/climate?latitude=-21.7946&longitude=-48.1766&start=20230101&end=20230102", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var got climateResponse
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Records) != 2 || got.Records[0].Date != "20230101" || got.Records[1].Date != "20230102" {
			t.Errorf("records = %+v", got.Records)
		}
		if len(got.Columns) != 12 || got.Start != "20230101" || got.End != "20230102" {
			t.Errorf("response = %+v", got)
		}
	})

	t.Run("400 on invalid range", func(t *testing.T) {
		acq := &stubAcquirer{}
		env := newTestEnv(acq)
		rec := env.do(httptest.NewRequest(http.MethodGet,
			"/api/v1/climate?latitude=1&longitude=2&start=20230105&end=20230101", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
		if len(acq.queries) != 0 {
			t.Error("service called for invalid range")
		}
	})

	t.Run("502 when the service has no data", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{err: fmt.Errorf("fetch: %w", &power.StatusError{StatusCode: 500})})
		rec := env.do(httptest.NewRequest(http.MethodGet,
			"/api/v1/climate?latitude=1&longitude=2&start=20230101&end=20230101", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadGateway)
		}
		if !strings.Contains(rec.Body.String(), "no data") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("502 on unusable response", func(t *testing.T) {
		env := newTestEnv(&stubAcquirer{err: fmt.Errorf("reshape: %w", power.ErrMisaligned)})
		rec := env.do(httptest.NewRequest(http.MethodGet,
			"/api/v1/climate?latitude=1&longitude=2&start=20230101&end=20230101", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadGateway)
		}
	})
}
