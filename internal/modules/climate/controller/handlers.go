package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"app-clima/internal/modules/climate/export"
	"app-clima/internal/modules/climate/power"
	"app-clima/internal/modules/climate/session"
	"app-clima/internal/modules/climate/types"
	"app-clima/internal/modules/climate/views"
	"app-clima/internal/utils"
)

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, st, err := c.sessions.Load(r)
	if err != nil {
		slog.Error("index: load session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	data := c.indexData(st)
	c.render(w, http.StatusOK, func(out io.Writer) error { return views.RenderIndex(out, data) })
}

func (c *climateControllerImpl) handleFetch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.renderFetchError(w, r, http.StatusBadRequest, session.State{}, msgInvalidInput)
		return
	}

	id, st, err := c.sessions.Load(r)
	if err != nil {
		slog.Error("fetch: load session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	coords, err := parseCoordinates(r.PostFormValue("latitude"), r.PostFormValue("longitude"))
	if err != nil {
		c.renderFetchError(w, r, http.StatusBadRequest, st, fmt.Sprintf("%s: %v", msgInvalidInput, err))
		return
	}
	start, end, err := parseDateRange(r.PostFormValue("start"), r.PostFormValue("end"), c.now())
	if err != nil {
		c.renderFetchError(w, r, http.StatusBadRequest, st, fmt.Sprintf("%s: %v", msgInvalidInput, err))
		return
	}

	st.Coordinates = &coords
	q := power.Query{Latitude: coords.Latitude, Longitude: coords.Longitude, Start: start, End: end}

	table, err := c.service.Acquire(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// A failed fetch discards whatever the session showed before.
		st.ClearTable()
		if _, saveErr := c.sessions.Save(w, r, id, st); saveErr != nil {
			slog.Error("fetch: save session failed", "error", saveErr)
		}
		c.renderFetchError(w, r, http.StatusBadGateway, st, msgFetchFailed)
		return
	}

	st.Table = &table
	st.Start = q.StartKey()
	st.End = q.EndKey()
	st.FetchedAt = c.now().UTC()
	if _, err := c.sessions.Save(w, r, id, st); err != nil {
		slog.Error("fetch: save session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	results := resultsView(table)
	if utils.IsHTMX(r) {
		c.render(w, http.StatusOK, func(out io.Writer) error { return views.RenderResultsPartial(out, results) })
		return
	}
	data := c.indexData(st)
	data.Result = results
	c.render(w, http.StatusOK, func(out io.Writer) error { return views.RenderIndex(out, data) })
}

// renderFetchError answers htmx with a 200 error fragment, since htmx only
// swaps 2xx responses, and plain form posts with the full page and status.
func (c *climateControllerImpl) renderFetchError(w http.ResponseWriter, r *http.Request, status int, st session.State, msg string) {
	errData := &views.ErrorData{Message: msg}
	if utils.IsHTMX(r) {
		c.render(w, http.StatusOK, func(out io.Writer) error { return views.RenderErrorPartial(out, errData) })
		return
	}
	data := c.indexData(st)
	data.Error = errData
	c.render(w, status, func(out io.Writer) error { return views.RenderIndex(out, data) })
}

func (c *climateControllerImpl) handleDownload(w http.ResponseWriter, r *http.Request) {
	_, st, err := c.sessions.Load(r)
	if err != nil {
		slog.Error("download: load session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if !st.HasTable() {
		utils.WriteError(w, http.StatusConflict, msgNoTable)
		return
	}

	body, err := export.XLSX(*st.Table)
	if err != nil {
		slog.Error("download: build spreadsheet failed", "rows", st.Table.Len(), "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to build spreadsheet")
		return
	}
	utils.WriteAttachment(w, export.Filename, export.ContentType, body)
}

func (c *climateControllerImpl) handleLocation(w http.ResponseWriter, r *http.Request) {
	id, st, err := c.sessions.Load(r)
	if err != nil {
		slog.Error("location: load session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	coords, err := parseCoordinates(r.PostFormValue("latitude"), r.PostFormValue("longitude"))
	if err != nil {
		slog.Warn("location: rejected coordinates", "error", err)
		data := coordinatesView(coordinatesOf(st))
		data.Error = msgLocationFail
		c.render(w, http.StatusBadRequest, func(out io.Writer) error { return views.RenderCoordinatesPartial(out, &data) })
		return
	}

	st.Coordinates = &coords
	if _, err := c.sessions.Save(w, r, id, st); err != nil {
		slog.Error("location: save session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	data := coordinatesView(coords)
	data.Notice = fmt.Sprintf(msgLocationSet,
		strconv.FormatFloat(coords.Latitude, 'f', -1, 64),
		strconv.FormatFloat(coords.Longitude, 'f', -1, 64),
	)
	c.render(w, http.StatusOK, func(out io.Writer) error { return views.RenderCoordinatesPartial(out, &data) })
}

type climateResponse struct {
	Latitude  float64               `json:"latitude"`
	Longitude float64               `json:"longitude"`
	Start     string                `json:"start"`
	End       string                `json:"end"`
	Columns   []string              `json:"columns"`
	Records   []types.ClimateRecord `json:"records"`
}

func (c *climateControllerImpl) handleClimate(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	coords, err := parseCoordinates(qs.Get("latitude"), qs.Get("longitude"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := parseDateRange(qs.Get("start"), qs.Get("end"), c.now())
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := power.Query{Latitude: coords.Latitude, Longitude: coords.Longitude, Start: start, End: end}
	table, err := c.service.Acquire(r.Context(), q)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, power.ErrNoData):
		utils.WriteError(w, http.StatusBadGateway, "climate service returned no data")
		return
	case err != nil:
		utils.WriteError(w, http.StatusBadGateway, "climate service response unusable")
		return
	}

	records := table.Records
	if records == nil {
		records = []types.ClimateRecord{}
	}
	utils.WriteJSON(w, http.StatusOK, climateResponse{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Start:     q.StartKey(),
		End:       q.EndKey(),
		Columns:   types.Columns,
		Records:   records,
	})
}

func (c *climateControllerImpl) indexData(st session.State) *views.IndexData {
	return &views.IndexData{
		Coordinates: coordinatesView(coordinatesOf(st)),
		Dates:       datesView(st, c.now()),
	}
}

// render buffers the template output so a failed render can still answer 500.
func (c *climateControllerImpl) render(w http.ResponseWriter, status int, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		slog.Error("template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, status, &buf)
}
