package controller

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"app-clima/internal/modules/climate/power"
	"app-clima/internal/modules/climate/session"
	"app-clima/internal/modules/climate/types"
	"app-clima/internal/modules/climate/views"
)

const (
	defaultLatitude  = -21.7946
	defaultLongitude = -48.1766

	// pickerLayout is what <input type="date"> submits.
	pickerLayout = "2006-01-02"

	defaultSpan = 30 * 365 * 24 * time.Hour
)

const (
	msgFetchOK       = "Dados obtidos com sucesso!"
	msgFetchFailed   = "Erro ao buscar dados da NASA POWER"
	msgLocationFail  = "Não foi possível obter a localização."
	msgLocationSet   = "Localização definida: Latitude %s, Longitude %s"
	msgNoTable       = "nenhum dado disponível para download; busque os dados primeiro"
	msgInvalidInput  = "Verifique as coordenadas e o período selecionado"
)

// dateFloor is the earliest selectable start date.
var dateFloor = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// today is the calendar date of now, as midnight UTC.
func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// defaultDates returns the initial picker values: thirty years of 365 days
// back from today, clamped to the floor, through today.
func defaultDates(now time.Time) (start, end time.Time) {
	end = today(now)
	start = end.Add(-defaultSpan)
	if start.Before(dateFloor) {
		start = dateFloor
	}
	return start, end
}

// parseDate accepts the picker layout and the service's YYYYMMDD keys.
func parseDate(name, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing '%s'", name)
	}
	for _, layout := range []string{pickerLayout, power.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid '%s' (expected YYYY-MM-DD or YYYYMMDD)", name)
}

// parseDateRange enforces floor <= start <= today and start <= end <= today.
func parseDateRange(startStr, endStr string, now time.Time) (start, end time.Time, err error) {
	start, err = parseDate("start", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseDate("end", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	latest := today(now)
	switch {
	case start.Before(dateFloor):
		return time.Time{}, time.Time{}, fmt.Errorf("'start' must be >= %s", dateFloor.Format(pickerLayout))
	case start.After(latest):
		return time.Time{}, time.Time{}, errors.New("'start' must be <= today")
	case end.Before(start):
		return time.Time{}, time.Time{}, errors.New("'end' must be >= 'start'")
	case end.After(latest):
		return time.Time{}, time.Time{}, errors.New("'end' must be <= today")
	}
	return start, end, nil
}

func parseCoordinate(name, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing '%s'", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid '%s' (expected number)", name)
	}
	return v, nil
}

func parseCoordinates(latStr, lonStr string) (types.Coordinates, error) {
	lat, err := parseCoordinate("latitude", latStr)
	if err != nil {
		return types.Coordinates{}, err
	}
	lon, err := parseCoordinate("longitude", lonStr)
	if err != nil {
		return types.Coordinates{}, err
	}
	return types.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// coordinatesOf returns the session coordinates or the defaults.
func coordinatesOf(st session.State) types.Coordinates {
	if st.Coordinates != nil {
		return *st.Coordinates
	}
	return types.Coordinates{Latitude: defaultLatitude, Longitude: defaultLongitude}
}

func coordinatesView(c types.Coordinates) views.CoordinatesData {
	return views.CoordinatesData{
		Latitude:  formatCoordinate(c.Latitude),
		Longitude: formatCoordinate(c.Longitude),
	}
}

// datesView fills the pickers from the last fetched range when there is one.
func datesView(st session.State, now time.Time) views.DatesData {
	start, end := defaultDates(now)
	if s, err := time.Parse(power.DateLayout, st.Start); err == nil {
		start = s
	}
	if e, err := time.Parse(power.DateLayout, st.End); err == nil {
		end = e
	}
	return views.DatesData{
		Start: start.Format(pickerLayout),
		End:   end.Format(pickerLayout),
		Min:   dateFloor.Format(pickerLayout),
		Max:   today(now).Format(pickerLayout),
	}
}

func resultsView(t types.Table) *views.ResultsData {
	return &views.ResultsData{
		Message:     msgFetchOK,
		Columns:     types.Columns,
		Records:     t.Records,
		DownloadURL: "/download",
	}
}
