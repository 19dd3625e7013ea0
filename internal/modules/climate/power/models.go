package power

import (
	"bytes"
	"encoding/json"
	"fmt"

	"app-clima/internal/modules/climate/types"
)

// Sample request: https://power.larc.nasa.gov/api/temporal/daily/point?parameters=T2M&community=RE&longitude=-48.1766&latitude=-21.7946&start=20230101&end=20230102&format=JSON
type apiResponse struct {
	Properties struct {
		Parameter map[string]series `json:"parameter"`
	} `json:"properties"`
}

type point struct {
	Date  string
	Value float64
}

// series is a date -> value object decoded in document order.
type series []point

func (s *series) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	out := make(series, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}
		var v *float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("value for %s: %w", key, err)
		}
		if v == nil {
			return fmt.Errorf("value for %s is null", key)
		}
		out = append(out, point{Date: key, Value: *v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Parameter binds a service code to the table column it fills.
type Parameter struct {
	Code   string
	Column string
	set    func(r *types.ClimateRecord, v float64)
}

// ReferenceCode supplies the date keys of the table.
const ReferenceCode = "T2M"

// Parameters lists the requested codes in column order.
var Parameters = []Parameter{
	{Code: "PRECTOTCORR", Column: "P", set: func(r *types.ClimateRecord, v float64) { r.P = v }},
	{Code: "RH2M", Column: "UR", set: func(r *types.ClimateRecord, v float64) { r.UR = v }},
	{Code: "T2M", Column: "Tmed", set: func(r *types.ClimateRecord, v float64) { r.Tmed = v }},
	{Code: "T2M_MAX", Column: "Tmax", set: func(r *types.ClimateRecord, v float64) { r.Tmax = v }},
	{Code: "T2M_MIN", Column: "Tmin", set: func(r *types.ClimateRecord, v float64) { r.Tmin = v }},
	{Code: "T2MDEW", Column: "Tdew", set: func(r *types.ClimateRecord, v float64) { r.Tdew = v }},
	{Code: "WS2M", Column: "U2", set: func(r *types.ClimateRecord, v float64) { r.U2 = v }},
	{Code: "WS2M_MAX", Column: "U2max", set: func(r *types.ClimateRecord, v float64) { r.U2max = v }},
	{Code: "WS2M_MIN", Column: "U2min", set: func(r *types.ClimateRecord, v float64) { r.U2min = v }},
	{Code: "ALLSKY_SFC_SW_DWN", Column: "Qg", set: func(r *types.ClimateRecord, v float64) { r.Qg = v }},
	{Code: "CLRSKY_SFC_SW_DWN", Column: "Qo", set: func(r *types.ClimateRecord, v float64) { r.Qo = v }},
}

// Codes returns the parameter codes in request order.
func Codes() []string {
	out := make([]string, len(Parameters))
	for i, p := range Parameters {
		out[i] = p.Code
	}
	return out
}

// toTable zips the per-code series into rows keyed by the reference code's dates.
func toTable(resp apiResponse) (types.Table, error) {
	params := resp.Properties.Parameter
	ref, ok := params[ReferenceCode]
	if !ok {
		return types.Table{}, fmt.Errorf("%w: missing properties.parameter.%s", ErrMalformedResponse, ReferenceCode)
	}

	records := make([]types.ClimateRecord, len(ref))
	index := make(map[string]int, len(ref))
	for i, p := range ref {
		records[i].Date = p.Date
		index[p.Date] = i
	}
	if len(index) != len(ref) {
		return types.Table{}, fmt.Errorf("%w: duplicate dates in %s", ErrMalformedResponse, ReferenceCode)
	}

	for _, param := range Parameters {
		s, ok := params[param.Code]
		if !ok {
			return types.Table{}, fmt.Errorf("%w: missing properties.parameter.%s", ErrMalformedResponse, param.Code)
		}
		if len(s) != len(ref) {
			return types.Table{}, fmt.Errorf("%w: %s has %d dates, %s has %d", ErrMisaligned, param.Code, len(s), ReferenceCode, len(ref))
		}
		seen := make([]bool, len(ref))
		for _, p := range s {
			i, ok := index[p.Date]
			if !ok || seen[i] {
				return types.Table{}, fmt.Errorf("%w: %s has date %s not in %s", ErrMisaligned, param.Code, p.Date, ReferenceCode)
			}
			seen[i] = true
			param.set(&records[i], p.Value)
		}
	}

	return types.Table{Records: records}, nil
}

func decodeTable(body []byte) (types.Table, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.Table{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return toTable(resp)
}
