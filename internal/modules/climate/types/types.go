package types

import "time"

// Columns is the fixed header of a climate table, in display and export order.
var Columns = []string{"Data", "P", "UR", "Tmed", "Tmax", "Tmin", "Tdew", "U2", "U2max", "U2min", "Qg", "Qo"}

// ClimateRecord is one day of climate variables for a single point.
type ClimateRecord struct {
	Date  string  `json:"Data"` // service key, YYYYMMDD
	P     float64 `json:"P"`
	UR    float64 `json:"UR"`
	Tmed  float64 `json:"Tmed"`
	Tmax  float64 `json:"Tmax"`
	Tmin  float64 `json:"Tmin"`
	Tdew  float64 `json:"Tdew"`
	U2    float64 `json:"U2"`
	U2max float64 `json:"U2max"`
	U2min float64 `json:"U2min"`
	Qg    float64 `json:"Qg"`
	Qo    float64 `json:"Qo"`
}

// Values returns the numeric fields in column order, without the date.
func (r ClimateRecord) Values() []float64 {
	return []float64{r.P, r.UR, r.Tmed, r.Tmax, r.Tmin, r.Tdew, r.U2, r.U2max, r.U2min, r.Qg, r.Qo}
}

// Row returns every cell in column order.
func (r ClimateRecord) Row() []any {
	row := make([]any, 0, len(Columns))
	row = append(row, r.Date)
	for _, v := range r.Values() {
		row = append(row, v)
	}
	return row
}

type Table struct {
	Records []ClimateRecord `json:"records"`
}

func (t Table) Len() int {
	return len(t.Records)
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Acquisition outcomes carried by AcquisitionEvent.Status.
const (
	AcquisitionOK     = "ok"
	AcquisitionFailed = "failed"
)

// AcquisitionEvent announces one attempt to fetch a climate table.
type AcquisitionEvent struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}
