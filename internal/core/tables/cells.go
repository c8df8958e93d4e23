package tables

import (
	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/normalize"
)

// Sheet headers shared by more than one unit.
const (
	colAdmissionDate = "接诊日期："
	colAdmissionTime = "接诊时间："
	colInjuryPlace   = "(2)    创伤发生地：___（小区名，工厂名，商场名。如果是交通事故填写XX路上靠近XX路，或者XX路和XX路交叉口）"
)

// patientID returns the row's identity or a skip when it has none.
func patientID(row core.Row) (int, error) {
	id := core.PatientID(row)
	if id == 0 {
		return 0, core.SkipRow("no patient number")
	}
	return id, nil
}

func text(row core.Row, header string) string {
	return normalize.Text(row.Get(header))
}

func integer(row core.Row, header string) int {
	return normalize.Int(row.Get(header))
}

func float(row core.Row, header string) float64 {
	return normalize.Float(row.Get(header))
}

func yesNo(row core.Row, header string) string {
	return normalize.YesNo(row.Get(header))
}

// bracketTime reads an intervention time marker, NULL when absent.
func bracketTime(row core.Row, header string) any {
	return core.ToPgText(normalize.BracketTime(row.Get(header)))
}

// boolInt stores a flag as 1 or 0.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
