package tables

import (
	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/normalize"
)

func registerGCSScores() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "gcs_scores",
			Table: "gcs_score",
			Label: "GCS scores",
			Order: orderGCS,
		},
		Columns: []string{
			"patient_id", "eye_opening", "verbal_response", "motor_response", "total_score",
			"eye_description", "verbal_description", "motor_description", "consciousness_level",
		},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, rc *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			eye := text(row, "GCS评分：睁眼")
			verbal := text(row, "GCS评分：言语")
			motor := text(row, "GCS评分：动作")
			total := integer(row, "GCS总分：")
			scales := rc.Vocabulary.GCS

			return []any{
				id,
				scales.Eye[eye],
				scales.Verbal[verbal],
				scales.Motor[motor],
				total,
				eye,
				verbal,
				motor,
				rc.Vocabulary.ConsciousnessLevel(total),
			}, nil
		},
	})
}

// RTS coded values run from 0 to 4.
const rtsMax = 4

func registerRTSScores() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "rts_scores",
			Table: "rts_score",
			Label: "RTS scores",
			Order: orderRTS,
		},
		Columns:         []string{"patient_id", "gcs_score", "sbp_score", "rr_score"},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, _ *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			gcs := integer(row, "RTS评分—GCS")
			sbp := integer(row, "收缩压")
			rr := integer(row, "呼吸频率")
			for _, v := range []int{gcs, sbp, rr} {
				if v < 0 || v > rtsMax {
					return nil, core.SkipRow("patient %d: RTS value %d out of range", id, v)
				}
			}

			return []any{id, gcs, sbp, rr}, nil
		},
	})
}

// issRegions are the body regions in column order. Each has a score column
// and a details column named after it.
var issRegions = []string{"head_neck", "face", "chest", "abdomen", "limbs", "body"}

func issColumns() []string {
	cols := []string{"patient_id"}
	cols = append(cols, issRegions...)
	cols = append(cols, "iss_score")
	for _, r := range issRegions {
		cols = append(cols, r+"_details")
	}
	return append(cols, "has_details")
}

func registerISS() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "iss_data",
			Table: "iss_patient_injury_severity",
			Label: "ISS data",
			Order: orderISS,
		},
		Columns:         issColumns(),
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, rc *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			columns := make(map[string]string, len(rc.Vocabulary.ISS.Regions))
			for _, r := range rc.Vocabulary.ISS.Regions {
				columns[r.Key] = r.Column
			}
			cell := func(header string) any { return row.Get(header) }

			scores := make([]any, 0, len(issRegions))
			details := make([]any, 0, len(issRegions))
			hasDetails := false
			for _, region := range issRegions {
				score := "0"
				if col, ok := columns[region]; ok {
					score = normalize.SeverityScore(row.Get(col))
				}
				scores = append(scores, score)

				d := ""
				if rc.Severity != nil {
					d = rc.Severity.Details(region, normalize.ScoreList(score), cell)
				}
				hasDetails = hasDetails || d != ""
				details = append(details, core.ToPgNullText(d))
			}

			args := []any{id}
			args = append(args, scores...)
			args = append(args, integer(row, "ISS评分："))
			args = append(args, details...)
			return append(args, boolInt(hasDetails)), nil
		},
	})
}
