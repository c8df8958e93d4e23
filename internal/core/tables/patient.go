package tables

import (
	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/normalize"
)

func registerPatient() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "patient_basic_info",
			Table: "patient",
			Label: "Patient basic info",
			Order: orderPatient,
		},
		Columns:         []string{"patient_id", "gender", "age", "is_green_channel", "height", "weight", "name"},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, _ *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			greenChannel := "否"
			if text(row, "是否绿色通道") == "是" {
				greenChannel = "是"
			}

			return []any{
				id,
				text(row, "患者性别："),
				integer(row, "年龄："),
				greenChannel,
				float(row, "(1)身高：___"),
				float(row, "(2)cm    体重：___kg"),
				text(row, "姓名"),
			}, nil
		},
	})
}

func registerInjuryRecords() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "injury_records",
			Table: "injuryrecord",
			Label: "Injury records",
			Order: orderInjuryRecord,
		},
		Columns: []string{
			"patient_id", "admission_date", "admission_time", "arrival_method",
			"injury_location", "station_name", "injury_cause_category",
			"injury_cause_detail", "season",
		},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, rc *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			admitted := normalize.Date(row.Get(colAdmissionDate))
			category, detail := normalize.InjuryCause(text(row, "受伤原因:"), rc.Vocabulary)

			return []any{
				id,
				core.ToPgDate(admitted),
				core.ToPgText(normalize.Clock(row.Get(colAdmissionTime))),
				text(row, "来院方式"),
				text(row, colInjuryPlace),
				text(row, "(1)120分站站点名称：___"),
				category,
				detail,
				core.ToPgInt4(normalize.Season(admitted)),
			}, nil
		},
	})
}
