package tables

import (
	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/normalize"
)

func registerOnAdmission() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "patient_info_on_admission",
			Table: "patient_info_on_admission",
			Label: "Vitals on admission",
			Order: orderOnAdmission,
		},
		Columns: []string{
			"patient_id", "systolic_bp", "diastolic_bp", "heart_rate", "respiratory_rate",
			"medical_history", "temperature", "oxygen_saturation", "consciousness",
			"skin", "drunk", "pupil", "light_reflex",
		},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, _ *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			return []any{
				id,
				integer(row, "(1)血压：___"),
				integer(row, "(2)/___mmHg"),
				int(float(row, "脉搏心率：              bpm")),
				integer(row, "呼吸频率：                   次/分"),
				text(row, "既往病史："),
				normalize.Temperature(row.Get("入室体温：             ℃")),
				integer(row, "指脉氧：                       %"),
				text(row, "精神意识:"),
				text(row, "皮肤:"),
				boolInt(normalize.YesNoBool(row.Get("醉酒:"))),
				text(row, "瞳孔:"),
				text(row, "对光反射:"),
			}, nil
		},
	})
}

func registerOffAdmission() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "patient_info_off_admission",
			Table: "patient_info_off_admission",
			Label: "Vitals on leaving resuscitation",
			Order: orderOffAdmission,
		},
		Columns: []string{
			"patient_id", "temperature", "respiratory_rate", "heart_rate",
			"systolic_bp", "diastolic_bp", "oxygen_saturation", "total_fluid_volume",
			"saline_solution", "balanced_solution", "artificial_colloid", "other_fluid",
			"urine_output", "other_drainage", "blood_loss",
		},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, _ *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			return []any{
				id,
				normalize.Temperature(row.Get("(1)离开抢救室生命体征：体温：___")),
				integer(row, "(2)℃呼吸：___"),
				integer(row, "(3)次/分心率：___"),
				integer(row, "(4)bpm血压：___"),
				integer(row, "(5)/___"),
				float(row, "(6)mmHg指脉氧：___%"),
				float(row, "(1)总补液量：___"),
				float(row, "(2)ml         其中:  生理盐水：___"),
				float(row, "(3)ml               平衡液：___"),
				float(row, "(4)ml               人工胶体：___"),
				text(row, "(5)ml     其他：___"),
				float(row, "(1)尿量：___"),
				float(row, "(2)ml    其他引流量：___"),
				text(row, "(3)ml出血量：___ml"),
			}, nil
		},
	})
}
