package tables

import (
	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/normalize"
)

func registerInterventionTime() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "intervention_time",
			Table: "interventiontime",
			Label: "Intervention timeline",
			Order: orderInterventionTime,
		},
		Columns: []string{
			"patient_id", "admission_date", "admission_time", "peripheral", "iv_line", "central_access",
			"nasal_pipe", "face_mask", "endotracheal_tube", "ventilator", "cpr", "cpr_start_time",
			"cpr_end_time", "ultrasound", "ct", "tourniquet", "blood_draw", "catheter", "gastric_tube",
			"transfusion", "transfusion_start", "transfusion_end", "leave_surgery_time", "leave_surgery_date",
			"patient_destination", "death", "death_date", "death_time",
		},
		ConflictColumns: []string{"patient_id", "admission_date", "admission_time"},
		Map: func(row core.Row, _ *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			// admission date and time are part of the visit key
			admitted := normalize.Date(row.Get(colAdmissionDate))
			clock := normalize.Clock(row.Get(colAdmissionTime))
			if admitted == nil || clock == nil {
				return nil, core.SkipRow("patient %d: no admission date or time", id)
			}
			leaveDate, leaveTime := normalize.RelativeTime(row.Get("离开抢救室时间："), admitted, clock)

			return []any{
				id,
				core.ToPgDate(admitted),
				*clock,
				bracketTime(row, "外周:"),
				bracketTime(row, "深静脉:"),
				bracketTime(row, "骨通道:"),
				bracketTime(row, "鼻导管:"),
				bracketTime(row, "面罩:"),
				bracketTime(row, "气管插管:"),
				bracketTime(row, "呼吸机:"),
				yesNo(row, "心肺复苏:"),
				bracketTime(row, "开始时间："),
				bracketTime(row, "结束时间："),
				yesNo(row, "B超："),
				bracketTime(row, "CT:"),
				bracketTime(row, "止血带:"),
				bracketTime(row, "采血:"),
				bracketTime(row, "导尿:"),
				bracketTime(row, "胃管："),
				yesNo(row, "输血:"),
				bracketTime(row, "输血开始："),
				bracketTime(row, "输血结束："),
				core.ToPgText(leaveTime),
				core.ToPgDate(leaveDate),
				text(row, "病人去向:"),
				yesNo(row, "死亡:"),
				core.ToPgDate(normalize.Date(row.Get("死亡日期："))),
				bracketTime(row, "死亡时间："),
			}, nil
		},
	})
}

func registerInterventionExtra() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "intervention_extra",
			Table: "intervention_extra",
			Label: "Intervention extras",
			Order: orderInterventionExtra,
		},
		Columns: []string{
			"patient_id", "oxygen_concentration", "defibrillation", "limb_amputation",
			"transfusion_reaction", "suspended_red_units", "plasma_units",
			"platelets_amount", "cryoprecipitate_units", "other_transfusion",
			"therapeutic_operation", "consultation_dept", "administrative_dept",
		},
		ConflictColumns: []string{"patient_id"},
		Map: func(row core.Row, _ *core.RunContext) ([]any, error) {
			id, err := patientID(row)
			if err != nil {
				return nil, err
			}

			return []any{
				id,
				core.ToPgFloat8(normalize.Percent(row.Get("(1)氧浓度：___ %   （最低）"))),
				yesNo(row, "除颤:"),
				yesNo(row, "肢体离断:"),
				text(row, "输血反应:"),
				core.ToPgFloat8(normalize.OptionalFloat(row.Get("(1)悬红：___"))),
				core.ToPgFloat8(normalize.OptionalFloat(row.Get("(2) U       血浆：___"))),
				core.ToPgFloat8(normalize.OptionalFloat(row.Get("(3)ml血小板：___"))),
				core.ToPgFloat8(normalize.OptionalFloat(row.Get("(4)U      冷沉淀：___"))),
				text(row, "(5)U其他：___"),
				text(row, "治疗性操作："),
				text(row, "会诊科室："),
				text(row, "行政科室："),
			}, nil
		},
	})
}
