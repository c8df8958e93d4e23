// Package tables registers every import unit with the core registry.
// Import this package to ensure all units are registered.
package tables

// Run order. Units depending on patient rows come after the patient unit;
// the two post-processing updates read what the injury record unit wrote.
const (
	orderPatient = iota + 1
	orderInjuryRecord
	orderGCS
	orderRTS
	orderOnAdmission
	orderOffAdmission
	orderInterventionTime
	orderInterventionExtra
	orderISS
	orderTimePeriod
	orderCoordinates
)

func init() {
	registerPatient()
	registerInjuryRecords()
	registerGCSScores()
	registerRTSScores()
	registerOnAdmission()
	registerOffAdmission()
	registerInterventionTime()
	registerInterventionExtra()
	registerISS()
	registerTimePeriodUpdate()
	registerCoordinateUpdate()
}
