// Package core provides the business logic for the intake sheet import.
//
// This package contains the domain logic independent of any transport
// layer. It is driven by the CLI, the HTTP API and tests without
// modification.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - Units: Registered via the registry, each [TableDefinition] either maps
//     sheet rows onto one destination table or applies a set-based update.
//   - Table Importer: [ImportTable] folds over the rows of a sheet, isolating
//     each row's upsert in a savepoint, then classifies the unit once.
//   - Orchestrator: [Orchestrator.Run] executes every unit in order inside one
//     master transaction and commits or rolls back as a whole.
//   - Report: [Report] is the end-of-run summary shared by all callers.
//
// # Unit Registry
//
// Units are registered at init time using [Register]:
//
//	core.Register(core.TableDefinition{
//	    Info:            core.TableInfo{Key: "patient_basic_info", Table: "patient", Order: 1},
//	    Columns:         []string{"patient_id", "gender", "age"},
//	    ConflictColumns: []string{"patient_id"},
//	    Map:             mapPatient,
//	})
//
// # Failure Policy
//
// Row failures are counted and never stop a unit. A unit whose every
// attempted row failed, or that returned an error, stops the run: no
// further units execute and the master transaction is rolled back, undoing
// the writes of units that had already succeeded.
//
//	idle -> transaction_open -> all_units_succeeded -> committed
//	                         -> any_unit_failed     -> rolled_back
//
// # Error Handling
//
// Technical errors are mapped to operator-facing messages using [MapError].
// Each category has a code for support reference:
//
//   - IMP001-IMP005: Run errors (rolled back, begin, commit, busy, shutting down)
//   - SRC001-SRC005: Source errors (missing, format, empty, size)
//   - DB001-DB008: Database errors (duplicates, constraints, connections)
//   - GEO001: Geocode cache errors
//   - REQ001-REQ003: Request errors (cancelled, timeout, unknown run)
package core
