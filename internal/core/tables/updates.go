package tables

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/logging"
	"github.com/traumaregistry/intake/internal/normalize"
)

// timePeriods buckets the admission hour. Hours outside every bucket, and
// admission times that are not four digits, get NULL.
var timePeriods = []struct {
	first, last int
	period      int
}{
	{0, 7, 0},   // night
	{8, 9, 1},   // morning rush
	{10, 11, 2}, // late morning
	{12, 16, 3}, // afternoon
	{17, 19, 4}, // evening rush
	{20, 23, 5}, // evening
}

// timePeriodSQL builds the bucket update from string comparisons only, so
// the same statement runs on every supported database.
func timePeriodSQL() string {
	digits := make([]string, 10)
	for i := range digits {
		digits[i] = fmt.Sprintf("'%d'", i)
	}
	digitSet := strings.Join(digits, ", ")

	var b strings.Builder
	b.WriteString("UPDATE injuryrecord SET time_period = CASE\n")
	fmt.Fprintf(&b, "  WHEN admission_time IS NULL OR LENGTH(admission_time) <> 4\n")
	fmt.Fprintf(&b, "    OR SUBSTR(admission_time, 3, 1) NOT IN (%s)\n", digitSet)
	fmt.Fprintf(&b, "    OR SUBSTR(admission_time, 4, 1) NOT IN (%s)\n", digitSet)
	b.WriteString("    THEN NULL\n")
	for _, p := range timePeriods {
		hours := make([]string, 0, p.last-p.first+1)
		for h := p.first; h <= p.last; h++ {
			hours = append(hours, fmt.Sprintf("'%02d'", h))
		}
		fmt.Fprintf(&b, "  WHEN SUBSTR(admission_time, 1, 2) IN (%s) THEN %d\n", strings.Join(hours, ", "), p.period)
	}
	b.WriteString("  ELSE NULL\nEND")
	return b.String()
}

func registerTimePeriodUpdate() {
	query := timePeriodSQL()

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "time_period_update",
			Table: "injuryrecord",
			Label: "Admission time period",
			Order: orderTimePeriod,
		},
		Apply: func(ctx context.Context, tx core.DBTX, _ *core.RunContext) (core.Outcome, error) {
			logger := logging.FromContext(ctx)
			logger.Info("updating admission time periods")

			res, err := tx.ExecContext(ctx, query)
			if err != nil {
				return core.Outcome{}, fmt.Errorf("update time period: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return core.Outcome{}, fmt.Errorf("time period rows affected: %w", err)
			}

			logger.Info("time periods updated", "rows", affected)
			return core.Outcome{Success: int(affected)}, nil
		},
	})
}

const updateCoordinatesSQL = `UPDATE injuryrecord
SET longitude = ?, latitude = ?
WHERE injury_location = ?
  AND (longitude IS NULL OR longitude = 0)
  AND (latitude IS NULL OR latitude = 0)`

func registerCoordinateUpdate() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "longitude_latitude_update",
			Table: "injuryrecord",
			Label: "Injury location coordinates",
			Order: orderCoordinates,
		},
		Apply: applyCoordinates,
	})
}

// applyCoordinates geocodes every distinct injury location of the sheet and
// fills coordinates of records that have none yet. Records are matched by
// their raw location text, which is what the injury record unit stored.
func applyCoordinates(ctx context.Context, tx core.DBTX, rc *core.RunContext) (core.Outcome, error) {
	logger := logging.FromContext(ctx)

	if !rc.Sheet.HasColumn(colInjuryPlace) {
		logger.Warn("sheet has no injury location column, coordinates left unchanged")
		return core.Outcome{}, nil
	}

	raws := distinctAddresses(rc)
	logger.Info("updating coordinates", "addresses", len(raws))

	if rc.Geocoder == nil {
		logger.Warn("geocoding disabled, coordinates left unchanged")
		return core.Outcome{}, nil
	}

	normalized := make(map[string]string, len(raws))
	lookups := make([]string, 0, len(raws))
	for _, raw := range raws {
		na := normalize.Address(raw, rc.CityPrefix, rc.Vocabulary)
		if na == "" {
			continue
		}
		normalized[raw] = na
		lookups = append(lookups, na)
	}

	coords, err := rc.Geocoder.Locate(ctx, lookups)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("geocode: %w", err)
	}

	query := rc.Dialect.Rebind(updateCoordinatesSQL)
	var affected int64
	updates := 0
	for _, raw := range raws {
		c, ok := coords[normalized[raw]]
		if !ok {
			continue
		}
		updates++
		res, err := tx.ExecContext(ctx, query, c.Lng, c.Lat, raw)
		if err != nil {
			return core.Outcome{Success: int(affected)}, fmt.Errorf("update coordinates: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.Outcome{Success: int(affected)}, fmt.Errorf("coordinate rows affected: %w", err)
		}
		affected += n
	}

	if updates == 0 {
		logger.Info("no coordinates to update")
		return core.Outcome{}, nil
	}
	logger.Info("coordinates updated", "addresses", updates, "rows", affected)
	return core.Outcome{Success: int(affected)}, nil
}

// distinctAddresses lists the sheet's injury locations, trimmed, without
// blanks or placeholders, sorted.
func distinctAddresses(rc *core.RunContext) []string {
	seen := make(map[string]struct{})
	for _, v := range rc.Sheet.Column(colInjuryPlace) {
		if v == nil {
			continue
		}
		s := strings.TrimSpace(normalize.Stringify(v))
		if s == "" || rc.Vocabulary.IsInvalidAddress(s) {
			continue
		}
		seen[s] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
