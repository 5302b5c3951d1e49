// Package schedule builds and queries the crop growth-stage lookup table.
// The table is constructed once from reference data at startup and is
// read-only afterwards, so lookups are safe from any number of goroutines.
package schedule

import (
	"fmt"
	"sort"

	"github.com/agrosmart/cropwater/internal/model"
	"github.com/agrosmart/cropwater/internal/model/entities"
)

// StageRecord is one pre-tokenized reference-data row. Loading the underlying
// file format is the collaborator's job; Build only consumes these tokens.
type StageRecord struct {
	Stage               string  `json:"stage"`
	PeriodDays          string  `json:"period_days"`           // "<start>-<end>"
	TempRangeC          string  `json:"temp_range_c"`          // "<lo>-<hi>°C", upper bound used
	MoistureTargetRange string  `json:"moisture_target_range"` // "<lo>-<hi>%", averaged
	RootDepthMM         float64 `json:"root_depth_mm"`
}

// Table is an ordered, immutable sequence of stage definitions sorted
// ascending by DayStart with non-overlapping intervals.
type Table struct {
	stages []entities.StageDefinition
}

// Build parses the records into a sorted, frozen table. Any malformed token
// aborts construction with a ParseError; overlapping intervals are rejected.
func Build(records []StageRecord) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("schedule: no stage records")
	}

	stages := make([]entities.StageDefinition, 0, len(records))
	for _, rec := range records {
		dayLo, dayHi, err := parseRange("period_days", rec.PeriodDays)
		if err != nil {
			return nil, err
		}
		if dayLo >= dayHi {
			return nil, &model.ParseError{Field: "period_days", Token: rec.PeriodDays,
				Reason: "day_start must be below day_end"}
		}
		_, tMaxRef, err := parseRange("temp_range_c", rec.TempRangeC)
		if err != nil {
			return nil, err
		}
		mLo, mHi, err := parseRange("moisture_target_range", rec.MoistureTargetRange)
		if err != nil {
			return nil, err
		}

		stages = append(stages, entities.StageDefinition{
			StageName:          rec.Stage,
			DayStart:           int(dayLo),
			DayEnd:             int(dayHi),
			MoistureTargetBase: (mLo + mHi) / 2,
			TempMaxReference:   tMaxRef,
			RootDepthMM:        rec.RootDepthMM,
		})
	}

	sort.Slice(stages, func(i, j int) bool { return stages[i].DayStart < stages[j].DayStart })

	for i := 1; i < len(stages); i++ {
		if stages[i].DayStart < stages[i-1].DayEnd {
			return nil, fmt.Errorf("schedule: stages %q and %q overlap",
				stages[i-1].StageName, stages[i].StageName)
		}
	}

	return &Table{stages: stages}, nil
}

// Lookup returns the unique stage whose interval [DayStart, DayEnd) contains
// the day. Days before the first stage, past the last one, or inside an
// unconfigured gap yield an UndefinedStageError.
func (t *Table) Lookup(dayAfterSowing int) (entities.StageDefinition, error) {
	i := sort.Search(len(t.stages), func(i int) bool {
		return t.stages[i].DayEnd > dayAfterSowing
	})
	if i < len(t.stages) && t.stages[i].Contains(dayAfterSowing) {
		return t.stages[i], nil
	}
	return entities.StageDefinition{}, &model.UndefinedStageError{Day: dayAfterSowing}
}

// Stages returns a copy of the stage definitions in lookup order.
func (t *Table) Stages() []entities.StageDefinition {
	out := make([]entities.StageDefinition, len(t.stages))
	copy(out, t.stages)
	return out
}
