package autodetect

import (
	"fmt"
	"strings"

	"github.com/eleven-am/drift/internal/operation"
)

// safeConversions lists type changes that widen without data loss.
var safeConversions = map[string][]string{
	"VARCHAR":   {"TEXT"},
	"CHAR":      {"VARCHAR", "TEXT"},
	"SMALLINT":  {"INTEGER", "BIGINT"},
	"INTEGER":   {"BIGINT"},
	"REAL":      {"DOUBLE PRECISION"},
	"TIMESTAMP": {"TIMESTAMPTZ"},
}

// UnsafeNotes returns one warning per operation that could lose data:
// model deletions, field removals, narrowing type changes, and columns
// going NOT NULL without a default. An empty result means the plan is
// safe to apply blind.
func UnsafeNotes(ops []operation.Operation) []string {
	var notes []string
	for _, op := range ops {
		switch o := op.(type) {
		case operation.DeleteModel:
			notes = append(notes, fmt.Sprintf("deleting model %s permanently removes its table and data", o.Key))
		case operation.RemoveField:
			notes = append(notes, fmt.Sprintf("removing field %s.%s permanently deletes the column data", o.ModelKey, o.FieldName))
		case operation.AlterField:
			if o.OldField.Type != o.NewField.Type && isUnsafeTypeChange(o.OldField.Type, o.NewField.Type) {
				notes = append(notes, fmt.Sprintf("type change %s to %s on %s.%s may truncate data",
					o.OldField.Type, o.NewField.Type, o.ModelKey, o.NewField.Name))
			}
			if o.OldField.Nullable && !o.NewField.Nullable && o.NewField.Default == nil {
				notes = append(notes, fmt.Sprintf("making %s.%s NOT NULL without a default fails if NULL values exist",
					o.ModelKey, o.NewField.Name))
			}
		}
	}
	return notes
}

func isUnsafeTypeChange(oldType, newType string) bool {
	oldBase := strings.ToUpper(strings.Split(oldType, "(")[0])
	newBase := strings.ToUpper(strings.Split(newType, "(")[0])

	if oldBase == newBase {
		return false
	}
	for _, safe := range safeConversions[oldBase] {
		if safe == newBase {
			return false
		}
	}
	return true
}
