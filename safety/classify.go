package safety

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/schemamancer/schemamancer/diff"
)

// Level is the risk tier of a step or transition.
type Level string

const (
	LevelSafe        Level = "safe"
	LevelReview      Level = "review"
	LevelDestructive Level = "destructive"
)

// rank orders levels so a transition's overall level is the worst of
// its steps.
func (l Level) rank() int {
	switch l {
	case LevelDestructive:
		return 2
	case LevelReview:
		return 1
	default:
		return 0
	}
}

// Assessment is the per-step risk verdict.
type Assessment struct {
	Step           diff.MigrationStep `json:"step"`
	Level          Level              `json:"level"`
	Reason         string             `json:"reason"`
	RequiresBackup bool               `json:"requiresBackup"`
	RequiresShadow bool               `json:"requiresShadow"`
}

// TransitionAssessment aggregates per-step assessments with the
// worst-case overall level.
type TransitionAssessment struct {
	Steps    []Assessment `json:"steps"`
	Overall  Level        `json:"overall"`
	Warnings []string     `json:"warnings,omitempty"`
}

// UnsafeMigrationError is returned when a destructive transition is
// submitted for automatic application without an explicit override.
type UnsafeMigrationError struct {
	Steps []string
}

func (e *UnsafeMigrationError) Error() string {
	return fmt.Sprintf("transition contains destructive steps without override: %s",
		strings.Join(e.Steps, ", "))
}

// ClassifyStep labels a single step. Drops of tables and columns and
// narrowing column modifications are destructive; renames are review
// because of the risk of silent data mapping errors; everything
// additive or widening is safe.
func ClassifyStep(step diff.MigrationStep) Assessment {
	a := Assessment{Step: step, Level: LevelSafe}

	switch step.Type {
	case diff.StepDropTable:
		a.Level = LevelDestructive
		a.Reason = fmt.Sprintf("dropping table %s discards its data", step.Table)
		a.RequiresBackup = true

	case diff.StepDropColumn:
		a.Level = LevelDestructive
		a.Reason = fmt.Sprintf("dropping column %s.%s discards its data", step.Table, step.ColumnName)
		a.RequiresBackup = true
		a.RequiresShadow = true

	case diff.StepRenameColumn:
		a.Level = LevelReview
		a.Reason = fmt.Sprintf("renaming %s.%s to %s may silently remap reads",
			step.Table, step.FromName, step.ToName)

	case diff.StepModifyColumn:
		if step.OldColumn == nil || step.Column == nil {
			a.Level = LevelReview
			a.Reason = "column modification without before/after definitions"
			break
		}
		if step.OldColumn.Nullable && !step.Column.Nullable {
			a.Level = LevelDestructive
			a.Reason = fmt.Sprintf("making %s.%s non-nullable fails on existing NULLs",
				step.Table, step.Column.Name)
			a.RequiresBackup = true
			break
		}
		switch compareTypeWidth(step.OldColumn.Type, step.Column.Type) {
		case widthNarrower:
			a.Level = LevelDestructive
			a.Reason = fmt.Sprintf("narrowing %s.%s from %s to %s can truncate data",
				step.Table, step.Column.Name, step.OldColumn.Type, step.Column.Type)
			a.RequiresBackup = true
		case widthUnknown:
			if step.OldColumn.Type != step.Column.Type {
				a.Level = LevelReview
				a.Reason = fmt.Sprintf("type change %s -> %s on %s.%s needs a compatibility check",
					step.OldColumn.Type, step.Column.Type, step.Table, step.Column.Name)
			}
		}

	case diff.StepDropIndex, diff.StepDropForeignKey:
		// Structure-only removals; recreatable without data loss.
		a.Level = LevelSafe
	}

	return a
}

// AssessTransition classifies every step and computes the worst-case
// overall level for the transition.
func AssessTransition(steps []diff.MigrationStep) TransitionAssessment {
	ta := TransitionAssessment{Overall: LevelSafe}
	for _, step := range steps {
		a := ClassifyStep(step)
		ta.Steps = append(ta.Steps, a)
		if a.Level.rank() > ta.Overall.rank() {
			ta.Overall = a.Level
		}
		if a.Level == LevelReview {
			ta.Warnings = append(ta.Warnings, a.Reason)
		}
	}
	return ta
}

// IsSafeForAutoDeploy decides whether a transition may be applied
// unattended. Destructive transitions are rejected unless the caller
// explicitly acknowledges the risk; review-level findings pass but are
// returned as warnings.
func IsSafeForAutoDeploy(ta TransitionAssessment, override bool) ([]string, error) {
	if ta.Overall == LevelDestructive && !override {
		var names []string
		for _, a := range ta.Steps {
			if a.Level == LevelDestructive {
				names = append(names, describeStep(a.Step))
			}
		}
		return nil, &UnsafeMigrationError{Steps: names}
	}
	return ta.Warnings, nil
}

func describeStep(step diff.MigrationStep) string {
	switch step.Type {
	case diff.StepDropColumn:
		return fmt.Sprintf("%s %s.%s", step.Type, step.Table, step.ColumnName)
	case diff.StepModifyColumn:
		if step.Column != nil {
			return fmt.Sprintf("%s %s.%s", step.Type, step.Table, step.Column.Name)
		}
	}
	return fmt.Sprintf("%s %s", step.Type, step.Table)
}

type widthOrder int

const (
	widthUnknown widthOrder = iota
	widthNarrower
	widthSame
	widthWider
)

var varcharRe = regexp.MustCompile(`^(?:var)?char(?:acter)?(?: varying)?\((\d+)\)$`)

// intWidths ranks integer-family types so flips between them classify
// as widening or narrowing.
var intWidths = map[string]int{
	"tinyint":  1,
	"smallint": 2,
	"int":      4,
	"integer":  4,
	"bigint":   8,
}

// compareTypeWidth compares two SQL type strings. Text is wider than
// any varchar; varchar widths compare by length; the integer family
// compares by byte width. Anything else is unknown and left to review.
func compareTypeWidth(from, to string) widthOrder {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if from == to {
		return widthSame
	}

	fromVarchar := varcharRe.FindStringSubmatch(from)
	toVarchar := varcharRe.FindStringSubmatch(to)
	switch {
	case fromVarchar != nil && toVarchar != nil:
		fromLen, _ := strconv.Atoi(fromVarchar[1])
		toLen, _ := strconv.Atoi(toVarchar[1])
		if toLen < fromLen {
			return widthNarrower
		}
		if toLen > fromLen {
			return widthWider
		}
		return widthSame
	case fromVarchar != nil && to == "text":
		return widthWider
	case from == "text" && toVarchar != nil:
		return widthNarrower
	}

	fromInt, fromOK := intWidths[from]
	toInt, toOK := intWidths[to]
	if fromOK && toOK {
		if toInt < fromInt {
			return widthNarrower
		}
		if toInt > fromInt {
			return widthWider
		}
		return widthSame
	}

	return widthUnknown
}
