package entries

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/eleven-am/jobgraph/internal/domain"
)

type Condition string

const (
	ConditionEqual         Condition = "equal"
	ConditionDifferent     Condition = "different"
	ConditionContains      Condition = "contains"
	ConditionNotContains   Condition = "notcontains"
	ConditionStartsWith    Condition = "startswith"
	ConditionNotStartsWith Condition = "notstartswith"
	ConditionEndsWith      Condition = "endswith"
	ConditionNotEndsWith   Condition = "notendswith"
	ConditionRegex         Condition = "regexp"
	ConditionInList        Condition = "inlist"
	ConditionNotInList     Condition = "notinlist"
)

// EvalVariableEntry compares a substituted variable expression against a
// value. The result is successful when the condition holds, which routes
// the walk along the success or failure hops.
type EvalVariableEntry struct {
	Variable  string
	Condition Condition
	Compare   string
	// Separator splits Compare for the list conditions; a comma by default.
	Separator string
}

func (e *EvalVariableEntry) Validate() error {
	if strings.TrimSpace(e.Variable) == "" {
		return domain.NewValidationError("variable to evaluate is required", domain.ErrInvalidConfig)
	}
	if e.Condition == ConditionRegex && !strings.Contains(e.Compare, "${") && !strings.Contains(e.Compare, "%%") {
		if _, err := regexp.Compile(e.Compare); err != nil {
			return domain.NewValidationError("invalid regular expression", err)
		}
	}
	if _, err := e.evaluate("", ""); err != nil {
		return err
	}
	return nil
}

func (e *EvalVariableEntry) Execute(_ context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
	vars := scope.Variables()
	value := vars.Substitute(e.Variable)
	compare := vars.Substitute(e.Compare)

	res := prev.Clone().Fail(1)
	ok, err := e.evaluate(value, compare)
	if err != nil {
		scope.Logger().Error("variable evaluation failed", "variable", e.Variable, "error", err)
		res.AppendLog(err.Error())
		return res, nil
	}

	scope.Logger().Debug("variable evaluated",
		"variable", e.Variable,
		"value", value,
		"condition", string(e.Condition),
		"compare", compare,
		"matched", ok)

	if ok {
		res.Success = true
		res.Errors = 0
	}
	return res, nil
}

func (e *EvalVariableEntry) evaluate(value, compare string) (bool, error) {
	switch e.Condition {
	case ConditionEqual, "":
		return value == compare, nil
	case ConditionDifferent:
		return value != compare, nil
	case ConditionContains:
		return strings.Contains(value, compare), nil
	case ConditionNotContains:
		return !strings.Contains(value, compare), nil
	case ConditionStartsWith:
		return strings.HasPrefix(value, compare), nil
	case ConditionNotStartsWith:
		return !strings.HasPrefix(value, compare), nil
	case ConditionEndsWith:
		return strings.HasSuffix(value, compare), nil
	case ConditionNotEndsWith:
		return !strings.HasSuffix(value, compare), nil
	case ConditionRegex:
		re, err := regexp.Compile(compare)
		if err != nil {
			return false, domain.NewValidationError("invalid regular expression", err)
		}
		return re.MatchString(value), nil
	case ConditionInList:
		return e.inList(value, compare), nil
	case ConditionNotInList:
		return !e.inList(value, compare), nil
	default:
		return false, domain.NewValidationError(fmt.Sprintf("unknown condition %q", e.Condition), domain.ErrInvalidConfig)
	}
}

func (e *EvalVariableEntry) inList(value, list string) bool {
	sep := e.Separator
	if sep == "" {
		sep = ","
	}
	for _, item := range strings.Split(list, sep) {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}

func EvalVariable(name string, template EvalVariableEntry) domain.EntryNode {
	return domain.EntryNode{
		Name:      name,
		Evaluates: true,
		Factory: func() domain.Entry {
			entry := template
			return &entry
		},
	}
}
