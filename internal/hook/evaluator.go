package hook

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/spf13/cast"
)

// SafeUtils is the fixed namespace of helpers exposed to author-supplied
// conditions and templates. Nothing here touches the filesystem, network,
// or process state.
func SafeUtils() map[string]any {
	return map[string]any{
		"flt":     func(v any) float64 { return cast.ToFloat64(v) },
		"cint":    func(v any) int { return cast.ToInt(v) },
		"cstr":    func(v any) string { return cast.ToString(v) },
		"nowdate": func() string { return time.Now().Format("2006-01-02") },
		"now":     func() string { return time.Now().Format(time.RFC3339) },
		"getdate": func(v any) time.Time { return cast.ToTime(v) },
	}
}

func evalEnv(doc map[string]any) map[string]any {
	return map[string]any{
		"doc":   doc,
		"utils": SafeUtils(),
	}
}

// EvaluateCondition runs a summary's condition against a document view.
// An empty condition is always satisfied. The compiled program is cached
// on the summary, so repeated evaluations across documents compile once
// per registry build.
func EvaluateCondition(s *Summary, doc map[string]any) (bool, error) {
	if s.Condition == "" {
		return true, nil
	}

	s.mu.Lock()
	if s.prog == nil {
		prog, err := expr.Compile(s.Condition, expr.AsBool())
		if err != nil {
			s.mu.Unlock()
			return false, fmt.Errorf("compile condition for %s: %w", s.Name, err)
		}
		s.prog = prog
	}
	prog := s.prog
	s.mu.Unlock()

	result, err := expr.Run(prog, evalEnv(doc))
	if err != nil {
		return false, fmt.Errorf("evaluate condition for %s: %w", s.Name, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition for %s did not return bool", s.Name)
	}
	return b, nil
}

// ValidateCondition compiles and runs an expression against a document
// view. Used at save time against an empty instance of the target entity
// type; any failure rejects the definition.
func ValidateCondition(condition string, doc map[string]any) error {
	prog, err := expr.Compile(condition, expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if _, err := expr.Run(prog, evalEnv(doc)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}
