package service

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// comparisonEnv variables visible to comparator programs
type comparisonEnv map[string]interface{}

func numericEnv(value, threshold float64) comparisonEnv {
	return comparisonEnv{"value": value, "threshold": threshold, "text": "", "expected": ""}
}

func textEnv(text, expected string) comparisonEnv {
	return comparisonEnv{"value": 0.0, "threshold": 0.0, "text": text, "expected": expected}
}

var operators = map[entity.Condition]string{
	entity.ConditionEquals:            "==",
	entity.ConditionLessThan:          "<",
	entity.ConditionLessThanEquals:    "<=",
	entity.ConditionGreaterThan:       ">",
	entity.ConditionGreaterThanEquals: ">=",
}

// Comparator evaluates input template conditions. Programs are compiled
// once per expression and shared between goroutines.
type Comparator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func NewComparator() *Comparator {
	return &Comparator{programs: make(map[string]*vm.Program)}
}

// Evaluate reports whether value satisfies cond against comparison.
// A null value never matches. An ordering condition with a non-numeric
// value does not match and is not an error. A bad condition or a
// non-numeric threshold for an ordering condition is a ConfigurationError.
func (c *Comparator) Evaluate(cond entity.Condition, comparison string, value entity.InputValue) (bool, error) {
	op, ok := operators[cond]
	if !ok {
		return false, &ConfigurationError{Message: fmt.Sprintf("unknown condition %q", cond)}
	}
	if value.IsNull() {
		return false, nil
	}
	comparison = strings.TrimSpace(comparison)
	threshold, thresholdErr := strconv.ParseFloat(comparison, 64)

	if cond.Ordering() {
		if thresholdErr != nil {
			return false, &ConfigurationError{Message: fmt.Sprintf("comparison value %q of %s is not numeric", comparison, cond)}
		}
		v, ok := value.Float()
		if !ok {
			return false, nil
		}
		return c.run("value "+op+" threshold", numericEnv(v, threshold))
	}

	if v, ok := value.Float(); ok && thresholdErr == nil {
		return c.run("value == threshold", numericEnv(v, threshold))
	}
	return c.run("text == expected", textEnv(strings.TrimSpace(value.String()), comparison))
}

func (c *Comparator) run(code string, env comparisonEnv) (bool, error) {
	program, err := c.program(code)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, map[string]interface{}(env))
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", code, err)
	}
	met, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: result is %T, not bool", code, out)
	}
	return met, nil
}

func (c *Comparator) program(code string) (*vm.Program, error) {
	c.mu.RLock()
	p, ok := c.programs[code]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := expr.Compile(code, expr.Env(map[string]interface{}(textEnv("", ""))), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", code, err)
	}
	c.mu.Lock()
	if existing, ok := c.programs[code]; ok {
		p = existing
	} else {
		c.programs[code] = p
	}
	c.mu.Unlock()
	return p, nil
}
