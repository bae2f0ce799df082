package memstore

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
)

// rulesEngine evaluates CEL write rules. Rules see two variables:
// request {path, op, fields} and resource (the existing document's fields on
// delete). A rule returning false denies the operation.
type rulesEngine struct {
	env      *cel.Env
	rules    map[string]string
	prgCache sync.Map // expression -> cel.Program
}

func newRulesEngine(rules map[string]string) (*rulesEngine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("request", decls.NewMapType(decls.String, decls.Dyn)),
			decls.NewVar("resource", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building rules environment: %w", err)
	}

	engine := &rulesEngine{env: env, rules: rules}
	// Compile eagerly so a broken rule fails at open, not on first write.
	for op, expr := range rules {
		if _, err := engine.program(expr); err != nil {
			return nil, fmt.Errorf("rule %q: %w", op, err)
		}
	}
	return engine, nil
}

// authorize allows the operation unless a matching rule evaluates to false.
// create/delete fall back to a generic "write" rule; no rule means allow.
func (re *rulesEngine) authorize(op, path string, fields, resource map[string]any) error {
	expr, ok := re.rules[op]
	if !ok {
		expr, ok = re.rules["write"]
	}
	if !ok {
		return nil
	}

	allowed, err := re.evaluate(expr, map[string]any{
		"request": map[string]any{
			"path":   path,
			"op":     op,
			"fields": nonNilMap(fields),
		},
		"resource": nonNilMap(resource),
	})
	if err != nil {
		return apperrors.New(apperrors.KindPermissionDenied, "rule evaluation failed", err)
	}
	if !allowed {
		return apperrors.PermissionDenied(op + " denied by store rules")
	}
	return nil
}

func (re *rulesEngine) evaluate(expr string, vars map[string]any) (bool, error) {
	switch expr {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	prg, err := re.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule must return boolean")
	}
	return result, nil
}

func (re *rulesEngine) program(expr string) (cel.Program, error) {
	if val, ok := re.prgCache.Load(expr); ok {
		return val.(cel.Program), nil
	}
	ast, issues := re.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := re.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program construction error: %w", err)
	}
	re.prgCache.Store(expr, prg)
	return prg, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
