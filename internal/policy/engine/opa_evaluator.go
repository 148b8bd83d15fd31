package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.taskman.project_access.allow"

// Default Rego policy for project access. Owners can do everything; admins
// everything except deleting the project; members read the project and work
// on tasks. A global ADMIN role bypasses membership entirely.
const defaultRegoPolicy = `package taskman.project_access

default allow = false

allow if {
	input.user.global_roles[_] == "ADMIN"
}

allow if {
	input.member.role == "OWNER"
}

allow if {
	input.member.role == "ADMIN"
	input.action != "project.delete"
}

member_actions := {"project.view", "task.view", "task.create", "task.update"}

allow if {
	input.member.role == "MEMBER"
	member_actions[input.action]
}
`

// OPAEvaluator answers project access questions with an in-process OPA Rego
// engine. The policy is compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the default policy and returns the evaluator.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"project_access.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	query, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy query: %w", err)
	}
	return &OPAEvaluator{query: query}, nil
}

// Allow evaluates the access question. Fails closed: evaluation errors and
// non-boolean results deny.
func (e *OPAEvaluator) Allow(ctx context.Context, in AccessInput) (bool, error) {
	input := map[string]interface{}{
		"user": map[string]interface{}{
			"id":           in.UserID,
			"global_roles": in.GlobalRoles,
		},
		"member": map[string]interface{}{
			"role": in.ProjectRole,
		},
		"action": in.Action,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil
	}
	return allowed, nil
}

// HealthCheck verifies the engine can evaluate the compiled policy.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, AccessInput{Action: "project.view"})
	return err
}
