package automation

import (
	"testing"

	"crm-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func leadCtx(lead *models.Lead) *Context {
	return &Context{Lead: lead}
}

func TestEvaluateConditionsEmptyMatches(t *testing.T) {
	assert.True(t, EvaluateConditions(nil, &Context{}))
	assert.True(t, EvaluateConditions([]Condition{}, leadCtx(&models.Lead{Status: "new"})))
}

func TestEvaluateConditionsAndShortCircuit(t *testing.T) {
	ctx := leadCtx(&models.Lead{Status: "new", Budget: 5000})

	conditions := []Condition{
		{Field: "lead.status", Operator: OpEqual, Value: "contacted"}, // false
		{Field: "lead.budget", Operator: OpGreater, Value: float64(1000)},
	}
	assert.False(t, EvaluateConditions(conditions, ctx))

	conditions[0].Value = "new"
	assert.True(t, EvaluateConditions(conditions, ctx))
}

func TestLooseEquality(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    interface{}
		ctx      *Context
		expected bool
	}{
		{"string match", "lead.status", "new", leadCtx(&models.Lead{Status: "new"}), true},
		{"string mismatch", "lead.status", "lost", leadCtx(&models.Lead{Status: "new"}), false},
		{"number vs json float", "lead.budget", float64(2500), leadCtx(&models.Lead{Budget: 2500}), true},
		{"numeric string vs number", "lead.budget", "2500", leadCtx(&models.Lead{Budget: 2500}), true},
		{"uint id vs float", "lead.assigned_to", float64(7), leadCtx(&models.Lead{AssignedTo: uintPtr(7)}), true},
		{"missing path vs value", "lead.nonexistent", "x", leadCtx(&models.Lead{}), false},
		{"missing path vs nil", "lead.nonexistent", nil, leadCtx(&models.Lead{}), true},
		{"outcome match", "outcome", "interested", &Context{Outcome: "interested"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := Condition{Field: tt.field, Operator: OpEqual, Value: tt.value}
			assert.Equal(t, tt.expected, evaluateCondition(cond, tt.ctx))

			cond.Operator = OpNotEqual
			assert.Equal(t, !tt.expected, evaluateCondition(cond, tt.ctx))
		})
	}
}

func TestNumericComparison(t *testing.T) {
	ctx := leadCtx(&models.Lead{Budget: 5000})

	assert.True(t, evaluateCondition(Condition{Field: "lead.budget", Operator: OpGreater, Value: float64(1000)}, ctx))
	assert.False(t, evaluateCondition(Condition{Field: "lead.budget", Operator: OpLess, Value: float64(1000)}, ctx))
	assert.True(t, evaluateCondition(Condition{Field: "lead.budget", Operator: OpLess, Value: "10000"}, ctx))

	// non-numeric operand fails the condition instead of panicking
	assert.False(t, evaluateCondition(Condition{Field: "lead.status", Operator: OpGreater, Value: float64(1)}, leadCtx(&models.Lead{Status: "new"})))
	assert.False(t, evaluateCondition(Condition{Field: "lead.budget", Operator: OpGreater, Value: "lots"}, ctx))
}

func TestContainsOperator(t *testing.T) {
	ctx := leadCtx(&models.Lead{Source: "facebook_ads"})

	assert.True(t, evaluateCondition(Condition{Field: "lead.source", Operator: OpContains, Value: "facebook"}, ctx))
	assert.False(t, evaluateCondition(Condition{Field: "lead.source", Operator: OpContains, Value: "google"}, ctx))

	// both sides are coerced to text
	assert.True(t, evaluateCondition(Condition{Field: "lead.budget", Operator: OpContains, Value: "50"},
		leadCtx(&models.Lead{Budget: 2500})))
}

func TestInOperator(t *testing.T) {
	ctx := leadCtx(&models.Lead{Status: "follow_up"})

	in := Condition{Field: "lead.status", Operator: OpIn, Value: []interface{}{"new", "follow_up"}}
	assert.True(t, evaluateCondition(in, ctx))

	in.Value = []interface{}{"converted", "lost"}
	assert.False(t, evaluateCondition(in, ctx))

	// loose membership: numeric string sequence matches numeric actual
	count := Condition{Field: "count", Operator: OpIn, Value: []interface{}{float64(3), float64(7)}}
	assert.True(t, evaluateCondition(count, &Context{Count: 7}))

	// non-sequence value is false, not an error
	in.Value = "new"
	assert.False(t, evaluateCondition(in, ctx))
}

func TestUnknownOperatorIsFalse(t *testing.T) {
	ctx := leadCtx(&models.Lead{Status: "new"})
	assert.False(t, evaluateCondition(Condition{Field: "lead.status", Operator: "matches", Value: "new"}, ctx))
}

func TestResolveDotPaths(t *testing.T) {
	lead := &models.Lead{ID: 42, Name: "Acme", Status: "new", Budget: 100, CreatedBy: 3}
	task := &models.Task{ID: 9, Type: "call", Status: "pending", AssignedTo: 5, LeadID: 42}
	ctx := &Context{Lead: lead, Task: task, OldStatus: "new", NewStatus: "contacted", Outcome: "callback", Count: 4}

	cases := map[string]interface{}{
		"lead.id":          uint(42),
		"lead.name":        "Acme",
		"lead.budget":      float64(100),
		"lead.created_by":  uint(3),
		"task.type":        "call",
		"task.assigned_to": uint(5),
		"old_status":       "new",
		"new_status":       "contacted",
		"outcome":          "callback",
		"count":            4,
	}
	for field, expected := range cases {
		actual, ok := ctx.Resolve(field)
		assert.True(t, ok, field)
		assert.Equal(t, expected, actual, field)
	}

	_, ok := ctx.Resolve("lead.unknown_field")
	assert.False(t, ok)
	_, ok = ctx.Resolve("deal.amount")
	assert.False(t, ok)
	_, ok = (&Context{}).Resolve("lead.status")
	assert.False(t, ok)
}

func uintPtr(v uint) *uint {
	return &v
}
