package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Line)
		want Action
	}{
		{"clean", func(*Line) {}, ActionContinue},
		{"correction only", func(l *Line) { l.Correct("Unit auto-assigned: Bag") }, ActionSendToHuman},
		{"red alert only", func(l *Line) { l.Flag(IssueMissingField, "Missing quantity") }, ActionRedAlert},
		{
			name: "red alert wins over corrections",
			edit: func(l *Line) {
				l.Correct("Product corrected from 'onoin' to 'Onion'")
				l.Flag(IssueAmbiguousLine, "Multiple products detected: Tomato, Onion")
			},
			want: ActionRedAlert,
		},
		{"degraded alone continues", func(l *Line) { l.Degrade("suggest") }, ActionContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Line
			tt.edit(&l)
			assert.Equal(t, tt.want, l.Decide())
			assert.Equal(t, tt.want, l.Action)
			assert.Equal(t, tt.want == ActionRedAlert, l.NeedsAttention())
		})
	}
}

func TestIssues_CorrectionsFirst(t *testing.T) {
	var l Line
	l.Flag(IssueMissingField, "Missing unit")
	l.Correct("Product corrected from 'tomatoe' to 'Tomato'")

	assert.Equal(t, []string{"Product corrected from 'tomatoe' to 'Tomato'", "Missing unit"}, l.Issues())
}

func TestKindsAndDegradedAreDeduplicated(t *testing.T) {
	var l Line
	l.Flag(IssueMissingField, "Missing quantity")
	l.Flag(IssueMissingField, "Missing unit")
	l.Degrade("rewrite")
	l.Degrade("rewrite")

	assert.Equal(t, []IssueKind{IssueMissingField, IssueExternalServiceDegraded}, l.Kinds)
	assert.Equal(t, []string{"rewrite"}, l.Degraded)
	assert.Len(t, l.RedAlerts, 2)
}

func TestOptional(t *testing.T) {
	q := Some(2.5)
	v, ok := q.Get()
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, 2.5, q.OrElse(1))

	none := None[Unit]()
	assert.False(t, none.IsSet())
	assert.Equal(t, UnitBag, none.OrElse(UnitBag))

	var zero Optional[string]
	assert.Equal(t, none.IsSet(), zero.IsSet())
}

func TestOptional_JSON(t *testing.T) {
	in := Line{
		RawText:  "3 Onion",
		Quantity: Some(3.0),
		Product:  Some("Onion"),
		Action:   ActionSendToHuman,
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quantity":3`)
	assert.Contains(t, string(data), `"unit":null`)

	var out Line
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Quantity, out.Quantity)
	assert.Equal(t, in.Product, out.Product)
	assert.False(t, out.Unit.IsSet())
}
