package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/order"
	"github.com/orderhub/order-intake/internal/parse"
	"github.com/orderhub/order-intake/internal/resolve"
)

type fakeSuggester struct {
	answer string
	err    error
	calls  int
}

func (f *fakeSuggester) Suggest(context.Context, string, []string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Name: "Onion", UnitSynonyms: []string{"bag", "kg"}},
		{Name: "Tomato", UnitSynonyms: []string{"box"}},
		{Name: "Rice", UnitSynonyms: []string{"bag"}},
		{Name: "Cola", UnitSynonyms: []string{"pc"}},
	})
}

func validateLine(t *testing.T, sugg resolve.Suggester, text string) order.Line {
	t.Helper()
	units := catalog.DefaultUnits()
	specials := catalog.DefaultSpecialCases(units)
	c := testCatalog()

	parsed, err := parse.New(units, specials).Parse(text, c)
	require.NoError(t, err)

	v := New(resolve.Default(specials, sugg, resolve.DefaultFuzzyCutoff, nil), units, specials, nil)
	return v.Validate(context.Background(), parsed, c)
}

func TestValidate_ExactLineContinues(t *testing.T) {
	sugg := &fakeSuggester{}
	line := validateLine(t, sugg, "3bg Onion")

	assert.Equal(t, order.ActionContinue, line.Action)
	assert.Empty(t, line.Corrections)
	assert.Empty(t, line.RedAlerts)
	assert.Equal(t, order.Some(3.0), line.Quantity)
	assert.Equal(t, order.Some(order.UnitBag), line.Unit)
	assert.Equal(t, order.Some("Onion"), line.Product)
	assert.Zero(t, sugg.calls)
}

func TestValidate_UnitAutoAssigned(t *testing.T) {
	line := validateLine(t, &fakeSuggester{}, "3 Onion")

	assert.Equal(t, order.ActionSendToHuman, line.Action)
	assert.Equal(t, []string{"Unit auto-assigned: Bag"}, line.Corrections)
	assert.Empty(t, line.RedAlerts)
	assert.Equal(t, order.Some(3.0), line.Quantity)
	assert.Equal(t, order.Some(order.UnitBag), line.Unit)
	assert.Equal(t, order.Some("Onion"), line.Product)
}

func TestValidate_MissingQuantityAlwaysRedAlert(t *testing.T) {
	for _, text := range []string{"bg Onion", "Onion", "box of tomato"} {
		t.Run(text, func(t *testing.T) {
			line := validateLine(t, &fakeSuggester{}, text)
			assert.Contains(t, line.RedAlerts, "Missing quantity")
			assert.Equal(t, order.ActionRedAlert, line.Action)
			assert.Contains(t, line.Kinds, order.IssueMissingField)
		})
	}
}

func TestValidate_SpecialCaseIsLockedAndSkipsResolver(t *testing.T) {
	sugg := &fakeSuggester{answer: "Cola"}
	line := validateLine(t, sugg, "1bg donia")

	assert.Equal(t, order.Some("Coriander"), line.Product)
	assert.Equal(t, order.ActionContinue, line.Action)
	assert.Empty(t, line.Corrections)
	assert.Zero(t, sugg.calls)
}

func TestValidate_UnknownProduct(t *testing.T) {
	sugg := &fakeSuggester{answer: "none"}
	line := validateLine(t, sugg, "5kg carpet")

	assert.Equal(t, []string{"Unknown product: carpet"}, line.RedAlerts)
	assert.Equal(t, order.ActionRedAlert, line.Action)
	assert.False(t, line.Product.IsSet())
	assert.Equal(t, order.Some(order.UnitKilogram), line.Unit)
	assert.Equal(t, []order.IssueKind{order.IssueUnresolvedProduct}, line.Kinds)
	assert.Equal(t, 1, sugg.calls)
}

func TestValidate_UnknownProductWithoutUnit(t *testing.T) {
	line := validateLine(t, &fakeSuggester{answer: "none"}, "4 carpet")

	assert.Equal(t, []string{"Missing unit", "Unknown product: carpet"}, line.RedAlerts)
	assert.Equal(t, order.ActionRedAlert, line.Action)
}

func TestValidate_ProductCorrected(t *testing.T) {
	line := validateLine(t, &fakeSuggester{answer: "Onion"}, "3bg onoin")

	assert.Equal(t, order.Some("Onion"), line.Product)
	assert.Equal(t, []string{"Product corrected from 'onoin' to 'Onion'"}, line.Corrections)
	assert.Equal(t, order.ActionSendToHuman, line.Action)
}

func TestValidate_CorrectionAndAutoUnitInRuleOrder(t *testing.T) {
	line := validateLine(t, &fakeSuggester{answer: "Tomato"}, "2 tomatoe")

	assert.Equal(t, []string{
		"Unit auto-assigned: Box",
		"Product corrected from 'tomatoe' to 'Tomato'",
	}, line.Corrections)
	assert.Equal(t, order.ActionSendToHuman, line.Action)
}

func TestValidate_SuggesterDownFallsBackAndMarksDegraded(t *testing.T) {
	line := validateLine(t, &fakeSuggester{err: errors.New("503")}, "3bg onyon")

	assert.Equal(t, order.Some("Onion"), line.Product)
	assert.Equal(t, []string{"suggest"}, line.Degraded)
	assert.Contains(t, line.Kinds, order.IssueExternalServiceDegraded)
	assert.Equal(t, order.ActionSendToHuman, line.Action)
}

func TestValidate_MultipleProducts(t *testing.T) {
	line := validateLine(t, &fakeSuggester{}, "2bg Onion and 1bx Tomato")

	assert.Equal(t, []string{"Multiple products detected: Tomato, Onion"}, line.RedAlerts)
	assert.Equal(t, order.ActionRedAlert, line.Action)
	assert.Equal(t, order.Some("Tomato"), line.Product, "best guess is kept")
	assert.Equal(t, order.Some(2.0), line.Quantity)
	assert.Equal(t, order.Some(order.UnitBag), line.Unit)
}

func TestValidate_NotAnOrder(t *testing.T) {
	line := validateLine(t, &fakeSuggester{answer: "none"}, "hello there")

	assert.Equal(t, []string{
		"Missing quantity",
		"Missing unit",
		"Unknown product: hello there",
		"Message does not contain a valid order",
	}, line.RedAlerts)
	assert.Equal(t, order.ActionRedAlert, line.Action)
	assert.Contains(t, line.Kinds, order.IssueNotAnOrder)
}

func TestValidate_RedAlertWinsOverCorrections(t *testing.T) {
	line := validateLine(t, &fakeSuggester{answer: "Onion"}, "onoin")

	assert.NotEmpty(t, line.Corrections)
	assert.NotEmpty(t, line.RedAlerts)
	assert.Equal(t, order.ActionRedAlert, line.Action)
}
