// Package order holds the domain model shared by every pipeline stage: the
// interpreted order line, its units and actions, and the restaurant that sent it.
package order

import "errors"

var (
	ErrEmptyLine    = errors.New("order: empty line")
	ErrEmptyMessage = errors.New("order: empty message")
)

// Unit is the canonical unit an order line is counted in.
type Unit string

const (
	UnitPieces   Unit = "Pieces"
	UnitBag      Unit = "Bag"
	UnitKilogram Unit = "Kilogram"
	UnitBox      Unit = "Box"
)

// Action is the terminal outcome of validating a line.
type Action string

const (
	ActionContinue    Action = "continue"
	ActionSendToHuman Action = "send_to_human"
	ActionRedAlert    Action = "red_alert"
)

// IssueKind classifies the problems a line can carry. Issues are recorded as
// data on the Line, never returned as errors.
type IssueKind string

const (
	IssueMissingField            IssueKind = "missing_field"
	IssueUnresolvedProduct       IssueKind = "unresolved_product"
	IssueAmbiguousLine           IssueKind = "ambiguous_line"
	IssueNotAnOrder              IssueKind = "not_an_order"
	IssueExternalServiceDegraded IssueKind = "external_service_degraded"
)

// Line is one interpreted order line. It is terminal once the validator
// returns it.
type Line struct {
	MessageID      string            `json:"messageId,omitempty"`
	RawText        string            `json:"rawText"`
	NormalizedText string            `json:"normalizedText"`
	Quantity       Optional[float64] `json:"quantity"`
	Unit           Optional[Unit]    `json:"unit"`
	Product        Optional[string]  `json:"product"`
	Corrections    []string          `json:"corrections"`
	RedAlerts      []string          `json:"redAlerts"`
	Degraded       []string          `json:"degraded,omitempty"`
	Kinds          []IssueKind       `json:"kinds,omitempty"`
	Action         Action            `json:"action"`
}

// Issues returns corrections followed by red alerts.
func (l Line) Issues() []string {
	out := make([]string, 0, len(l.Corrections)+len(l.RedAlerts))
	out = append(out, l.Corrections...)
	return append(out, l.RedAlerts...)
}

// Flag records a hard issue. Any flagged line ends as ActionRedAlert.
func (l *Line) Flag(kind IssueKind, msg string) {
	l.RedAlerts = append(l.RedAlerts, msg)
	l.addKind(kind)
}

// Correct records a soft issue that a human should confirm.
func (l *Line) Correct(msg string) {
	l.Corrections = append(l.Corrections, msg)
}

// Degrade records that an external service failed for this line and its
// deterministic fallback was used.
func (l *Line) Degrade(service string) {
	for _, s := range l.Degraded {
		if s == service {
			return
		}
	}
	l.Degraded = append(l.Degraded, service)
	l.addKind(IssueExternalServiceDegraded)
}

func (l *Line) addKind(kind IssueKind) {
	for _, k := range l.Kinds {
		if k == kind {
			return
		}
	}
	l.Kinds = append(l.Kinds, kind)
}

// Decide sets Action from the recorded issues: red alerts win over
// corrections.
func (l *Line) Decide() Action {
	switch {
	case len(l.RedAlerts) > 0:
		l.Action = ActionRedAlert
	case len(l.Corrections) > 0:
		l.Action = ActionSendToHuman
	default:
		l.Action = ActionContinue
	}
	return l.Action
}

// NeedsAttention reports whether the line was escalated.
func (l Line) NeedsAttention() bool {
	return len(l.RedAlerts) > 0
}

// Restaurant identifies the sender of a message. ID is zero when the sender
// is not known to the directory.
type Restaurant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UnknownRestaurant is used when the sender cannot be looked up.
var UnknownRestaurant = Restaurant{Name: "Unknown"}
