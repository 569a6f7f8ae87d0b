// Package store persists validated order lines and looks up restaurants.
// Every line is saved, escalated or not; the row layout is shared by the
// Postgres table and the CSV export.
package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/orderhub/order-intake/internal/order"
)

// ErrRestaurantNotFound is returned when no restaurant owns a phone number.
var ErrRestaurantNotFound = errors.New("store: restaurant not found")

// DateLayout is the day-first date format orders are stored with.
const DateLayout = "02/01/2006"

// Header names the CSV columns in order.
var Header = []string{
	"restaurant_id",
	"restaurant_name",
	"quantity",
	"unit",
	"product",
	"corrections",
	"date",
	"original_text",
	"need_attention",
	"message",
	"message_id",
}

// Row is one persisted order line.
type Row struct {
	RestaurantID   int64
	RestaurantName string
	Quantity       order.Optional[float64]
	Unit           order.Optional[order.Unit]
	Product        order.Optional[string]
	// Corrections holds corrections then red alerts, joined by "; ".
	Corrections   string
	Date          time.Time
	OriginalText  string
	NeedAttention bool
	Message       string
	MessageID     string
}

// NewRow flattens a validated line for storage.
func NewRow(r order.Restaurant, l order.Line, at time.Time) Row {
	return Row{
		RestaurantID:   r.ID,
		RestaurantName: r.Name,
		Quantity:       l.Quantity,
		Unit:           l.Unit,
		Product:        l.Product,
		Corrections:    strings.Join(l.Issues(), "; "),
		Date:           at,
		OriginalText:   l.RawText,
		NeedAttention:  l.NeedsAttention(),
		Message:        l.RawText,
		MessageID:      l.MessageID,
	}
}

// Record renders the row as CSV fields, absent values as empty strings.
func (r Row) Record() []string {
	id := ""
	if r.RestaurantID != 0 {
		id = strconv.FormatInt(r.RestaurantID, 10)
	}
	qty := ""
	if q, ok := r.Quantity.Get(); ok {
		qty = strconv.FormatFloat(q, 'f', -1, 64)
	}
	return []string{
		id,
		r.RestaurantName,
		qty,
		string(r.Unit.OrElse("")),
		r.Product.OrElse(""),
		r.Corrections,
		r.Date.Format(DateLayout),
		r.OriginalText,
		yesNo(r.NeedAttention),
		r.Message,
		r.MessageID,
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// NormalizePhone strips the transport prefix from a sender address.
func NormalizePhone(from string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:"))
}
