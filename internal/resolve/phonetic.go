package resolve

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/orderhub/order-intake/internal/catalog"
)

// PhoneticStrategy matches the token to the first catalog name with the same
// primary Double Metaphone code.
type PhoneticStrategy struct{}

func (PhoneticStrategy) Name() string { return "phonetic" }

func (PhoneticStrategy) Resolve(_ context.Context, token string, c *catalog.Catalog) (string, bool, error) {
	code := primaryCode(token)
	if code == "" {
		return "", false, nil
	}
	for _, name := range c.Names() {
		if primaryCode(name) == code {
			return name, true, nil
		}
	}
	return "", false, nil
}

func primaryCode(s string) string {
	s = strings.ToUpper(strings.Join(strings.FieldsFunc(s, notLetter), " "))
	if s == "" {
		return ""
	}
	primary, _ := matchr.DoubleMetaphone(s)
	return primary
}

func notLetter(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
}
