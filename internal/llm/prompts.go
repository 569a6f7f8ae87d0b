package llm

import (
	"fmt"
	"strings"
)

const rewriteSystem = "You normalize restaurant supply order lines. You output one line and nothing else."

func rewritePrompt(line, unitLegend, primaryUnitLegend string) string {
	return fmt.Sprintf(`Rewrite this order line into the form <quantity><unit abbreviation> <Product>, for example "3bg Onion" or "1bx Tomato".

Rules:
- If the client wrote a valid unit, keep it, using its abbreviation from this list:
%s
- If no unit is given, use the product's primary unit from this list:
%s
- If the line has no quantity, return it exactly as it was. Never invent a quantity.
- Write fractions as decimals (½ becomes 0.5).
- Capitalize the product name (Title Case).
- Output only the rewritten line.

Example: "CARROT-5kg" -> "5kg Carrot"

Input: %s
Output:`, unitLegend, primaryUnitLegend, line)
}

const suggestSystem = "You match misspelled product names to a fixed catalog. You answer with one catalog name or the word none."

func suggestPrompt(token string, names []string) string {
	var catalog strings.Builder
	for _, n := range names {
		catalog.WriteString("- ")
		catalog.WriteString(n)
		catalog.WriteString("\n")
	}

	return fmt.Sprintf(`The customer typed: "%s"

Catalog:
%s
Rules:
- Answer with exactly one product name copied from the catalog, nothing else.
- Be tolerant of typos, swapped and missing letters: "onoin" -> "Onion", "brocoli" -> "Broccoli".
- Prefer a close catalog name over none when only two or three letters differ.
- If the word is unrelated to every catalog product (for example "carpet"), answer none.`, token, catalog.String())
}
