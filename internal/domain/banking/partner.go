package banking

import (
	"regexp"

	"github.com/google/uuid"
)

// Partner is the read model used for counterparty attribution
type Partner struct {
	ID    uuid.UUID
	Name  string
	TaxID string
	IBANs []string
}

// 10 digits for a company tax number, 11 for a citizen id
var taxIDPattern = regexp.MustCompile(`(?:^|\D)(\d{10,11})(?:\D|$)`)

// ExtractTaxID returns the first standalone 10 or 11 digit number found in texts, or ""
func ExtractTaxID(texts ...string) string {
	for _, text := range texts {
		if m := taxIDPattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}
