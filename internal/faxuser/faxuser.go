// Package faxuser parses fax-routing identifiers of the form
// "ext@<label>.<label>.<label>" or "<label>.<label>.<label>".
//
// The reseller id heuristic (penultimate label, or the last label for
// two-label inputs) follows the external provisioning system's naming
// convention and is a documented contract, fragile as it is.
package faxuser

import (
	"fmt"
	"strings"

	"github.com/telany/faxrelay/internal/errs"
)

// Domain returns the normalized domain portion of a fax user identifier:
// lowercased, trimmed, extension stripped.
func Domain(faxUser string) string {
	s := strings.ToLower(strings.TrimSpace(faxUser))
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[at+1:]
	}
	return s
}

// ResellerID derives the reseller identifier from a fax user identifier.
// Fewer than two labels is a parse error.
func ResellerID(faxUser string) (string, error) {
	domain := Domain(faxUser)
	if domain == "" {
		return "", fmt.Errorf("%w: empty fax_user", errs.ErrParse)
	}

	var labels []string
	for _, p := range strings.Split(domain, ".") {
		if p != "" {
			labels = append(labels, p)
		}
	}

	switch {
	case len(labels) >= 3:
		return labels[len(labels)-2], nil
	case len(labels) == 2:
		return labels[len(labels)-1], nil
	default:
		return "", fmt.Errorf("%w: insufficient labels in %q", errs.ErrParse, domain)
	}
}
