package domain

import "strings"

// ResolutionSource says which evidence source settled a position.
type ResolutionSource string

const (
	SourceAuthoritative ResolutionSource = "authoritative"
	SourceReference     ResolutionSource = "reference"
	SourceForced        ResolutionSource = "forced"
)

// Resolution is the reconciler's verdict for one market.
type Resolution struct {
	Declared string // declared outcome label, empty when forced
	Source   ResolutionSource
}

// upSynonyms / downSynonyms normalizan las variantes que devuelven las
// distintas APIs: Gamma usa "Yes"/"No", los mercados updown usan "Up"/"Down",
// el campo resolution crudo a veces trae "1"/"0" o "p1"/"p2".
var (
	upSynonyms   = map[string]bool{"up": true, "yes": true, "1": true, "p1": true}
	downSynonyms = map[string]bool{"down": true, "no": true, "0": true, "p2": true}
)

// Matches devuelve true si el outcome que tenemos ganó según el outcome
// declarado, normalizando sinónimos de polaridad.
func Matches(held, declared string) bool {
	h := strings.ToLower(strings.TrimSpace(held))
	d := strings.ToLower(strings.TrimSpace(declared))
	if h == "" || d == "" {
		return false
	}
	if h == d {
		return true
	}
	if upSynonyms[h] && upSynonyms[d] {
		return true
	}
	if downSynonyms[h] && downSynonyms[d] {
		return true
	}
	return false
}
