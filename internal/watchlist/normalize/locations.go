package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// place groups every accepted spelling/code for one real-world place under a
// canonical key. Country spellings cover the Latin-script Spanish, English,
// French, Italian and German names; major Spanish cities additionally carry
// their postal-code prefix.
type place struct {
	key      string
	variants []string
}

// placeTable is the controlled vocabulary, loaded once and never mutated at
// runtime, so it is shared by reference without locking. Order matters: the
// first entry that matches a term wins.
var placeTable = []place{
	{"spain", []string{"ESPAÑA", "ESPANA", "SPAIN", "ESPAGNE", "SPAGNA", "SPANIEN"}},
	{"portugal", []string{"PORTUGAL", "PORTOGALLO"}},
	{"france", []string{"FRANCIA", "FRANCE", "FRANKREICH"}},
	{"italy", []string{"ITALIA", "ITALY", "ITALIE", "ITALIEN"}},
	{"germany", []string{"ALEMANIA", "GERMANY", "ALLEMAGNE", "GERMANIA", "DEUTSCHLAND"}},
	{"united kingdom", []string{"REINO UNIDO", "UNITED KINGDOM", "ROYAUME-UNI", "REGNO UNITO", "GROSSBRITANNIEN", "INGLATERRA", "ENGLAND"}},
	{"morocco", []string{"MARRUECOS", "MOROCCO", "MAROC", "MAROCCO", "MAROKKO"}},
	{"andorra", []string{"ANDORRA", "ANDORRE"}},
	{"switzerland", []string{"SUIZA", "SWITZERLAND", "SUISSE", "SVIZZERA", "SCHWEIZ"}},
	{"belgium", []string{"BELGICA", "BÉLGICA", "BELGIUM", "BELGIQUE", "BELGIO", "BELGIEN"}},
	{"netherlands", []string{"PAISES BAJOS", "PAÍSES BAJOS", "HOLANDA", "NETHERLANDS", "PAYS-BAS", "PAESI BASSI", "NIEDERLANDE", "HOLLAND"}},
	{"madrid", []string{"MADRID", "28"}},
	{"barcelona", []string{"BARCELONA", "BARCELONE", "BARCELLONA", "08"}},
	{"valencia", []string{"VALENCIA", "VALÈNCIA", "46"}},
	{"sevilla", []string{"SEVILLA", "SEVILLE", "SIVIGLIA", "41"}},
	{"zaragoza", []string{"ZARAGOZA", "SARAGOSSA", "SARAGOSSE", "50"}},
	{"malaga", []string{"MALAGA", "MÁLAGA", "29"}},
	{"bilbao", []string{"BILBAO", "48"}},
}

var postalCodeRe = regexp.MustCompile(`\b\d{5}\b`)

// ResolveVariants maps a free-text place term to the full list of accepted
// spellings for the first canonical place it matches. Lookup tries raw
// upper-cased containment in either direction first, then repeats the test on
// normalized text. An empty slice means no canonical place was recognized.
func ResolveVariants(term string) []string {
	raw := strings.ToUpper(strings.TrimSpace(term))
	if raw == "" {
		return nil
	}
	for _, p := range placeTable {
		for _, v := range p.variants {
			if strings.Contains(raw, v) || strings.Contains(v, raw) {
				return p.variants
			}
		}
	}
	normalized := Normalize(term)
	if normalized == "" {
		return nil
	}
	for _, p := range placeTable {
		for _, v := range p.variants {
			nv := Normalize(v)
			if nv == "" {
				continue
			}
			if strings.Contains(normalized, nv) || strings.Contains(nv, normalized) {
				return p.variants
			}
		}
	}
	return nil
}

// CanonicalPlace reports whether the term resolves to a known place
func CanonicalPlace(term string) bool {
	return len(ResolveVariants(term)) > 0
}

// BuildLocationCondition constructs a broadened SQL filter over a
// location-bearing column: containment of the raw upper-cased term, of every
// resolved variant, and of the normalized term. The returned clause and args
// plug straight into a gorm Where. This is a reusable search primitive, not
// scanner-internal.
func BuildLocationCondition(column, term string) (string, []interface{}) {
	raw := strings.ToUpper(strings.TrimSpace(term))
	if raw == "" {
		return "1 = 1", nil
	}

	var clauses []string
	var args []interface{}

	add := func(value string) {
		clauses = append(clauses, fmt.Sprintf("UPPER(%s) LIKE ?", column))
		args = append(args, "%"+value+"%")
	}

	add(raw)
	for _, v := range ResolveVariants(term) {
		if v != raw {
			add(v)
		}
	}
	if normalized := Normalize(term); normalized != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", column))
		args = append(args, "%"+normalized+"%")
	}

	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// ExtractPostalCode returns the first 5-digit token found in the text
func ExtractPostalCode(text string) (string, bool) {
	code := postalCodeRe.FindString(text)
	return code, code != ""
}

// CompoundLocation is the result of splitting a comma-separated location
type CompoundLocation struct {
	City    string
	Region  string
	Country string
}

// SplitCompoundLocation splits a comma-separated location string. The last
// segment is the country, the first the city, and with three or more segments
// the middle becomes the region. Without a comma the whole string counts as a
// country when it is a known canonical place, otherwise as a city.
func SplitCompoundLocation(text string) CompoundLocation {
	text = strings.TrimSpace(text)
	if text == "" {
		return CompoundLocation{}
	}

	if !strings.Contains(text, ",") {
		if CanonicalPlace(text) {
			return CompoundLocation{Country: text}
		}
		return CompoundLocation{City: text}
	}

	parts := strings.Split(text, ",")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}

	switch len(segments) {
	case 0:
		return CompoundLocation{}
	case 1:
		if CanonicalPlace(segments[0]) {
			return CompoundLocation{Country: segments[0]}
		}
		return CompoundLocation{City: segments[0]}
	case 2:
		return CompoundLocation{City: segments[0], Country: segments[1]}
	default:
		return CompoundLocation{
			City:    segments[0],
			Region:  strings.Join(segments[1:len(segments)-1], ", "),
			Country: segments[len(segments)-1],
		}
	}
}
