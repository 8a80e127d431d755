package scraper

// Best-effort text mining over French listing copy. Every helper is a small
// parser with a fixed grammar: on no match it returns ok=false, it never
// panics. Accuracy is bounded by what sources actually publish.

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// price: first digit run (spaces, dots or narrow spaces as thousands
	// separators) followed by a currency marker.
	priceRe = regexp.MustCompile(`(?i)(\d{1,3}(?:[ .\x{00A0}\x{202F}]\d{3})*|\d+)\s*(?:€|euros?\b|eur\b)`)

	// surface: digit run immediately followed by m² (or m2).
	surfaceRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m(?:²|2)\b`)

	// rooms: "4 pièces", "4 pcs", "4 p", or the T3/F3 convention.
	piecesRe     = regexp.MustCompile(`(?i)(\d+)\s*(?:pièces?|pieces?|pcs?\b|p\b)`)
	typePrefixRe = regexp.MustCompile(`(?i)\b[TF](\d+)\b`)

	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// French phone numbers, +33 or 0 prefixed, separators optional.
	phoneRe     = regexp.MustCompile(`(?:\+33[ .\-]?|0)[1-9](?:[ .\-]?\d{2}){4}`)
	postalRe    = regexp.MustCompile(`\b(\d{5})\b`)
	nonDigitsRe = regexp.MustCompile(`\D`)
)

// ExtractPrice parses an amount in euros out of free text.
// "350 000 €" → 350000. Returns ok=false when no amount is present.
func ExtractPrice(s string) (int, bool) {
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	digits := nonDigitsRe.ReplaceAllString(m[1], "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractSurface parses a surface in m² out of free text.
// "Magnifique T3 de 78m² à Lyon" → 78.
func ExtractSurface(s string) (float64, bool) {
	m := surfaceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractPieces parses a room count out of free text: either an explicit
// "N pièces" (or "N p") or the T/F + digit naming convention ("T3" → 3).
func ExtractPieces(s string) (int, bool) {
	if m := piecesRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	if m := typePrefixRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// ExtractEmail pulls the first email address out of free text.
func ExtractEmail(s string) (string, bool) {
	m := emailRe.FindString(s)
	if m == "" {
		return "", false
	}
	return m, true
}

// ExtractPhone pulls the first French phone number out of free text,
// normalized to a leading 0 and digits grouped in pairs:
// "Contactez-moi au 06 12 34 56 78" → "06 12 34 56 78".
func ExtractPhone(s string) (string, bool) {
	m := phoneRe.FindString(s)
	if m == "" {
		return "", false
	}

	digits := nonDigitsRe.ReplaceAllString(m, "")
	if strings.HasPrefix(digits, "33") && len(digits) == 11 {
		digits = "0" + digits[2:]
	}
	if len(digits) != 10 {
		return "", false
	}

	pairs := make([]string, 0, 5)
	for i := 0; i < len(digits); i += 2 {
		pairs = append(pairs, digits[i:i+2])
	}
	return strings.Join(pairs, " "), true
}

// ExtractPostalCode pulls a five-digit postal code out of free text.
func ExtractPostalCode(s string) (string, bool) {
	m := postalRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SplitCityPostal separates "Lyon 69003" style location strings into a city
// name and a postal code; either part may come back empty.
func SplitCityPostal(s string) (city, postal string) {
	s = strings.TrimSpace(s)
	if p, ok := ExtractPostalCode(s); ok {
		postal = p
		s = strings.TrimSpace(strings.Replace(s, p, "", 1))
	}
	city = strings.Trim(s, " ,()-")
	return city, postal
}

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
