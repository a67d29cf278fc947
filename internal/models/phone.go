package models

import "strings"

const phoneSuffixLen = 10

// NormalizePhone strips everything but digits from a phone number.
// "+1 (415) 555-0100" and "14155550100" normalize to the same string.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneMatch reports whether two phone numbers identify the same contact.
// Numbers match when their normalized forms are equal, or when both carry at
// least 10 digits and agree on the last 10 (country-code prefix variance).
// This is a heuristic: short or malformed numbers can collide, see PhoneSuffix.
func PhoneMatch(a, b string) bool {
	na := NormalizePhone(a)
	nb := NormalizePhone(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(na) >= phoneSuffixLen && len(nb) >= phoneSuffixLen {
		return na[len(na)-phoneSuffixLen:] == nb[len(nb)-phoneSuffixLen:]
	}
	return false
}

// PhoneSuffix returns the last 10 digits of a normalized phone number, or ""
// when the number is too short for a suffix lookup. Repositories use this for
// the suffix queries that pair with PhoneMatch.
func PhoneSuffix(phone string) string {
	n := NormalizePhone(phone)
	if len(n) < phoneSuffixLen {
		return ""
	}
	return n[len(n)-phoneSuffixLen:]
}
