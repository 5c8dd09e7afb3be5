package string

import "strings"

// TrimStrings trims surrounding whitespace in place. Nil pointers are skipped.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}
