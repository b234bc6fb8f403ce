package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SuggestedName derives a download name from the input name: the last
// extension is replaced with ext.  A name without a usable stem is kept
// whole, and an empty name becomes "image".  The result is NFC-normalised.
func SuggestedName(name, ext string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "image"
	}
	stem := name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		stem = name[:i]
	}
	return norm.NFC.String(stem + "." + ext)
}
