// Package scanner turns raw scan input (hardware scanner keystrokes,
// pasted text, camera decodes, deep links) into a canonical maintenance
// number.
package scanner

import (
	"regexp"
	"strings"
)

// maintenancePathRe matches the record deep link used in printed QR labels,
// e.g. https://shop.example/maintenance/MAINT-100?ref=qr. Non-greedy: the
// id stops at the next '/' or '?'.
var maintenancePathRe = regexp.MustCompile(`/maintenance/([^/?]+)`)

// Normalize trims a raw scan into a canonical maintenance number.
// Idempotent and never fails; unparseable input degrades to the trimmed raw
// string.
func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}

// ExtractMaintenanceNo pulls the record id out of a maintenance deep link.
// Input without the /maintenance/ pattern is returned unchanged.
func ExtractMaintenanceNo(text string) string {
	m := maintenancePathRe.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return m[1]
}
