package exporter

import "strings"

// SpecialChars are the leading characters a spreadsheet would interpret as
// the start of a formula.
const SpecialChars = "+-/*="

// ExcelEscape prefixes value with an apostrophe when it starts with one of
// SpecialChars. Only the first byte is inspected; since the apostrophe is
// not itself special, escaping an escaped value leaves it unchanged.
func ExcelEscape(value string) string {
	if value != "" && strings.IndexByte(SpecialChars, value[0]) >= 0 {
		return "'" + value
	}
	return value
}
