package judge

import "strings"

// normalizeCode flattens code for keyword matching.
func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, ";", " ")
	code = strings.ReplaceAll(code, "\n", " ")
	code = strings.ReplaceAll(code, "\t", " ")

	return strings.ToUpper(code)
}
