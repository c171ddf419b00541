package record

import "strings"

// Delimiter separates fields in a data file line.
const Delimiter = ','

// ParseLine splits one delimited line into its field values.
//
// Every '"' toggles the quoted state and is dropped; a delimiter only ends a
// field outside a quoted span. Doubled quotes are not treated as an escape,
// so a literal quote cannot be represented inside a quoted field. Existing
// data files were written against that behaviour and it is kept as is.
//
// The result always has one more element than the number of unquoted
// delimiters. Values are trimmed of surrounding whitespace and of a single
// leading and trailing quote.
func ParseLine(line string) []string {
	fields := make([]string, 0, strings.Count(line, string(Delimiter))+1)

	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case c == Delimiter && !inQuote:
			fields = append(fields, cleanField(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cleanField(cur.String()))
	return fields
}

func cleanField(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, `"`)
	v = strings.TrimSuffix(v, `"`)
	return strings.TrimSpace(v)
}
