package sqlutil

import "strings"

// SplitStatements breaks a multi-statement SQL script into single statements.
// Quoted semicolons are kept, comments are dropped and empty statements are skipped.
func SplitStatements(query string) []string {
	statements := []string{}
	var current strings.Builder
	inSingleQuote, inDoubleQuote := false, false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	n := len(query)
	for i := 0; i < n; i++ {
		c := query[i]
		switch {
		case inSingleQuote:
			current.WriteByte(c)
			if c == '\'' {
				inSingleQuote = false
			}
		case inDoubleQuote:
			current.WriteByte(c)
			if c == '"' {
				inDoubleQuote = false
			}
		case c == '\'':
			inSingleQuote = true
			current.WriteByte(c)
		case c == '"':
			inDoubleQuote = true
			current.WriteByte(c)
		case c == '-' && i+1 < n && query[i+1] == '-':
			for i < n && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += 2 + end + 1
			}
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return statements
}
