package rewrite

// importRef locates one import specifier in a source buffer. specStart and
// specEnd bound the specifier text itself, excluding the quotes.
type importRef struct {
	specStart int
	specEnd   int
	specifier string
}

// scanImports tokenizes enough of a module source to find every statically
// analyzable import specifier: static imports, re-exports with a from
// clause, side-effect imports, and dynamic import() calls with a string
// literal argument. Comments, string literals, and template literals are
// skipped, which is what the fast regex tier cannot guarantee.
func scanImports(src []byte) []importRef {
	var refs []importRef
	i, n := 0, len(src)
	// prev is the last significant byte seen, used to reject property
	// accesses like foo.import(...).
	var prev byte

	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < n && src[i+1] == '/':
			i = skipLineComment(src, i)
		case c == '/' && i+1 < n && src[i+1] == '*':
			i = skipBlockComment(src, i)
		case c == '\'' || c == '"':
			_, _, i = scanString(src, i)
			prev = c
		case c == '`':
			i = scanTemplate(src, i)
			prev = c
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			word := string(src[start:i])
			if prev != '.' {
				switch word {
				case "import":
					if ref, next, ok := scanImportTail(src, i); ok {
						refs = append(refs, ref)
						i = next
					}
				case "export":
					if ref, next, ok := scanFromClause(src, i); ok {
						refs = append(refs, ref)
						i = next
					}
				}
			}
			prev = src[i-1]
		default:
			prev = c
			i++
		}
	}
	return refs
}

// scanImportTail handles what follows the import keyword: a dynamic call,
// a side-effect string, the import.meta property, or a binding clause with a
// from. On failure the caller resumes scanning right after the keyword so
// nested constructs are still visited.
func scanImportTail(src []byte, i int) (importRef, int, bool) {
	j := skipSpace(src, i)
	if j >= len(src) {
		return importRef{}, i, false
	}

	switch src[j] {
	case '(':
		j = skipSpace(src, j+1)
		if j < len(src) && (src[j] == '\'' || src[j] == '"') {
			return refAt(src, j)
		}
		return importRef{}, i, false
	case '\'', '"':
		return refAt(src, j)
	case '.':
		// import.meta
		return importRef{}, i, false
	}
	return scanFromClause(src, i)
}

// scanFromClause walks forward from a keyword looking for a top-level from
// followed by a string literal, skipping nested braces, strings, comments,
// and templates. It gives up at a semicolon or end of input.
func scanFromClause(src []byte, i int) (importRef, int, bool) {
	j := i
	depth := 0
	for j < len(src) {
		c := src[j]
		switch {
		case c == ';':
			return importRef{}, i, false
		case c == '{' || c == '(':
			depth++
			j++
		case c == '}' || c == ')':
			depth--
			j++
		case c == '/' && j+1 < len(src) && src[j+1] == '/':
			j = skipLineComment(src, j)
		case c == '/' && j+1 < len(src) && src[j+1] == '*':
			j = skipBlockComment(src, j)
		case c == '\'' || c == '"':
			_, _, j = scanString(src, j)
		case c == '`':
			j = scanTemplate(src, j)
		case isIdentStart(c):
			start := j
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			if depth == 0 && string(src[start:j]) == "from" {
				k := skipSpace(src, j)
				if k < len(src) && (src[k] == '\'' || src[k] == '"') {
					return refAt(src, k)
				}
				return importRef{}, i, false
			}
		default:
			j++
		}
	}
	return importRef{}, i, false
}

// refAt reads the string literal starting at the quote src[i] into a ref.
func refAt(src []byte, i int) (importRef, int, bool) {
	start, end, next := scanString(src, i)
	return importRef{
		specStart: start,
		specEnd:   end,
		specifier: string(src[start:end]),
	}, next, true
}

// scanString consumes a quoted literal whose opening quote sits at src[i]
// and returns the content bounds plus the index past the closing quote.
func scanString(src []byte, i int) (contentStart, contentEnd, next int) {
	quote := src[i]
	j := i + 1
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
		case quote:
			return i + 1, j, j + 1
		default:
			j++
		}
	}
	return i + 1, len(src), len(src)
}

// scanTemplate consumes a template literal, recursing through embedded
// expressions.
func scanTemplate(src []byte, i int) int {
	j := i + 1
	for j < len(src) {
		switch {
		case src[j] == '\\':
			j += 2
		case src[j] == '`':
			return j + 1
		case src[j] == '$' && j+1 < len(src) && src[j+1] == '{':
			j = scanTemplateExpr(src, j+2)
		default:
			j++
		}
	}
	return j
}

func scanTemplateExpr(src []byte, i int) int {
	depth := 1
	j := i
	for j < len(src) && depth > 0 {
		switch src[j] {
		case '{':
			depth++
			j++
		case '}':
			depth--
			j++
		case '\'', '"':
			_, _, j = scanString(src, j)
		case '`':
			j = scanTemplate(src, j)
		default:
			j++
		}
	}
	return j
}

func skipLineComment(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(src []byte, i int) int {
	i += 2
	for i+1 < len(src) {
		if src[i] == '*' && src[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(src)
}

func skipSpace(src []byte, i int) int {
	for i < len(src) {
		switch src[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
