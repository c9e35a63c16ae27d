// Package cypher provides read-only classification of Cypher query text.
//
// The gateway never executes a query it has not classified first. Classification
// is a lexical scan, not a parse: comments and string literals are stripped from
// the raw text, and the remainder is searched case-insensitively for a fixed set
// of mutating keywords (CREATE, DELETE, MERGE, SET, REMOVE, DROP, DETACH DELETE)
// with word-boundary semantics, so a property named "createdAt" never trips it.
//
// The scan is biased toward false rejection: an unterminated string literal is
// left in place rather than stripped to end-of-input, so a malformed literal
// cannot smuggle a keyword past the scan.
//
// Example:
//
//	v := cypher.Classify("MERGE (n:Person {id: 1})")
//	// v.ReadOnly == false, v.Keyword == "MERGE"
//
//	v = cypher.Classify("MATCH (n) WHERE n.createdAt > $t RETURN n")
//	// v.ReadOnly == true
package cypher

// Verdict is the result of classifying one query string.
//
// Keyword is the first forbidden keyword found, scanning left to right through
// the sanitized text; it is empty when ReadOnly is true.
type Verdict struct {
	ReadOnly bool
	Keyword  string
}

// DefaultForbiddenKeywords is the mutating-keyword blocklist. Compound keywords
// ("DETACH DELETE") match with flexible whitespace between their tokens.
//
// The list is intentionally a blocklist over a fixed keyword set, not an
// allowlist grammar: procedures that mutate through CALL are not caught here.
var DefaultForbiddenKeywords = []string{
	"CREATE",
	"DETACH DELETE",
	"DELETE",
	"MERGE",
	"SET",
	"REMOVE",
	"DROP",
}

// Classifier decides whether query text could mutate the store.
//
// A Classifier is immutable after construction and safe for concurrent use;
// classification is a pure function of the query text.
type Classifier struct {
	keywords []string
}

// NewClassifier returns a Classifier over the given forbidden keywords.
// A nil or empty list selects DefaultForbiddenKeywords.
func NewClassifier(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultForbiddenKeywords
	}
	ks := make([]string, len(keywords))
	copy(ks, keywords)
	return &Classifier{keywords: ks}
}

var defaultClassifier = NewClassifier(nil)

// Classify runs the default Classifier on query.
func Classify(query string) Verdict {
	return defaultClassifier.Classify(query)
}

// Classify returns a verdict for query. It never fails: an empty or
// whitespace-only query is read-only (nothing to forbid), and malformed text
// is scanned as-is.
//
// When several forbidden keywords appear, the one whose match starts earliest
// in the sanitized text wins. "DETACH DELETE" therefore wins over the bare
// "DELETE" it contains, because its match starts earlier.
func (c *Classifier) Classify(query string) Verdict {
	s := stripLiterals(query)

	best := -1
	bestKeyword := ""
	for _, kw := range c.keywords {
		if idx := keywordIndex(s, kw); idx >= 0 {
			if best < 0 || idx < best {
				best = idx
				bestKeyword = kw
			}
		}
	}

	if best < 0 {
		return Verdict{ReadOnly: true}
	}
	return Verdict{ReadOnly: false, Keyword: bestKeyword}
}

// HasLimitClause reports whether the query text contains a LIMIT keyword
// outside comments and string literals. The projection layer cannot detect
// truncation from row counts alone, so callers use this lexical hint to set
// truncatedByLimit on query results.
func HasLimitClause(query string) bool {
	return keywordIndex(stripLiterals(query), "LIMIT") >= 0
}

// stripLiterals removes line comments, block comments, and single- and
// double-quoted string literals from s, replacing each removed span with a
// single space so adjacent tokens do not join.
//
// An unterminated quoted literal is NOT stripped: the opening quote and the
// residual text are kept for scanning. An unterminated block comment is kept
// for the same reason. Line comments always terminate at newline or
// end-of-input and are stripped unconditionally.
func stripLiterals(s string) string {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			// Line comment: strip to newline (the newline itself is kept).
			j := i + 2
			for j < len(s) && s[j] != '\n' {
				j++
			}
			out = append(out, ' ')
			i = j - 1

		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := blockCommentEnd(s, i+2)
			if end < 0 {
				// Unterminated: keep the residual text scannable.
				out = append(out, s[i:]...)
				return string(out)
			}
			out = append(out, ' ')
			i = end - 1

		case c == '\'' || c == '"':
			end := quotedLiteralEnd(s, i+1, c)
			if end < 0 {
				out = append(out, s[i:]...)
				return string(out)
			}
			out = append(out, ' ')
			i = end - 1

		default:
			out = append(out, c)
		}
	}

	return string(out)
}

// blockCommentEnd returns the index just past the closing */ of a block
// comment whose body starts at from, or -1 if unterminated.
func blockCommentEnd(s string, from int) int {
	for i := from; i+1 < len(s); i++ {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2
		}
	}
	return -1
}

// quotedLiteralEnd returns the index just past the closing quote of a string
// literal whose body starts at from, or -1 if unterminated. Backslash escapes
// and doubled quotes ('' or "") are consumed as literal content.
func quotedLiteralEnd(s string, from int, quote byte) int {
	for i := from; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			continue
		}
		if c == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return -1
}

// keywordIndex finds the first case-insensitive occurrence of keyword in s
// with word-boundary semantics on both sides. Whitespace inside a compound
// keyword matches any run of whitespace in s.
func keywordIndex(s, keyword string) int {
	if keyword == "" {
		return -1
	}
	first := asciiUpper(keyword[0])

	for i := 0; i < len(s); i++ {
		if asciiUpper(s[i]) != first {
			continue
		}
		if i > 0 && isIdentByte(s[i-1]) {
			continue
		}
		end, ok := keywordMatchAt(s, i, keyword)
		if !ok {
			continue
		}
		if end < len(s) && isIdentByte(s[end]) {
			continue
		}
		return i
	}
	return -1
}

// keywordMatchAt matches keyword at position pos, treating each whitespace run
// in the keyword as matching one or more whitespace bytes in s. Returns the
// index just past the match.
func keywordMatchAt(s string, pos int, keyword string) (endPos int, ok bool) {
	j := pos
	for k := 0; k < len(keyword); k++ {
		ck := keyword[k]
		if isASCIISpace(ck) {
			for k+1 < len(keyword) && isASCIISpace(keyword[k+1]) {
				k++
			}
			if j >= len(s) || !isASCIISpace(s[j]) {
				return 0, false
			}
			for j < len(s) && isASCIISpace(s[j]) {
				j++
			}
			continue
		}
		if j >= len(s) || asciiUpper(s[j]) != asciiUpper(ck) {
			return 0, false
		}
		j++
	}
	return j, true
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func asciiUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

func isIdentByte(b byte) bool {
	if b >= 0x80 {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	if b >= 'a' && b <= 'z' {
		return true
	}
	if b >= '0' && b <= '9' {
		return true
	}
	return b == '_'
}
