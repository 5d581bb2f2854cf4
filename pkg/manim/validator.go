package manim

import (
	"fmt"
	"strings"

	"ai-animator-be/pkg/store"
)

// EntryPointClass is the scene class name the render engine looks for.
const EntryPointClass = "GeneratedScene"

// recognizedImports is the library surface generated code is expected to stay
// within. Anything else is flagged as a warning, not an error, since the
// animation library surface is large and evolving.
var recognizedImports = map[string]bool{
	"manim":     true,
	"math":      true,
	"numpy":     true,
	"np":        true,
	"random":    true,
	"itertools": true,
	"fractions": true,
}

// Validate statically checks a generated Manim scene. It is pure and
// deterministic: no I/O, no side effects, and it never panics on malformed
// input. All checks run; findings aggregate in detection order.
func Validate(code string) (result store.ValidationResult) {
	result.Errors = []string{}
	result.Warnings = []string{}

	defer func() {
		if r := recover(); r != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Parse Error: %v", r))
		}
	}()

	// (a) structural well-formedness
	result.Errors = append(result.Errors, scanStructure(code)...)

	// (b) required entry point
	if !strings.Contains(code, "class "+EntryPointClass) {
		result.Errors = append(result.Errors, fmt.Sprintf("Code must contain a '%s' class", EntryPointClass))
	} else if !strings.Contains(code, "def construct(self)") {
		result.Errors = append(result.Errors, fmt.Sprintf("%s must have a 'construct' method", EntryPointClass))
	}

	// (c) at least one renderable action; an empty scene is valid but suspicious
	if !hasRenderableAction(code) {
		result.Warnings = append(result.Warnings, "Scene has no renderable actions (self.play/self.add/self.wait)")
	}

	// (d) import surface
	result.Warnings = append(result.Warnings, checkImports(code)...)

	result.IsValid = len(result.Errors) == 0
	return result
}

var blockKeywords = []string{
	"def ", "class ", "if ", "elif ", "else", "for ", "while ",
	"try", "except", "finally", "with ",
}

// scanStructure performs a line-based structural scan: bracket balance,
// unterminated strings, block headers without an indented suite, and
// indentation mixing tabs with spaces.
func scanStructure(code string) []string {
	var errors []string

	if strings.TrimSpace(code) == "" {
		return []string{"Syntax Error: empty code body"}
	}

	lines := strings.Split(code, "\n")

	type bracket struct {
		ch   byte
		line int
	}
	var stack []bracket
	inTriple := false
	var tripleQuote string
	pendingSuite := -1 // line number of a block header awaiting its suite
	pendingIndent := 0

	for idx, raw := range lines {
		lineNo := idx + 1
		line := raw

		// Triple-quoted strings may span lines; consume until the closer.
		if inTriple {
			if pos := strings.Index(line, tripleQuote); pos >= 0 {
				inTriple = false
				line = line[pos+3:]
			} else {
				continue
			}
		}

		stripped, unterminated, openedTriple, quote := stripStringsAndComments(line)
		if openedTriple {
			inTriple = true
			tripleQuote = quote
		} else if unterminated {
			errors = append(errors, fmt.Sprintf("Syntax Error at line %d: unterminated string literal", lineNo))
		}

		trimmed := strings.TrimSpace(stripped)
		indent := indentWidth(raw)

		if strings.Contains(leadingWhitespace(raw), " ") && strings.Contains(leadingWhitespace(raw), "\t") {
			errors = append(errors, fmt.Sprintf("Syntax Error at line %d: indentation mixes tabs and spaces", lineNo))
		}

		if trimmed != "" && pendingSuite >= 0 && len(stack) == 0 {
			if indent <= pendingIndent {
				errors = append(errors, fmt.Sprintf("Syntax Error at line %d: expected an indented block", pendingSuite))
			}
			pendingSuite = -1
		}

		for i := 0; i < len(stripped); i++ {
			switch c := stripped[i]; c {
			case '(', '[', '{':
				stack = append(stack, bracket{ch: c, line: lineNo})
			case ')', ']', '}':
				if len(stack) == 0 {
					errors = append(errors, fmt.Sprintf("Syntax Error at line %d: unexpected '%c'", lineNo, c))
					continue
				}
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if !bracketsMatch(open.ch, c) {
					errors = append(errors, fmt.Sprintf("Syntax Error at line %d: mismatched '%c' (opened with '%c' at line %d)", lineNo, c, open.ch, open.line))
				}
			}
		}

		// A block header only demands a suite when the statement is complete
		// (bracket depth zero) and truly ends with a colon.
		if len(stack) == 0 && strings.HasSuffix(trimmed, ":") && isBlockHeader(trimmed) {
			pendingSuite = lineNo
			pendingIndent = indent
		}
	}

	if inTriple {
		errors = append(errors, "Syntax Error: unterminated triple-quoted string")
	}
	if pendingSuite >= 0 {
		errors = append(errors, fmt.Sprintf("Syntax Error at line %d: expected an indented block", pendingSuite))
	}
	for _, open := range stack {
		errors = append(errors, fmt.Sprintf("Syntax Error at line %d: unclosed '%c'", open.line, open.ch))
	}

	return errors
}

// stripStringsAndComments blanks out string literal contents and trailing
// comments so bracket counting only sees code. Reports an unterminated
// single-line string, or a triple quote left open for following lines.
func stripStringsAndComments(line string) (stripped string, unterminated bool, openedTriple bool, quote string) {
	var sb strings.Builder
	i := 0
	for i < len(line) {
		c := line[i]
		if c == '#' {
			break
		}
		if c == '"' || c == '\'' {
			q := string(c)
			if strings.HasPrefix(line[i:], q+q+q) {
				end := strings.Index(line[i+3:], q+q+q)
				if end < 0 {
					return sb.String(), false, true, q + q + q
				}
				i += 3 + end + 3
				continue
			}
			// single-quoted literal on one line
			j := i + 1
			closed := false
			for j < len(line) {
				if line[j] == '\\' {
					j += 2
					continue
				}
				if line[j] == c {
					closed = true
					break
				}
				j++
			}
			if !closed {
				return sb.String(), true, false, ""
			}
			i = j + 1
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return sb.String(), false, false, ""
}

func bracketsMatch(open, close byte) bool {
	switch open {
	case '(':
		return close == ')'
	case '[':
		return close == ']'
	case '{':
		return close == '}'
	}
	return false
}

func isBlockHeader(trimmed string) bool {
	for _, kw := range blockKeywords {
		if strings.HasPrefix(trimmed, kw) || trimmed == strings.TrimSpace(kw)+":" {
			return true
		}
	}
	return false
}

func leadingWhitespace(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			return line[:i]
		}
	}
	return line
}

func indentWidth(line string) int {
	width := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ':
			width++
		case '\t':
			width += 8
		default:
			return width
		}
	}
	return width
}

func hasRenderableAction(code string) bool {
	return strings.Contains(code, "self.play(") ||
		strings.Contains(code, "self.add(") ||
		strings.Contains(code, "self.wait(")
}

// checkImports flags top-level imports outside the recognized surface and a
// missing manim import altogether.
func checkImports(code string) []string {
	var warnings []string
	sawManim := false

	for _, raw := range strings.Split(code, "\n") {
		line := strings.TrimSpace(raw)
		var module string
		switch {
		case strings.HasPrefix(line, "from "):
			rest := strings.TrimPrefix(line, "from ")
			module = firstToken(rest)
		case strings.HasPrefix(line, "import "):
			rest := strings.TrimPrefix(line, "import ")
			module = firstToken(rest)
		default:
			continue
		}

		root := strings.SplitN(module, ".", 2)[0]
		if root == "manim" {
			sawManim = true
		}
		if root != "" && !recognizedImports[root] {
			warnings = append(warnings, fmt.Sprintf("Unrecognized import '%s' is outside the supported library surface", root))
		}
	}

	if !sawManim {
		warnings = append(warnings, "Code may be missing Manim imports")
	}
	return warnings
}

func firstToken(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', ',', ';', '(':
			return s[:i]
		}
	}
	return s
}
