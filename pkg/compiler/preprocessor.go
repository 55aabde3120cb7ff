package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Macro is a #define, either simple or function-like.
type Macro struct {
	Args []string // empty for simple macros
	Body string
}

// Preprocess strips comments, splices `#include "file"` directives and
// expands `#define` macros. Line structure is preserved so later error
// messages keep their line numbers for the top-level file.
func Preprocess(src string, baseDir string) (string, error) {
	defines := make(map[string]Macro)
	return preprocessFile(src, baseDir, make(map[string]bool), make(map[string]bool), defines)
}

func preprocessFile(src, baseDir string, including, seen map[string]bool, defines map[string]Macro) (string, error) {
	src, err := stripComments(src)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for n, line := range strings.Split(src, "\n") {
		if n > 0 {
			out.WriteByte('\n')
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "#define"):
			if err := parseDefine(strings.TrimSpace(strings.TrimPrefix(trimmed, "#define")), defines); err != nil {
				return "", fmt.Errorf("line %d: %w", n+1, err)
			}
		case strings.HasPrefix(trimmed, "#include"):
			text, err := includeFile(trimmed, baseDir, including, seen, defines)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", n+1, err)
			}
			// Included text is joined onto one line so the includer's
			// line numbering is not shifted.
			out.WriteString(strings.ReplaceAll(text, "\n", " "))
		default:
			out.WriteString(applyDefines(line, defines))
		}
	}
	return out.String(), nil
}

// stripComments replaces // and /* */ comments with whitespace, keeping
// newlines and leaving string literals untouched.
func stripComments(src string) (string, error) {
	var sb strings.Builder
	n := len(src)
	line := 1
	for i := 0; i < n; i++ {
		c := src[i]
		switch {
		case c == '"':
			sb.WriteByte(c)
			for i++; i < n; i++ {
				sb.WriteByte(src[i])
				if src[i] == '\\' && i+1 < n {
					i++
					sb.WriteByte(src[i])
					continue
				}
				if src[i] == '\n' {
					line++
				}
				if src[i] == '"' {
					break
				}
			}
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
			if i < n {
				sb.WriteByte('\n')
				line++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			start := line
			i += 2
			for ; i < n; i++ {
				if src[i] == '*' && i+1 < n && src[i+1] == '/' {
					i++
					break
				}
				if src[i] == '\n' {
					sb.WriteByte('\n')
					line++
				}
			}
			if i >= n {
				return "", lexErrorf(start, "unterminated block comment")
			}
			sb.WriteByte(' ')
		default:
			if c == '\n' {
				line++
			}
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// parseDefine records `NAME VALUE` or `NAME(a, b) VALUE`.
func parseDefine(rest string, defines map[string]Macro) error {
	if rest == "" {
		return nil
	}
	nameEnd := strings.IndexAny(rest, " \t(")
	if nameEnd < 0 {
		nameEnd = len(rest)
	}
	name := rest[:nameEnd]
	rest = rest[nameEnd:]

	var args []string
	if strings.HasPrefix(rest, "(") {
		closeParen := strings.Index(rest, ")")
		if closeParen < 0 {
			return fmt.Errorf("unterminated macro parameter list for %s", name)
		}
		for _, arg := range strings.Split(rest[1:closeParen], ",") {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
		rest = rest[closeParen+1:]
	}

	body := strings.TrimSpace(rest)
	if len(args) == 0 {
		body = applyDefines(body, defines)
	}
	defines[name] = Macro{Args: args, Body: body}
	return nil
}

func includeFile(directive, baseDir string, including, seen map[string]bool, defines map[string]Macro) (string, error) {
	parts := strings.SplitN(directive, "\"", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid include directive: %s", directive)
	}
	filename := parts[1]

	fullPath := filepath.Join(baseDir, filename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if cwdPath, absErr := filepath.Abs(filename); absErr == nil {
			if _, err := os.Stat(cwdPath); err == nil {
				fullPath = cwdPath
			}
		}
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	if including[absPath] {
		return "", fmt.Errorf("circular include detected: %s", filename)
	}
	if seen[absPath] {
		return "", nil
	}
	seen[absPath] = true

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read included file %s: %w", filename, err)
	}

	nested := make(map[string]bool, len(including)+1)
	for k, v := range including {
		nested[k] = v
	}
	nested[absPath] = true
	return preprocessFile(string(content), filepath.Dir(fullPath), nested, seen, defines)
}

// applyDefines substitutes macros on word boundaries outside string literals.
func applyDefines(input string, defines map[string]Macro) string {
	if len(defines) == 0 {
		return input
	}

	var sb strings.Builder
	n := len(input)
	i := 0
	for i < n {
		if input[i] == '"' {
			sb.WriteByte(input[i])
			i++
			for i < n {
				c := input[i]
				sb.WriteByte(c)
				i++
				if c == '\\' && i < n {
					sb.WriteByte(input[i])
					i++
				} else if c == '"' {
					break
				}
			}
			continue
		}
		if !isIdentStart(rune(input[i])) {
			sb.WriteByte(input[i])
			i++
			continue
		}

		start := i
		for i < n && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := defines[word]
		switch {
		case !ok:
			sb.WriteString(word)
		case len(macro.Args) == 0:
			sb.WriteString(macro.Body)
		default:
			args, end, ok := macroArgs(input, i)
			if !ok || len(args) != len(macro.Args) {
				sb.WriteString(word)
				continue
			}
			params := make(map[string]Macro, len(args))
			for k, name := range macro.Args {
				params[name] = Macro{Body: args[k]}
			}
			// Arguments are substituted in one pass so an argument value is
			// never rewritten by a later parameter name.
			sb.WriteString(applyDefines(applyDefines(macro.Body, params), defines))
			i = end
		}
	}
	return sb.String()
}

// macroArgs reads a parenthesised, comma separated argument list starting at
// input[i] (after optional blanks). It returns the arguments and the index
// just past the closing parenthesis.
func macroArgs(input string, i int) ([]string, int, bool) {
	n := len(input)
	for i < n && (input[i] == ' ' || input[i] == '\t') {
		i++
	}
	if i >= n || input[i] != '(' {
		return nil, 0, false
	}
	i++

	var args []string
	var cur strings.Builder
	depth := 1
	for ; i < n && depth > 0; i++ {
		switch c := input[i]; {
		case c == '(':
			depth++
			cur.WriteByte(c)
		case c == ')':
			depth--
			if depth > 0 {
				cur.WriteByte(c)
			}
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if depth != 0 {
		return nil, 0, false
	}
	return append(args, strings.TrimSpace(cur.String())), i, true
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
