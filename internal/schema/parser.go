package schema

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFile reads a declarative schema file from path and builds a Schema.
func ParseFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening schema file %s: %w", path, err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", path, err)
	}
	return s, nil
}

// Parse reads the declarative schema format from r and builds a Schema.
//
// The format is a small subset of Prisma's schema language, matching what
// _examples/original_source/src/prisma_parser.rs extracted from a real
// Prisma schema via tree-sitter:
//
//	model Owner {
//	  id   String @id
//	  name String @unique
//	}
//
//	model TodoList {
//	  id      String @id
//	  name    String
//	  ownerId String
//	  owner   Owner  @relation(fields: [ownerId], references: [id])
//
//	  @@unique([name, ownerId])
//	}
//
// Field lines have the shape `name Type[] @attr @attr(...)`; a trailing
// `?` on the type marks the column nullable and `[]` marks it a collection.
func Parse(r io.Reader) (*Schema, error) {
	s := New()
	scanner := bufio.NewScanner(r)

	var (
		modelName    string
		modelColumns []Column
		modelUnique  *Unique
		inModel      bool
	)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "model "):
			if inModel {
				return nil, fmt.Errorf("line %d: nested model declaration", lineNo)
			}
			name, ok := parseModelHeader(line)
			if !ok {
				return nil, fmt.Errorf("line %d: malformed model declaration %q", lineNo, line)
			}
			modelName = name
			modelColumns = nil
			modelUnique = nil
			inModel = true

		case line == "}":
			if !inModel {
				return nil, fmt.Errorf("line %d: unexpected closing brace", lineNo)
			}
			s.Models[modelName] = NewModel(modelName, modelColumns, modelUnique)
			inModel = false

		case strings.HasPrefix(line, "@@unique("):
			names, err := parseUniqueBlock(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			modelUnique = &Unique{ColumnNames: names}

		default:
			if !inModel {
				return nil, fmt.Errorf("line %d: field declaration outside of model: %q", lineNo, line)
			}
			col, err := parseField(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			modelColumns = append(modelColumns, col)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	if inModel {
		return nil, fmt.Errorf("unterminated model declaration %q", modelName)
	}

	return s, nil
}

func parseModelHeader(line string) (string, bool) {
	// "model Name {" -> "Name"
	rest := strings.TrimPrefix(line, "model ")
	rest = strings.TrimSuffix(strings.TrimSpace(rest), "{")
	name := strings.TrimSpace(rest)
	if name == "" {
		return "", false
	}
	return name, true
}

func parseUniqueBlock(line string) ([]string, error) {
	start := strings.Index(line, "[")
	end := strings.Index(line, "]")
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("malformed @@unique(...) attribute: %q", line)
	}
	inner := line[start+1 : end]
	var names []string
	for _, part := range strings.Split(inner, ",") {
		names = append(names, strings.TrimSpace(part))
	}
	return names, nil
}

// parseField parses one field line: `name Type[]? @attr @attr(...)`.
func parseField(line string) (Column, error) {
	fields := tokenizeField(line)
	if len(fields) < 2 {
		return Column{}, fmt.Errorf("malformed field declaration: %q", line)
	}

	name := fields[0]
	rawType := fields[1]
	nullable := strings.HasSuffix(rawType, "?")
	collection := strings.HasSuffix(rawType, "[]")
	typeName := strings.TrimSuffix(strings.TrimSuffix(rawType, "?"), "[]")

	col := Column{
		Name: name,
		Type: ColumnType{
			Name:       typeName,
			Collection: collection,
			Nullable:   nullable,
		},
	}

	attrs := strings.Join(fields[2:], " ")
	for _, attr := range splitAttributes(attrs) {
		switch {
		case attr == "@id":
			col.PrimaryKey = true
		case attr == "@unique":
			col.Unique = true
		case strings.HasPrefix(attr, "@relation("):
			rel, err := parseRelation(attr)
			if err != nil {
				return Column{}, err
			}
			col.Relation = rel
		}
	}

	return col, nil
}

// tokenizeField splits a field line into its name, type, and then each
// `@attribute(...)` chunk as a single token (attributes may contain spaces
// inside their parens, e.g. "@relation(fields: [a, b], references: [c, d])").
func tokenizeField(line string) []string {
	var tokens []string
	var cur strings.Builder
	depth := 0

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range line {
		switch r {
		case '(':
			depth++
			cur.WriteRune(r)
		case ')':
			depth--
			cur.WriteRune(r)
		case ' ', '\t':
			if depth == 0 {
				flush()
			} else {
				cur.WriteRune(r)
			}
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return tokens
}

// splitAttributes regroups tokens like "@relation(fields:" "[ownerId]," etc
// back together is unnecessary here because tokenizeField already keeps
// parenthesized attribute bodies as one token per top-level attribute; this
// just filters for tokens that start with '@'.
func splitAttributes(joined string) []string {
	var out []string
	for _, tok := range strings.Fields(joined) {
		if strings.HasPrefix(tok, "@") {
			out = append(out, tok)
			continue
		}
		if len(out) > 0 {
			// continuation of a paren body that contained a space the
			// tokenizer above already preserved — shouldn't normally
			// happen since tokenizeField groups by paren depth, but stay
			// defensive.
			out[len(out)-1] += " " + tok
		}
	}
	return out
}

func parseRelation(attr string) (*Relation, error) {
	start := strings.Index(attr, "(")
	end := strings.LastIndex(attr, ")")
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("malformed @relation attribute: %q", attr)
	}
	inner := attr[start+1 : end]

	rel := &Relation{}
	for _, part := range splitTopLevelCommas(inner) {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		names := parseBracketList(val)

		switch key {
		case "fields":
			rel.Fields = names
		case "references":
			rel.References = names
		}
	}

	if len(rel.Fields) == 0 || len(rel.References) == 0 {
		return nil, fmt.Errorf("@relation attribute missing fields/references: %q", attr)
	}
	return rel, nil
}

func parseBracketList(s string) []string {
	start := strings.Index(s, "[")
	end := strings.Index(s, "]")
	if start < 0 || end < 0 || end < start {
		return nil
	}
	inner := s[start+1 : end]
	var out []string
	for _, part := range strings.Split(inner, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	var cur strings.Builder
	for _, r := range s {
		switch r {
		case '[':
			depth++
			cur.WriteRune(r)
		case ']':
			depth--
			cur.WriteRune(r)
		case ',':
			if depth == 0 {
				parts = append(parts, cur.String())
				cur.Reset()
				continue
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
