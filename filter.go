package svcmock

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// filterOp identifies the operation of a filter node.
type filterOp int

const (
	opEqual filterOp = iota + 1
	opApprox
	opGreater
	opLess
	opPresent
	opSubstring
	opAnd
	opOr
	opNot
)

// segment is one piece of a substring pattern: either a literal text or a
// wildcard.
type segment struct {
	text string
	wild bool
}

// Filter is an RFC 1960 style boolean query over a property map. A Filter
// is built once by ParseFilter, is immutable afterwards and may be shared
// and matched concurrently.
//
// The grammar is the string representation of LDAP search filters:
//
//	filter     := '(' filtercomp ')'
//	filtercomp := ('&'|'|') filter+ | '!' filter | attr op value
//	op         := '=' | '~=' | '>=' | '<='
//
// Inside a value, '\' escapes the next character and an unescaped '*'
// introduces a substring wildcard; '(attr=*)' denotes a presence check.
type Filter struct {
	op       filterOp
	attr     string
	operand  string
	segments []segment
	children []*Filter

	once sync.Once
	str  string
}

// ParseFilter parses a filter string into an expression tree. It fails
// with a *FilterSyntaxError when the string violates the grammar.
func ParseFilter(s string) (*Filter, error) {
	p := &parser{filter: s, chars: []rune(s)}
	f, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.chars) {
		return nil, p.errorf("trailing characters after expression: %q", string(p.chars[p.pos:]))
	}
	return f, nil
}

// MustParseFilter is ParseFilter for static filter strings; it panics on a
// syntax error.
func MustParseFilter(s string) *Filter {
	f, err := ParseFilter(s)
	if err != nil {
		panic(err)
	}
	return f
}

// parser walks the filter string and builds the expression tree.
type parser struct {
	filter string
	chars  []rune
	pos    int
}

func (p *parser) errorf(format string, args ...any) error {
	return &FilterSyntaxError{Filter: p.filter, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.chars)
}

// char returns the current character, or 0 at the end of input.
func (p *parser) char() rune {
	if p.eof() {
		return 0
	}
	return p.chars[p.pos]
}

func (p *parser) charAt(i int) rune {
	if i >= len(p.chars) {
		return 0
	}
	return p.chars[i]
}

func (p *parser) skipWhitespace() {
	for !p.eof() && unicode.IsSpace(p.chars[p.pos]) {
		p.pos++
	}
}

func (p *parser) parseFilter() (*Filter, error) {
	p.skipWhitespace()
	if p.char() != '(' {
		return nil, p.errorf("missing opening parenthesis")
	}
	p.pos++
	f, err := p.parseFilterComp()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.char() != ')' {
		return nil, p.errorf("missing closing parenthesis")
	}
	p.pos++
	p.skipWhitespace()
	return f, nil
}

func (p *parser) parseFilterComp() (*Filter, error) {
	p.skipWhitespace()
	switch p.char() {
	case '&':
		p.pos++
		return p.parseComposite(opAnd)
	case '|':
		p.pos++
		return p.parseComposite(opOr)
	case '!':
		p.pos++
		return p.parseNot()
	}
	return p.parseItem()
}

// parseComposite parses the operand list of an AND or OR expression. A
// '&' or '|' not followed by a parenthesized list is part of an attribute
// name instead.
func (p *parser) parseComposite(op filterOp) (*Filter, error) {
	lookahead := p.pos
	p.skipWhitespace()
	if p.char() != '(' {
		p.pos = lookahead - 1
		return p.parseItem()
	}
	var children []*Filter
	for p.char() == '(' {
		child, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Filter{op: op, children: children}, nil
}

func (p *parser) parseNot() (*Filter, error) {
	lookahead := p.pos
	p.skipWhitespace()
	if p.char() != '(' {
		p.pos = lookahead - 1
		return p.parseItem()
	}
	child, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	return &Filter{op: opNot, children: []*Filter{child}}, nil
}

func (p *parser) parseAttr() (string, error) {
	p.skipWhitespace()
	begin := p.pos
	end := p.pos
	for !p.eof() {
		c := p.chars[p.pos]
		if c == '~' || c == '<' || c == '>' || c == '=' || c == '(' || c == ')' {
			break
		}
		p.pos++
		if !unicode.IsSpace(c) {
			end = p.pos
		}
	}
	if p.eof() {
		return "", p.errorf("filter ended unexpectedly")
	}
	if end == begin {
		return "", p.errorf("missing attribute name")
	}
	return string(p.chars[begin:end]), nil
}

func (p *parser) parseItem() (*Filter, error) {
	attr, err := p.parseAttr()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	switch p.char() {
	case '~':
		if p.charAt(p.pos+1) == '=' {
			p.pos += 2
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return &Filter{op: opApprox, attr: attr, operand: value}, nil
		}
	case '>':
		if p.charAt(p.pos+1) == '=' {
			p.pos += 2
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return &Filter{op: opGreater, attr: attr, operand: value}, nil
		}
	case '<':
		if p.charAt(p.pos+1) == '=' {
			p.pos += 2
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return &Filter{op: opLess, attr: attr, operand: value}, nil
		}
	case '=':
		if p.charAt(p.pos+1) == '*' {
			// '=*' is only a presence check when it closes the expression
			oldpos := p.pos
			p.pos += 2
			p.skipWhitespace()
			if p.char() == ')' {
				return &Filter{op: opPresent, attr: attr}, nil
			}
			p.pos = oldpos
		}
		p.pos++
		segments, err := p.parseSubstring()
		if err != nil {
			return nil, err
		}
		if len(segments) == 0 {
			return &Filter{op: opEqual, attr: attr}, nil
		}
		if len(segments) == 1 && !segments[0].wild {
			return &Filter{op: opEqual, attr: attr, operand: segments[0].text}, nil
		}
		return &Filter{op: opSubstring, attr: attr, segments: segments}, nil
	}
	return nil, p.errorf("missing or unrecognized operator")
}

func (p *parser) parseValue() (string, error) {
	var sb strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("filter ended unexpectedly")
		}
		c := p.chars[p.pos]
		switch c {
		case ')':
			if sb.Len() == 0 {
				return "", p.errorf("missing value")
			}
			return sb.String(), nil
		case '(':
			return "", p.errorf("invalid value character '('")
		case '\\':
			p.pos++
			if p.eof() {
				return "", p.errorf("filter ended unexpectedly")
			}
			c = p.chars[p.pos]
		}
		sb.WriteRune(c)
		p.pos++
	}
}

func (p *parser) parseSubstring() ([]segment, error) {
	var segments []segment
	var sb strings.Builder
	for {
		if p.eof() {
			return nil, p.errorf("filter ended unexpectedly")
		}
		c := p.chars[p.pos]
		switch c {
		case ')':
			if sb.Len() > 0 {
				segments = append(segments, segment{text: sb.String()})
			}
			return segments, nil
		case '(':
			return nil, p.errorf("invalid value character '('")
		case '*':
			if sb.Len() > 0 {
				segments = append(segments, segment{text: sb.String()})
				sb.Reset()
			}
			// consecutive wildcards collapse to one
			if len(segments) == 0 || !segments[len(segments)-1].wild {
				segments = append(segments, segment{wild: true})
			}
			p.pos++
			continue
		case '\\':
			p.pos++
			if p.eof() {
				return nil, p.errorf("filter ended unexpectedly")
			}
			c = p.chars[p.pos]
		}
		sb.WriteRune(c)
		p.pos++
	}
}

// Match reports whether the properties satisfy the filter. Keys are
// looked up case-sensitively.
func (f *Filter) Match(props Properties) bool {
	return f.match(func(key string) any {
		if props == nil {
			return nil
		}
		return props[key]
	})
}

// MatchDict evaluates the filter against a caller-supplied dictionary
// with case-insensitive key lookup. It fails with a *DuplicateKeyError
// when the dictionary contains case variants of the same key.
func (f *Filter) MatchDict(dict map[string]any) (bool, error) {
	folded := make(map[string]any, len(dict))
	for k, v := range dict {
		lk := strings.ToLower(k)
		if _, exists := folded[lk]; exists {
			return false, &DuplicateKeyError{Key: k}
		}
		folded[lk] = v
	}
	return f.match(func(key string) any {
		return folded[strings.ToLower(key)]
	}), nil
}

func (f *Filter) match(lookup func(string) any) bool {
	switch f.op {
	case opAnd:
		for _, child := range f.children {
			if !child.match(lookup) {
				return false
			}
		}
		return true
	case opOr:
		for _, child := range f.children {
			if child.match(lookup) {
				return true
			}
		}
		return false
	case opNot:
		return !f.children[0].match(lookup)
	case opPresent:
		return lookup(f.attr) != nil
	}
	return compareValue(f.op, lookup(f.attr), f.operand, f.segments)
}

// compareValue dispatches a leaf comparison on the property value's type.
// A value of an unrecognized type or an unparseable operand makes the
// comparison false, never an error.
func compareValue(op filterOp, value any, operand string, segments []segment) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case string:
		return compareString(op, v, operand, segments)
	case Char:
		return compareChar(op, v, operand)
	case bool:
		return compareBool(op, v, operand)
	case int:
		return compareInt(op, int64(v), operand)
	case int8:
		return compareInt(op, int64(v), operand)
	case int16:
		return compareInt(op, int64(v), operand)
	case int32:
		return compareInt(op, int64(v), operand)
	case int64:
		return compareInt(op, v, operand)
	case uint:
		return compareUint(op, uint64(v), operand)
	case uint8:
		return compareUint(op, uint64(v), operand)
	case uint16:
		return compareUint(op, uint64(v), operand)
	case uint32:
		return compareUint(op, uint64(v), operand)
	case uint64:
		return compareUint(op, v, operand)
	case float32:
		return compareFloat(op, float64(v), operand)
	case float64:
		return compareFloat(op, v, operand)
	}

	// multi-value semantics: a slice or array matches when any element does
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if compareValue(op, rv.Index(i).Interface(), operand, segments) {
				return true
			}
		}
		return false
	}

	if cmp, ok := value.(Comparable); ok {
		return compareComparable(op, cmp, operand)
	}
	return compareUnknown(op, value, operand)
}

func compareString(op filterOp, value, operand string, segments []segment) bool {
	switch op {
	case opSubstring:
		return matchSubstring(segments, value)
	case opEqual:
		return value == operand
	case opApprox:
		return strings.EqualFold(stripWhitespace(value), stripWhitespace(operand))
	case opGreater:
		return value >= operand
	case opLess:
		return value <= operand
	}
	return false
}

func compareChar(op filterOp, value Char, operand string) bool {
	if op == opSubstring {
		return false
	}
	runes := []rune(operand)
	if len(runes) == 0 {
		return false
	}
	other := runes[0]
	switch op {
	case opEqual:
		return rune(value) == other
	case opApprox:
		return rune(value) == other ||
			unicode.ToUpper(rune(value)) == unicode.ToUpper(other) ||
			unicode.ToLower(rune(value)) == unicode.ToLower(other)
	case opGreater:
		return rune(value) >= other
	case opLess:
		return rune(value) <= other
	}
	return false
}

// compareBool compares booleans by equality only; the relational and
// approximate operations degrade to equality.
func compareBool(op filterOp, value bool, operand string) bool {
	if op == opSubstring {
		return false
	}
	other, err := strconv.ParseBool(strings.TrimSpace(operand))
	if err != nil {
		return false
	}
	return value == other
}

func compareInt(op filterOp, value int64, operand string) bool {
	if op == opSubstring {
		return false
	}
	other, err := strconv.ParseInt(strings.TrimSpace(operand), 10, 64)
	if err != nil {
		return false
	}
	switch op {
	case opEqual, opApprox:
		return value == other
	case opGreater:
		return value >= other
	case opLess:
		return value <= other
	}
	return false
}

func compareUint(op filterOp, value uint64, operand string) bool {
	if op == opSubstring {
		return false
	}
	other, err := strconv.ParseUint(strings.TrimSpace(operand), 10, 64)
	if err != nil {
		return false
	}
	switch op {
	case opEqual, opApprox:
		return value == other
	case opGreater:
		return value >= other
	case opLess:
		return value <= other
	}
	return false
}

func compareFloat(op filterOp, value float64, operand string) bool {
	if op == opSubstring {
		return false
	}
	other, err := strconv.ParseFloat(strings.TrimSpace(operand), 64)
	if err != nil {
		return false
	}
	switch op {
	case opEqual, opApprox:
		return value == other
	case opGreater:
		return value >= other
	case opLess:
		return value <= other
	}
	return false
}

func compareComparable(op filterOp, value Comparable, operand string) bool {
	if op == opSubstring {
		return false
	}
	cmp, ok := value.CompareTo(strings.TrimSpace(operand))
	if !ok {
		return false
	}
	switch op {
	case opEqual, opApprox:
		return cmp == 0
	case opGreater:
		return cmp >= 0
	case opLess:
		return cmp <= 0
	}
	return false
}

// compareUnknown handles values of unrecognized types: substring matching
// is unsupported and the remaining operations degrade to equality of the
// value's string form.
func compareUnknown(op filterOp, value any, operand string) bool {
	if op == opSubstring {
		return false
	}
	return fmt.Sprint(value) == operand
}

// matchSubstring scans the string against the ordered segment list. A
// literal segment must match at the scan cursor; a literal after a
// wildcard may be found anywhere ahead of it; the final literal must
// align with the end of the string.
func matchSubstring(segments []segment, s string) bool {
	pos := 0
	n := len(segments)
	for i := 0; i < n; i++ {
		seg := segments[i]
		if i+1 < n {
			if seg.wild {
				// segments alternate after parse-time collapsing, so the
				// next one is a literal
				next := segments[i+1]
				idx := strings.Index(s[pos:], next.text)
				if idx < 0 {
					return false
				}
				pos += idx + len(next.text)
				if i+2 < n {
					i++
				}
			} else {
				if !strings.HasPrefix(s[pos:], seg.text) {
					return false
				}
				pos += len(seg.text)
			}
		} else {
			if seg.wild {
				return true
			}
			return strings.HasSuffix(s, seg.text)
		}
	}
	return true
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// encodeValue escapes '(', ')', '*' and '\' in a literal value.
func encodeValue(value string) string {
	if !strings.ContainsAny(value, `()*\`) {
		return value
	}
	var sb strings.Builder
	sb.Grow(len(value) * 2)
	for _, r := range value {
		switch r {
		case '(', ')', '*', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// String returns the canonical, minimal-whitespace form of the filter.
// The result is memoized; filters that are semantically identical after
// whitespace stripping canonicalize to the same string.
func (f *Filter) String() string {
	f.once.Do(func() {
		var sb strings.Builder
		f.normalize(&sb)
		f.str = sb.String()
	})
	return f.str
}

func (f *Filter) normalize(sb *strings.Builder) {
	sb.WriteByte('(')
	switch f.op {
	case opAnd:
		sb.WriteByte('&')
		for _, child := range f.children {
			child.normalize(sb)
		}
	case opOr:
		sb.WriteByte('|')
		for _, child := range f.children {
			child.normalize(sb)
		}
	case opNot:
		sb.WriteByte('!')
		f.children[0].normalize(sb)
	case opSubstring:
		sb.WriteString(f.attr)
		sb.WriteByte('=')
		for _, seg := range f.segments {
			if seg.wild {
				sb.WriteByte('*')
			} else {
				sb.WriteString(encodeValue(seg.text))
			}
		}
	case opEqual:
		sb.WriteString(f.attr)
		sb.WriteByte('=')
		sb.WriteString(encodeValue(f.operand))
	case opGreater:
		sb.WriteString(f.attr)
		sb.WriteString(">=")
		sb.WriteString(encodeValue(f.operand))
	case opLess:
		sb.WriteString(f.attr)
		sb.WriteString("<=")
		sb.WriteString(encodeValue(f.operand))
	case opApprox:
		sb.WriteString(f.attr)
		sb.WriteString("~=")
		sb.WriteString(encodeValue(stripWhitespace(f.operand)))
	case opPresent:
		sb.WriteString(f.attr)
		sb.WriteString("=*")
	}
	sb.WriteByte(')')
}

// Equal reports whether two filters have the same canonical form.
func (f *Filter) Equal(other *Filter) bool {
	if f == other {
		return true
	}
	if other == nil {
		return false
	}
	return f.String() == other.String()
}

// Attributes returns every attribute name referenced by the filter, in
// left-to-right order.
func (f *Filter) Attributes() []string {
	var out []string
	f.appendAttributes(&out)
	return out
}

func (f *Filter) appendAttributes(out *[]string) {
	if len(f.children) > 0 {
		for _, child := range f.children {
			child.appendAttributes(out)
		}
		return
	}
	if f.attr != "" {
		*out = append(*out, f.attr)
	}
}
