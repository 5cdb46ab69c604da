package svcmock_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/platkit/svcmock"
	"github.com/platkit/svcmock/mock"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"
)

type FilterTestSuite struct {
	suite.Suite
}

func (s *FilterTestSuite) mustParse(filter string) *svcmock.Filter {
	f, err := svcmock.ParseFilter(filter)
	s.Require().NoError(err)
	return f
}

func (s *FilterTestSuite) TestParseErrors() {
	cases := []string{
		"",
		"(",
		"(a=b",
		"a=b)",
		"(a=b))",
		"(&(a=b)",
		"(=b)",
		"(a~=)",
		"(a>=)",
		"(a<=)",
		"(a)",
		"(a=b(c)",
	}
	for _, filter := range cases {
		_, err := svcmock.ParseFilter(filter)
		var syntaxErr *svcmock.FilterSyntaxError
		s.True(errors.As(err, &syntaxErr), "filter %q should not parse", filter)
		s.Equal(filter, syntaxErr.Filter)
	}
}

func (s *FilterTestSuite) TestParseErrorPositions() {
	var syntaxErr *svcmock.FilterSyntaxError

	_, err := svcmock.ParseFilter("(=b)")
	s.Require().True(errors.As(err, &syntaxErr))
	s.Equal(1, syntaxErr.Pos)

	_, err = svcmock.ParseFilter("(x=")
	s.Require().True(errors.As(err, &syntaxErr))
	s.Equal(3, syntaxErr.Pos)

	_, err = svcmock.ParseFilter("(a=b)junk")
	s.Require().True(errors.As(err, &syntaxErr))
	s.Equal(5, syntaxErr.Pos)
}

func (s *FilterTestSuite) TestCanonicalForm() {
	cases := map[string]string{
		" (&(a=b)(c>=2)) ":     "(&(a=b)(c>=2))",
		"(& (a=b) (c>=2))":     "(&(a=b)(c>=2))",
		"( ! (a=b) )":          "(!(a=b))",
		"(|(a=b)(a=c))":        "(|(a=b)(a=c))",
		"(a=**b)":              "(a=*b)",
		"(a=*)":                "(a=*)",
		"(a=)":                 "(a=)",
		"(name~=J  S)":         "(name~=JS)",
		`(cn=Bob \(Smith\))`:   `(cn=Bob \(Smith\))`,
		"(o=univ*of*mich*)":    "(o=univ*of*mich*)",
	}
	for filter, want := range cases {
		s.Equal(want, s.mustParse(filter).String(), "canonical form of %q", filter)
	}
}

func (s *FilterTestSuite) TestEqual() {
	a := s.mustParse("(&(a=b)(c=d))")
	b := s.mustParse("(& (a=b) (c=d))")
	c := s.mustParse("(&(a=b)(c=e))")
	s.True(a.Equal(b))
	s.True(a.Equal(a))
	s.False(a.Equal(c))
	s.False(a.Equal(nil))
}

func (s *FilterTestSuite) TestAttributes() {
	f := s.mustParse("(&(a=1)(|(b=2)(!(c=3))))")
	s.Equal([]string{"a", "b", "c"}, f.Attributes())
}

func (s *FilterTestSuite) TestStringMatching() {
	props := svcmock.Properties{"o": "university of michigan"}
	s.True(s.mustParse("(o=university of michigan)").Match(props))
	s.True(s.mustParse("(o=univ*of*mich*)").Match(props))
	s.True(s.mustParse("(o=*igan)").Match(props))
	s.False(s.mustParse("(o=univ*of*mich)").Match(svcmock.Properties{"o": "university of michigan and state"}))
	s.True(s.mustParse("(o=univ*of*mich*)").Match(svcmock.Properties{"o": "univ of mich and state"}))
	s.False(s.mustParse("(o=harvard*)").Match(props))
	s.True(s.mustParse("(o>=u)").Match(props))
	s.False(s.mustParse("(o<=a)").Match(props))
}

func (s *FilterTestSuite) TestEscapes() {
	s.True(s.mustParse(`(cn=Bob \(Smith\))`).Match(svcmock.Properties{"cn": "Bob (Smith)"}))
	s.True(s.mustParse(`(x=\*lit)`).Match(svcmock.Properties{"x": "*lit"}))
	s.False(s.mustParse(`(x=\*lit)`).Match(svcmock.Properties{"x": "anything lit"}))
	s.True(s.mustParse(`(x=a\\b)`).Match(svcmock.Properties{"x": `a\b`}))
}

func (s *FilterTestSuite) TestPresence() {
	f := s.mustParse("(a=*)")
	s.True(f.Match(svcmock.Properties{"a": 0}))
	s.True(f.Match(svcmock.Properties{"a": ""}))
	s.False(f.Match(svcmock.Properties{"b": 1}))
	s.False(f.Match(nil))
}

func (s *FilterTestSuite) TestEmptyValueEquality() {
	f := s.mustParse("(a=)")
	s.True(f.Match(svcmock.Properties{"a": ""}))
	s.False(f.Match(svcmock.Properties{"a": "x"}))
}

func (s *FilterTestSuite) TestApproxMatching() {
	f := s.mustParse("(name~=J  S)")
	s.True(f.Match(svcmock.Properties{"name": "j s"}))
	s.True(f.Match(svcmock.Properties{"name": " J S "}))
	s.False(f.Match(svcmock.Properties{"name": "js x"}))
}

func (s *FilterTestSuite) TestNumericMatching() {
	props := svcmock.Properties{
		"n": 5,
		"u": uint16(7),
		"f": 2.5,
	}
	s.True(s.mustParse("(n=5)").Match(props))
	s.True(s.mustParse("(n>=5)").Match(props))
	s.True(s.mustParse("(n<=5)").Match(props))
	s.False(s.mustParse("(n>=6)").Match(props))
	s.True(s.mustParse("(u>=6)").Match(props))
	s.True(s.mustParse("(f<=2.5)").Match(props))
	// unparseable operands never match and never error
	s.False(s.mustParse("(n=5x)").Match(props))
	s.False(s.mustParse("(n>=abc)").Match(props))
	s.False(s.mustParse("(n=*5*)").Match(props))
}

func (s *FilterTestSuite) TestBoolMatching() {
	props := svcmock.Properties{"b": true}
	s.True(s.mustParse("(b=true)").Match(props))
	s.True(s.mustParse("(b=TRUE)").Match(props))
	s.False(s.mustParse("(b=false)").Match(props))
	s.False(s.mustParse("(b=yes)").Match(props))
	// relational operations degrade to equality
	s.True(s.mustParse("(b>=true)").Match(props))
	s.False(s.mustParse("(b>=false)").Match(props))
}

func (s *FilterTestSuite) TestCharMatching() {
	props := svcmock.Properties{"c": svcmock.Char('a')}
	s.True(s.mustParse("(c=a)").Match(props))
	s.False(s.mustParse("(c=b)").Match(props))
	s.True(s.mustParse("(c~=A)").Match(props))
	s.True(s.mustParse("(c>=a)").Match(props))
	s.False(s.mustParse("(c>=b)").Match(props))
}

func (s *FilterTestSuite) TestMultiValueMatching() {
	props := svcmock.Properties{
		"tags": []string{"alpha", "beta"},
		"nums": []int{1, 5, 9},
	}
	s.True(s.mustParse("(tags=beta)").Match(props))
	s.False(s.mustParse("(tags=gamma)").Match(props))
	s.True(s.mustParse("(tags=al*)").Match(props))
	s.True(s.mustParse("(nums>=7)").Match(props))
	s.False(s.mustParse("(nums>=10)").Match(props))
}

func (s *FilterTestSuite) TestComparableMatching() {
	props := svcmock.Properties{"v": mock.Version{Major: 1, Minor: 2, Patch: 3}}
	s.True(s.mustParse("(v=1.2.3)").Match(props))
	s.True(s.mustParse("(v>=1.0.0)").Match(props))
	s.False(s.mustParse("(v<=1.0.0)").Match(props))
	s.False(s.mustParse("(v=abc)").Match(props))
	s.False(s.mustParse("(v=*2*)").Match(props))
}

func (s *FilterTestSuite) TestUnknownTypeMatching() {
	point := struct{ X int }{7}
	props := svcmock.Properties{"p": point}
	s.True(s.mustParse(fmt.Sprintf("(p=%v)", point)).Match(props))
	s.False(s.mustParse("(p={8})").Match(props))
	s.False(s.mustParse("(p=*7*)").Match(props))
}

func (s *FilterTestSuite) TestBooleanOperators() {
	props := svcmock.Properties{"a": "1", "b": "2"}
	s.True(s.mustParse("(&(a=1)(b=2))").Match(props))
	s.False(s.mustParse("(&(a=1)(b=3))").Match(props))
	s.True(s.mustParse("(|(a=0)(b=2))").Match(props))
	s.False(s.mustParse("(|(a=0)(b=0))").Match(props))
	s.True(s.mustParse("(!(a=0))").Match(props))
	s.False(s.mustParse("(!(a=1))").Match(props))
}

func (s *FilterTestSuite) TestMatchCaseSensitivity() {
	f := s.mustParse("(region=eu)")
	s.True(f.Match(svcmock.Properties{"region": "eu"}))
	s.False(f.Match(svcmock.Properties{"Region": "eu"}))
}

func (s *FilterTestSuite) TestMatchDict() {
	f := s.mustParse("(region=eu)")

	ok, err := f.MatchDict(map[string]any{"Region": "eu"})
	s.NoError(err)
	s.True(ok)

	ok, err = f.MatchDict(map[string]any{"Region": "eu", "region": "us"})
	var dupErr *svcmock.DuplicateKeyError
	s.True(errors.As(err, &dupErr))
	s.False(ok)
}

func (s *FilterTestSuite) TestMustParseFilterPanics() {
	s.Panics(func() { svcmock.MustParseFilter("(a=") })
	s.NotNil(svcmock.MustParseFilter("(a=b)"))
}

func TestFilterSuite(t *testing.T) {
	suite.Run(t, new(FilterTestSuite))
}

// genFilterString produces a random, syntactically valid filter string.
func genFilterString(t *rapid.T, depth int) string {
	attr := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9]{0,6}`).Draw(t, "attr")
	if depth < 2 && rapid.Bool().Draw(t, "composite") {
		op := rapid.SampledFrom([]string{"&", "|", "!"}).Draw(t, "op")
		if op == "!" {
			return "(!" + genFilterString(t, depth+1) + ")"
		}
		n := rapid.IntRange(1, 3).Draw(t, "n")
		var sb strings.Builder
		sb.WriteString("(")
		sb.WriteString(op)
		for i := 0; i < n; i++ {
			sb.WriteString(genFilterString(t, depth+1))
		}
		sb.WriteString(")")
		return sb.String()
	}
	op := rapid.SampledFrom([]string{"=", "~=", ">=", "<=", "=*"}).Draw(t, "leafop")
	if op == "=*" {
		return "(" + attr + "=*)"
	}
	value := rapid.StringMatching(`[a-zA-Z0-9 *]{0,7}[a-zA-Z0-9]`).Draw(t, "value")
	return "(" + attr + op + value + ")"
}

func TestFilterCanonicalIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		filter := genFilterString(t, 0)
		parsed, err := svcmock.ParseFilter(filter)
		if err != nil {
			t.Fatalf("generated filter %q does not parse: %v", filter, err)
		}
		canonical := parsed.String()
		reparsed, err := svcmock.ParseFilter(canonical)
		if err != nil {
			t.Fatalf("canonical form %q does not parse: %v", canonical, err)
		}
		if got := reparsed.String(); got != canonical {
			t.Fatalf("canonical form is not stable: %q became %q", canonical, got)
		}
		if !parsed.Equal(reparsed) {
			t.Fatalf("filter %q does not equal its canonical reparse", filter)
		}
	})
}
