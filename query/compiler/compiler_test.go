package compiler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/tdbcore/query/argbind"
	"github.com/nexuscore/tdbcore/query/exprtree"
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

type fakeTable struct {
	name string
	cols map[string]schema.Column
}

func (t *fakeTable) Name() string { return t.name }

func (t *fakeTable) Column(name string) (schema.Column, bool) {
	c, ok := t.cols[name]
	return c, ok
}

type fakeGroup struct {
	tables map[string]*fakeTable
}

func (g *fakeGroup) Table(name string) (schema.Table, bool) {
	t, ok := g.tables[name]
	return t, ok
}

func newPersonGroup() *fakeGroup {
	person := &fakeTable{
		name: "class_Person",
		cols: map[string]schema.Column{
			"age":  {Name: "age", Kind: schema.KindScalar, Type: schema.TypeInt},
			"name": {Name: "name", Kind: schema.KindScalar, Type: schema.TypeString},
			"dog":  {Name: "dog", Kind: schema.KindLink, Type: schema.TypeUnknown, LinkTarget: "class_Dog"},
		},
	}
	dog := &fakeTable{
		name: "class_Dog",
		cols: map[string]schema.Column{
			"name": {Name: "name", Kind: schema.KindScalar, Type: schema.TypeString},
			"age":  {Name: "age", Kind: schema.KindScalar, Type: schema.TypeInt},
		},
	}
	return &fakeGroup{tables: map[string]*fakeTable{
		"class_Person": person,
		"class_Dog":    dog,
	}}
}

func prop(name string) predast.Property {
	return predast.Property{Identifier: name}
}

func numConst(text string) predast.Constant {
	return predast.Constant{Type: predast.CNumber, Text: text}
}

func strConst(text string) predast.Constant {
	return predast.Constant{Type: predast.CString, Text: text}
}

// TestEqualityFastPath covers spec.md §8 scenario 4: a plain column-vs-
// constant equality compiles to the specialized fast path, not a generic
// Compare tree.
func TestEqualityFastPath(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	node, err := c.compilePredicate(predast.Equality{L: prop("age"), R: numConst("30"), Op: predast.EQ})
	require.NoError(t, err)

	spec, ok := node.(exprtree.Specialized)
	require.True(t, ok, "expected a fast-path Specialized node, got %T", node)
	require.Equal(t, exprtree.SpecEquality, spec.Kind)
	require.Equal(t, "age", spec.Column.Name)
	require.Equal(t, int64(30), spec.Value)
}

// TestStringOpsCaseInsensitive covers spec.md §8 scenario 5.
func TestStringOpsCaseInsensitive(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	node, err := c.compilePredicate(predast.StringOps{
		L: prop("name"), R: strConst("rex"), Op: predast.CONTAINS, CaseSensitive: false,
	})
	require.NoError(t, err)

	spec, ok := node.(exprtree.Specialized)
	require.True(t, ok)
	require.Equal(t, exprtree.SpecStringOp, spec.Kind)
	require.False(t, spec.CaseSensitive)
	require.Equal(t, predast.CONTAINS, spec.StrOp)
}

// TestArgumentSubstitutionColumnVsNull covers spec.md §8 scenario 6: a NULL
// argument compared for equality against a column compiles to the
// column-vs-null specialized form.
func TestArgumentSubstitutionColumnVsNull(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	args := argbind.Args{{Type: argbind.TypeNull}}
	c := New(g, person, args)

	node, err := c.compilePredicate(predast.Equality{
		L: prop("name"), R: predast.Constant{Type: predast.CArg, Text: "$0"}, Op: predast.EQ,
	})
	require.NoError(t, err)

	spec, ok := node.(exprtree.Specialized)
	require.True(t, ok)
	require.Equal(t, exprtree.SpecColumnVsNull, spec.Kind)
}

// TestArgumentSubstitutionTyped binds a typed argument and checks it
// resolves through the fast path with the right dynamic value.
func TestArgumentSubstitutionTyped(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	args := argbind.Args{{Type: argbind.TypeInt, Long: 42}}
	c := New(g, person, args)

	node, err := c.compilePredicate(predast.Relational{
		L: prop("age"), R: predast.Constant{Type: predast.CArg, Text: "$0"}, Op: predast.GT,
	})
	require.NoError(t, err)

	spec, ok := node.(exprtree.Specialized)
	require.True(t, ok)
	require.Equal(t, int64(42), spec.Value)
	require.Equal(t, predast.GT, spec.RelOp)
}

// TestBacklinkPathResolutionError covers spec.md §8 scenario 7's "no
// property" error format, including class-name prefix stripping.
func TestBacklinkPathResolutionError(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	_, err := c.compilePredicate(predast.Equality{
		L: predast.Property{Path: []string{"@links.class_Dog.owner"}, Identifier: "name"},
		R: strConst("rex"),
		Op: predast.EQ,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no property 'owner' found on table 'Dog'")
}

// TestTwoConstantsRejected covers spec.md §8 scenario 8.
func TestTwoConstantsRejected(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	_, err := c.compilePredicate(predast.Equality{L: numConst("1"), R: numConst("2"), Op: predast.EQ})
	require.ErrorIs(t, err, ErrSemantic)
	require.Contains(t, err.Error(), "cannot compare two constants")
}

func TestAndCollapsesSingleChild(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	node, err := c.compilePredicate(predast.And{Children: []predast.Node{
		predast.Equality{L: prop("age"), R: numConst("1"), Op: predast.EQ},
	}})
	require.NoError(t, err)
	_, ok := node.(exprtree.Specialized)
	require.True(t, ok, "a single-child And must collapse to its child, got %T", node)
}

func TestLinkChainForcesSlowPath(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	node, err := c.compilePredicate(predast.Equality{
		L: predast.Property{Path: []string{"dog"}, Identifier: "name"},
		R: strConst("rex"),
		Op: predast.EQ,
	})
	require.NoError(t, err)
	_, ok := node.(exprtree.Compare)
	require.True(t, ok, "a property reached through a link should compile to the generic Compare tree, got %T", node)
}

func TestTimestampLiteralRejectsPre1900Year(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	dobCol := schema.Column{Name: "dob", Kind: schema.KindScalar, Type: schema.TypeTimestamp}
	person.(*fakeTable).cols["dob"] = dobCol

	_, err := c.compilePredicate(predast.Equality{
		L:  prop("dob"),
		R:  predast.Constant{Type: predast.CTimestamp, Text: "T-3000000000:0"},
		Op: predast.EQ,
	})
	require.ErrorIs(t, err, ErrSemantic)
}

// TestStringLiteralStripsQuotes matches spec.md §4.2's STRING literal
// syntax: the surrounding double quotes are not part of the value.
func TestStringLiteralStripsQuotes(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	cv, err := c.compileConstant(predast.Constant{Type: predast.CString, Text: `"rex"`}, schema.TypeString)
	require.NoError(t, err)
	require.Equal(t, "rex", cv.Value)
}

// TestBase64LiteralStripsWrapper matches spec.md §4.2's BASE64 literal
// syntax: B64"..." wraps the encoded payload.
func TestBase64LiteralStripsWrapper(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	cv, err := c.compileConstant(predast.Constant{Type: predast.CBase64, Text: `B64"aGVsbG8="`}, schema.TypeBinary)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), cv.Value)
}

// TestUUIDLiteralStripsWrapper matches spec.md §4.2's UUID literal syntax:
// uuid(...) wraps the 36-character payload.
func TestUUIDLiteralStripsWrapper(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	cv, err := c.compileConstant(predast.Constant{Type: predast.CUUID, Text: "uuid(123e4567-e89b-12d3-a456-426614174000)"}, schema.TypeUUID)
	require.NoError(t, err)
	require.Equal(t, uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"), cv.Value)
}

// TestObjectIDLiteralStripsWrapper matches spec.md §4.2's OID literal
// syntax: oid(...) wraps the 24-hex-character payload.
func TestObjectIDLiteralStripsWrapper(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	c := New(g, person, nil)

	cv, err := c.compileConstant(predast.Constant{Type: predast.COid, Text: "oid(507f1f77bcf86cd799439011)"}, schema.TypeObjectID)
	require.NoError(t, err)
	require.Equal(t, [12]byte{0x50, 0x7f, 0x1f, 0x77, 0xbc, 0xf8, 0x6c, 0xd7, 0x99, 0x43, 0x90, 0x11}, cv.Value)
}

// TestTimestampLiteralParsesReadableDate exercises the readable-date branch
// of parseTimestampLiteral, distinct from the "T<secs>:<nanos>" shorthand:
// YYYY-MM-DD<sep>HH:MM:SS[:NANOS] with sep of '@' or 'T'.
func TestTimestampLiteralParsesReadableDate(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	person.(*fakeTable).cols["dob"] = schema.Column{Name: "dob", Kind: schema.KindScalar, Type: schema.TypeTimestamp}
	c := New(g, person, nil)

	node, err := c.compilePredicate(predast.Equality{
		L:  prop("dob"),
		R:  predast.Constant{Type: predast.CTimestamp, Text: "2024-01-15@10:30:00"},
		Op: predast.EQ,
	})
	require.NoError(t, err)
	spec := node.(exprtree.Specialized)
	require.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), spec.Value)

	node, err = c.compilePredicate(predast.Equality{
		L:  prop("dob"),
		R:  predast.Constant{Type: predast.CTimestamp, Text: "2024-01-15T10:30:00:500"},
		Op: predast.EQ,
	})
	require.NoError(t, err)
	spec = node.(exprtree.Specialized)
	require.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 500, time.UTC), spec.Value)
}

// TestRelationalRejectsUUID matches spec.md §4.2: UUID columns have no
// ordering and cannot appear in a relational operator.
func TestRelationalRejectsUUID(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	person.(*fakeTable).cols["token"] = schema.Column{Name: "token", Kind: schema.KindScalar, Type: schema.TypeUUID}
	c := New(g, person, nil)

	_, err := c.compilePredicate(predast.Relational{
		L:  prop("token"),
		R:  predast.Constant{Type: predast.CUUID, Text: "uuid(123e4567-e89b-12d3-a456-426614174000)"},
		Op: predast.GT,
	})
	require.ErrorIs(t, err, ErrSemantic)
}

func TestTimestampLiteralParsesSeconds(t *testing.T) {
	g := newPersonGroup()
	person, _ := g.Table("class_Person")
	person.(*fakeTable).cols["dob"] = schema.Column{Name: "dob", Kind: schema.KindScalar, Type: schema.TypeTimestamp}
	c := New(g, person, nil)

	node, err := c.compilePredicate(predast.Equality{
		L:  prop("dob"),
		R:  predast.Constant{Type: predast.CTimestamp, Text: "T1000000000:0"},
		Op: predast.EQ,
	})
	require.NoError(t, err)
	spec := node.(exprtree.Specialized)
	require.Equal(t, time.Unix(1000000000, 0).UTC(), spec.Value)
}
