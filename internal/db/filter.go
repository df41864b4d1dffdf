package db

// IDField is the document field holding the primary key.
const IDField = "_id"

// Op identifies a comparison performed by a Cond.
type Op int

const (
	// OpEq matches documents whose field equals the value.
	OpEq Op = iota
	// OpIn matches documents whose string field is one of the values.
	OpIn
	// OpGt matches documents whose integer field is strictly greater than the value.
	OpGt
	// OpContains matches documents whose string field contains the value.
	OpContains
)

// Cond is a single field condition.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality condition.
func Eq(field string, value any) Cond {
	return Cond{Field: field, Op: OpEq, Value: value}
}

// In builds a set membership condition over string values.
func In(field string, values []string) Cond {
	return Cond{Field: field, Op: OpIn, Value: values}
}

// Gt builds a strictly-greater-than condition over integer values.
func Gt(field string, value int64) Cond {
	return Cond{Field: field, Op: OpGt, Value: value}
}

// Contains builds a case-sensitive, unanchored substring condition.
func Contains(field, substr string) Cond {
	return Cond{Field: field, Op: OpContains, Value: substr}
}

// Filter selects documents matching every condition in All and, when Any is
// non-empty, at least one condition in Any. The zero Filter matches everything.
type Filter struct {
	All []Cond
	Any []Cond
}

// Where returns a filter requiring every condition.
func Where(conds ...Cond) Filter {
	return Filter{All: conds}
}

// Or returns a copy of f that also requires at least one of conds.
func (f Filter) Or(conds ...Cond) Filter {
	f.Any = append(append([]Cond(nil), f.Any...), conds...)
	return f
}

// ByID returns a filter matching the document with the given primary key.
func ByID(id string) Filter {
	return Where(Eq(IDField, id))
}

// FindOptions controls result ordering and size.
type FindOptions struct {
	SortField string
	Limit     int
}

// FindOption mutates FindOptions.
type FindOption func(*FindOptions)

// SortAsc orders results ascending by field.
func SortAsc(field string) FindOption {
	return func(o *FindOptions) { o.SortField = field }
}

// Limit caps the number of results. Non-positive values mean no limit.
func Limit(n int) FindOption {
	return func(o *FindOptions) { o.Limit = n }
}

func buildFindOptions(opts []FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
