package ir

// Order is the direction of one order-by field.
type Order string

const (
	Ascending  Order = "ascending"
	Descending Order = "descending"
)

// ValidOrders defines the accepted order directions.
var ValidOrders = map[Order]bool{
	Ascending:  true,
	Descending: true,
}

// OrderByField is one (field, direction) sort key.
type OrderByField struct {
	Field string `json:"field"`
	Order Order  `json:"order"`
}

// OrderBySpec is the sealed ordering mode of a request.
//
// Variants:
//   - OrderByFields: sort by the listed fields, first field is the primary key
//   - RandomOrder: random sampling, optionally seeded
//
// The two modes are mutually exclusive; a request mixing the random
// pseudo-field with real fields is rejected before an OrderBySpec is built.
type OrderBySpec interface {
	orderBySpec() // Sealed
}

// OrderByFields sorts by the given fields in order.
// An empty Fields slice means "engine default order".
type OrderByFields struct {
	Fields []OrderByField
}

func (OrderByFields) orderBySpec() {}

// RandomOrder asks the downstream engine for a random sample order.
type RandomOrder struct {
	// Seed makes the shuffle reproducible. Nil means unseeded.
	Seed *int64
}

func (RandomOrder) orderBySpec() {}

// NoOrder is the empty OrderByFields spec.
func NoOrder() OrderBySpec {
	return OrderByFields{Fields: []OrderByField{}}
}
