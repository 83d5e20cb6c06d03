package store

// SplitColumnNames partitions names into dimension and attribute names of
// schema, keeping the order of names. Names in neither set are dropped. A
// nil names selects everything and returns (nil, nil); otherwise both
// results are non-nil.
func SplitColumnNames(schema *Schema, names []string) (dims, attrs []string) {
	if names == nil {
		return nil, nil
	}
	dims, attrs = []string{}, []string{}
	for _, name := range names {
		if _, ok := schema.Dim(name); ok {
			dims = append(dims, name)
			continue
		}
		if _, ok := schema.Attr(name); ok {
			attrs = append(attrs, name)
		}
	}
	return dims, attrs
}
