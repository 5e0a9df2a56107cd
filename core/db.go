package core

// DBOrdering describes a sort on a single document field.
type DBOrdering struct {
	Field     string
	Ascending bool
}

// Direction returns the sort direction as understood by document stores: 1 | -1.
func (ord DBOrdering) Direction() int {
	if ord.Ascending {
		return 1
	}
	return -1
}
