package domain

// ImportRecord is one normalized CSV row. Keys are the declared column
// names; empty values are omitted except "email".
type ImportRecord map[string]string

// Email returns the lower-cased email of the record.
func (r ImportRecord) Email() string {
	return r["email"]
}

// Get returns the value of a column, or "" when it was empty.
func (r ImportRecord) Get(column string) string {
	return r[column]
}
