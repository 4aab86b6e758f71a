package report

import "strconv"

// Row is a single result record keyed by column name.
type Row map[string]interface{}

// Table is the neutral shape data sources hand to report transforms:
// ordered column names plus one map per record. Transforms only read it.
type Table struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the table has no rows. An empty table is a valid
// fetch result; transforms render it as an explicit "no records" message.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// String returns the row's value for col as a string, or "" if absent.
func (r Row) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}

	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

// Float returns the row's value for col as a float64. The second return is
// false when the value is absent, nil, or not numeric. String and []byte
// values are parsed because Postgres numeric columns scan as text.
func (r Row) Float(col string) (float64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		return parseFloat(n)
	case []byte:
		return parseFloat(string(n))
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Int returns the row's value for col as an int, defaulting to 0.
func (r Row) Int(col string) int {
	f, ok := r.Float(col)
	if !ok {
		return 0
	}
	return int(f)
}
