package schema

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name         string
	DataType     string // as reported by information_schema: text, integer, varchar, ...
	IsNullable   bool
	IsPrimaryKey bool
	IsUnique     bool
	DefaultValue *string // nil if no default
	MaxLength    *int64  // nil for non-char types
}

// TableInfo describes a table and its columns
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}

// Column returns the named column, or false.
func (t *TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}
