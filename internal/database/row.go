package database

// ScanRows reads all rows from the result set and returns them as a slice
// of maps keyed by column name.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows, so callers need not call Close().
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, passthrough("failed to read column names", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, passthrough("failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = dest[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, passthrough("error during row iteration", err)
	}

	return result, nil
}

// CollectRows scans every row with scan and closes rows.
func CollectRows[T any](rows Rows, scan func(Row) (T, error)) ([]T, error) {
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, passthrough("failed to scan row", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, passthrough("error during row iteration", err)
	}
	return out, nil
}
