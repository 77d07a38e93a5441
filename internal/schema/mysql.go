package schema

var mysqlQueries = queries{
	listTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,

	tableExists: `
		SELECT COUNT(*) > 0
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`,

	columns: `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES'  AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			(c.column_key = 'PRI') AS is_primary_key,
			(c.column_key = 'UNI') AS is_unique
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE() AND c.table_name = ?
		ORDER BY c.ordinal_position`,
}
