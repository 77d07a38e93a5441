package schema

var postgresQueries = queries{
	listTables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,

	tableExists: `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`,

	columns: `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES'                 AS is_nullable,
			c.column_default,
			c.character_maximum_length::bigint,
			COALESCE(pk.is_pk, false)             AS is_primary_key,
			COALESCE(uq.is_unique, false)         AS is_unique
		FROM information_schema.columns c

		-- Primary key check
		LEFT JOIN (
			SELECT kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = current_schema()
			  AND tc.table_name   = $1
		) pk ON pk.column_name = c.column_name

		-- Unique constraint check
		LEFT JOIN (
			SELECT DISTINCT kcu.column_name, true AS is_unique
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'UNIQUE'
			  AND tc.table_schema = current_schema()
			  AND tc.table_name   = $1
		) uq ON uq.column_name = c.column_name

		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`,
}
