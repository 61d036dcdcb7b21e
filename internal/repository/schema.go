package repository

// SchemaUp creates the monthly count table
const SchemaUp = `
CREATE TABLE IF NOT EXISTS fars_monthly_counts (
	year           INTEGER     NOT NULL,
	month          INTEGER     NOT NULL CHECK (month BETWEEN 1 AND 12),
	accident_count INTEGER     NOT NULL CHECK (accident_count >= 0),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (year, month)
);

CREATE INDEX IF NOT EXISTS idx_fars_monthly_counts_month ON fars_monthly_counts (month);
`

// SchemaDown drops everything SchemaUp created
const SchemaDown = `
DROP INDEX IF EXISTS idx_fars_monthly_counts_month;
DROP TABLE IF EXISTS fars_monthly_counts;
`
