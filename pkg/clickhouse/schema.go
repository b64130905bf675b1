package clickhouse

import "fmt"

// Reference table names.
const (
	TablePrices  = "prices"
	TableYield   = "crop_yield"
	TableCost    = "crop_cost"
	TableAcreage = "acreage"
)

// Schema returns the DDL for the AgriPulse reference tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            crop LowCardinality(String),
            market LowCardinality(String),
            date Date,
            price Float64,
            source LowCardinality(String) DEFAULT 'csv',
            ingested_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY (crop, market, date)`, database, TablePrices),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            crop String,
            yield_per_acre Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY crop`, database, TableYield),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            crop String,
            cost_per_acre Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY crop`, database, TableCost),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            crop LowCardinality(String),
            market LowCardinality(String),
            year UInt16,
            area_acres Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (crop, market, year)`, database, TableAcreage),
	}
}
