// Package gorm implements the role store on PostgreSQL via GORM with raw
// SQL queries.
package gorm
