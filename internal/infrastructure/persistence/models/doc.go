// Package models holds the GORM rows behind the integration and lead
// repositories. Domain entities carry no ORM tags; each model converts
// to and from its entity with ToDomain/FromDomain.
//
// integration.go covers configs, field mappings and the inbound audit log.
// lead.go covers leads and the records the create cascade adds to them.
//
// Columns are portable between PostgreSQL and SQLite. JSON columns use
// gorm.io/datatypes and become jsonb on PostgreSQL; migrations/ mirrors
// these definitions for the postgres schema.
package models
