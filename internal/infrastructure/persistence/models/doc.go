// Package models contains the GORM models behind the connector tables.
// Domain entities carry no ORM tags; each model converts to and from its
// entity with ToDomain and FromDomain.
//
//   - banking.go: bank connectors, accounts, statement lines, currency rates, partners
//   - feed.go: XML product sources, field mappings, products
//   - qcommerce.go: quick-commerce channels
//   - runlog.go: sync and import run logs
package models
