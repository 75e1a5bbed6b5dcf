// Package banking contains the Bank Connector bounded context.
// It models open-banking connections to external banks and the ledger records they feed.
//
// Key concepts:
//   - BankConnector: a configured link to one bank tenant, carrying OAuth2 state and a lifecycle
//   - BankAccount: a managed account discovered through the connector
//   - StatementLine: an immutable imported transaction, deduplicated by its import reference
//   - CurrencyRate: a daily FX rate produced by a connector
//   - BankAdapter: port translating canonical calls into vendor endpoints
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (one per BankType) are in the infrastructure layer
package banking
