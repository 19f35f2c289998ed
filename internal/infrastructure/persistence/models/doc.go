// Package models contains GORM persistence models that map to database tables.
// Domain entities stay free of ORM tags; each model converts with ToDomain and
// FromDomain.
//
// Structure:
//   - base.go: BaseModel and AggregateModel (optimistic lock version)
//   - order.go: orders, with the pricing snapshot stored as JSON plus flattened amounts
//   - pricing.go: materials and producer rates
//   - catalog.go: uploaded model files
//   - message.go: order chat messages and user notifications
//   - outbox.go: transactional outbox entries
package models
