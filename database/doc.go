// Package database holds the relational schema of the coffee-shop analytics
// store and the Manager used to query and maintain it.
//
// The Manager wraps a gorm connection (postgres in production, sqlite for
// local runs and tests). It implements tool.Querier so the database tool can
// forward agent-authored statements, and it renders the annotated schema that
// SQL-writing agents receive in their prompts.
package database
