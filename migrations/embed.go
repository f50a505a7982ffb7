// Package migrations содержит SQL-миграции схемы движка.
//
// Файлы встраиваются в бинарник и применяются cmd/engage-migrate
// через golang-migrate (источник iofs).
package migrations

import "embed"

// FS — встроенные файлы миграций.
//
//go:embed *.sql
var FS embed.FS
