package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
)

func TestValidateSortOrder(t *testing.T) {
	tests := map[string]string{
		"":         "DESC",
		"asc":      "ASC",
		"  Asc ":   "ASC",
		"desc":     "DESC",
		"upward":   "DESC",
		"ASC; --":  "DESC",
		"ASC DESC": "DESC",
	}
	for input, want := range tests {
		assert.Equal(t, want, ValidateSortOrder(input), "input %q", input)
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		allowed map[string]bool
		want    string
	}{
		{"whitelisted record field", "last_synced_at", SyncRecordSortFields, "last_synced_at"},
		{"whitelisted product field", "price", ProductSortFields, "price"},
		{"trimmed", "  attempts ", SyncRecordSortFields, "attempts"},
		{"product field on records", "price", SyncRecordSortFields, "updated_at"},
		{"case sensitive", "Status", SyncRecordSortFields, "updated_at"},
		{"empty", "", ProductSortFields, "updated_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSortField(tt.input, tt.allowed, "updated_at"))
		})
	}
}

func TestValidateSortField_RejectsInjection(t *testing.T) {
	payloads := []string{
		"status; DROP TABLE sync_records;--",
		"status' OR '1'='1",
		"status UNION SELECT * FROM products",
		"CASE WHEN 1=1 THEN status ELSE id END",
		"status/**/;DROP TABLE products",
		"status\n; DROP TABLE products",
	}
	for _, payload := range payloads {
		assert.Equal(t, "updated_at", ValidateSortField(payload, SyncRecordSortFields, "updated_at"), payload)
		assert.Equal(t, "DESC", ValidateSortOrder(payload), payload)
	}
}

func TestPaginate(t *testing.T) {
	db := newSQLiteDatabase(t).DB.Session(&gorm.Session{DryRun: true})

	tests := []struct {
		name       string
		filter     shared.Filter
		wantOrder  string
		wantLimit  int
		wantOffset int
	}{
		{
			name:       "requested order and page",
			filter:     shared.Filter{Page: 3, PageSize: 20, OrderBy: "attempts", OrderDir: "asc"},
			wantOrder:  "ORDER BY attempts ASC,id ASC",
			wantLimit:  20,
			wantOffset: 40,
		},
		{
			name:      "defaults for unknown column",
			filter:    shared.Filter{OrderBy: "password"},
			wantOrder: "ORDER BY updated_at DESC,id ASC",
			wantLimit: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []models.SyncRecordModel
			stmt := db.Scopes(paginate(tt.filter, SyncRecordSortFields)).Find(&rows).Statement
			assert.Contains(t, stmt.SQL.String(), tt.wantOrder)

			limit, ok := stmt.Clauses["LIMIT"].Expression.(clause.Limit)
			require.True(t, ok)
			require.NotNil(t, limit.Limit)
			assert.Equal(t, tt.wantLimit, *limit.Limit)
			assert.Equal(t, tt.wantOffset, limit.Offset)
		})
	}
}
