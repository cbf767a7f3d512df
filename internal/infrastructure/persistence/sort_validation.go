package persistence

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// ValidateSortOrder normalizes a sort direction to ASC or DESC, defaulting to DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField.
// Column names are interpolated into ORDER BY, so nothing outside the
// whitelist may pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// SyncRecordSortFields contains allowed sort fields for sync records
var SyncRecordSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"canonical_id":   true,
	"status":         true,
	"attempts":       true,
	"last_synced_at": true,
}

// ProductSortFields contains allowed sort fields for canonical products
var ProductSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"title":        true,
	"vendor":       true,
	"product_type": true,
	"status":       true,
	"price":        true,
}

// paginate is a gorm scope applying the filter's order and page. The id
// tiebreaker keeps pages stable when the sort column has duplicates.
func paginate(filter shared.Filter, allowed map[string]bool) func(*gorm.DB) *gorm.DB {
	orderBy := ValidateSortField(filter.OrderBy, allowed, "updated_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
			Order("id ASC").
			Limit(filter.Limit()).
			Offset(filter.Offset())
	}
}
