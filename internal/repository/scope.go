package repository

import (
	"fmt"

	"github.com/noesis-ai/noesis/internal/domain"
)

// scopePredicate renders the conjunctive visibility filter for a query
// scope. An item at level L is visible to a query at level L or deeper,
// provided every field more specific than L on the item is null: deeper
// fields bound to empty query values match only NULL columns, so isolation
// inherits downward and never leaks upward.
func scopePredicate(scope domain.Scope, argOffset int) (string, []any) {
	clause := fmt.Sprintf(
		`org_id = $%d
		 AND (product_id IS NULL OR product_id = $%d)
		 AND (client_id IS NULL OR client_id = $%d)
		 AND (engagement_id IS NULL OR engagement_id = $%d)`,
		argOffset, argOffset+1, argOffset+2, argOffset+3,
	)
	args := []any{
		scope.OrgID,
		nullableString(scope.ProductID),
		nullableString(scope.ClientID),
		nullableString(scope.EngagementID),
	}
	return clause, args
}
