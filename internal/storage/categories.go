package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/clarify-app/settle/internal/common"
	"github.com/clarify-app/settle/internal/model"
)

// GetCategoryByName looks up a category definition by any of the given
// names, matched against both the Hebrew and English columns.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, names ...string) (*model.CategoryDefinition, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoryByNameTx(ctx, s.db, names...)
}

func (s *SQLiteStorage) getCategoryByNameTx(ctx context.Context, q queryable, names ...string) (*model.CategoryDefinition, error) {
	if len(names) == 0 {
		return nil, common.NewValidationError("names", "at least one name required")
	}

	placeholders := make([]string, len(names))
	var args []any
	for i, name := range names {
		placeholders[i] = "?"
		args = append(args, name)
	}
	in := strings.Join(placeholders, ", ")
	args = append(args, args...)

	row := q.QueryRowContext(ctx, `
		SELECT id, name, IFNULL(name_en, '')
		FROM category_definitions
		WHERE name IN (`+in+`) OR name_en IN (`+in+`)
		LIMIT 1
	`, args...)

	var category model.CategoryDefinition
	err := row.Scan(&category.ID, &category.Name, &category.NameEn)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category %q: %w", names[0], common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}
