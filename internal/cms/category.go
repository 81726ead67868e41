package cms

import (
	"context"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrDuplicateName    = eris.New("category name already exists")
	ErrCategoryInUse    = eris.New("category is referenced by articles")
	ErrCategoryNotFound = eris.New("category not found")
)

// CategoryRepository persists article categories.
type CategoryRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewCategoryRepository constructs a Gorm-backed category repository.
func NewCategoryRepository(db *gorm.DB, logger *logrus.Logger) (*CategoryRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &CategoryRepository{db: db, logger: logger}, nil
}

// Get returns the category or nil when not found.
func (r *CategoryRepository) Get(ctx context.Context, id uint) (*Category, error) {
	var category Category
	if err := r.db.WithContext(ctx).Take(&category, id).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"category_id": id}, err, "fetching category")
		return nil, eris.Wrapf(err, "fetching category %d", id)
	}

	return &category, nil
}

// List returns every category in insertion order.
func (r *CategoryRepository) List(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		r.logError(nil, err, "listing categories")
		return nil, eris.Wrap(err, "listing categories")
	}

	return categories, nil
}

// Count returns the total number of categories.
func (r *CategoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Category{}).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting categories")
		return 0, eris.Wrap(err, "counting categories")
	}

	return count, nil
}

// Create inserts a category. A name collision is reported as
// ErrDuplicateName; anything else propagates as fatal.
func (r *CategoryRepository) Create(ctx context.Context, category *Category) error {
	if category == nil {
		return eris.New("category is nil")
	}

	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		if eris.Is(err, gorm.ErrDuplicatedKey) {
			return eris.Wrap(ErrDuplicateName, "creating category")
		}
		r.logError(logrus.Fields{"name": category.Name}, err, "creating category")
		return eris.Wrap(err, "creating category")
	}

	return nil
}

// Update rewrites the category row by id, with the same duplicate-name
// translation as Create.
func (r *CategoryRepository) Update(ctx context.Context, category *Category) error {
	if category == nil {
		return eris.New("category is nil")
	}

	result := r.db.WithContext(ctx).Model(&Category{}).Where("id = ?", category.ID).Updates(map[string]any{
		"name":        category.Name,
		"description": category.Description,
		"navigation":  category.Navigation,
	})
	if result.Error != nil {
		if eris.Is(result.Error, gorm.ErrDuplicatedKey) {
			return eris.Wrapf(ErrDuplicateName, "updating category %d", category.ID)
		}
		r.logError(logrus.Fields{"category_id": category.ID}, result.Error, "updating category")
		return eris.Wrapf(result.Error, "updating category %d", category.ID)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrCategoryNotFound, "updating category %d", category.ID)
	}

	return nil
}

// Delete removes the category. A category still referenced by articles is
// protected by the foreign key and reported as ErrCategoryInUse.
func (r *CategoryRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&Category{}, id)
	if result.Error != nil {
		if isForeignKeyViolation(result.Error) {
			return eris.Wrapf(ErrCategoryInUse, "deleting category %d", id)
		}
		r.logError(logrus.Fields{"category_id": id}, result.Error, "deleting category")
		return eris.Wrapf(result.Error, "deleting category %d", id)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrCategoryNotFound, "deleting category %d", id)
	}

	return nil
}

// isForeignKeyViolation recognises a SQLite restrict violation. Gorm's error
// translation only covers the FOREIGNKEY extended code; a parent-side DELETE
// blocked by a RESTRICT action reports SQLITE_CONSTRAINT_TRIGGER instead, so
// the driver error is inspected directly as well.
func isForeignKeyViolation(err error) bool {
	if eris.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintTrigger)
	}

	return false
}

func (r *CategoryRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
