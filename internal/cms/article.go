package cms

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"newsroom/app/internal/uploads"
)

// Recoverable persistence conflicts. Callers check these with errors.Is and
// present a corrective message; any other repository error is fatal.
var (
	ErrDuplicateTitle  = eris.New("article title already exists")
	ErrArticleNotFound = eris.New("article not found")
	ErrImageNotFound   = eris.New("image not found")
)

const defaultListLimit = 1000

// ArticleInput represents the validated fields accepted when creating or
// updating an article. Length and reference validation happens at the
// presentation boundary; the repository relies on database constraints only.
type ArticleInput struct {
	Title      string
	Summary    string
	Content    string
	CategoryID uint
	MemberID   uint
	Published  bool
}

// ImageUpload describes a pending upload: a temporary file already on disk
// plus the client filename and accessibility text.
type ImageUpload struct {
	SourcePath   string
	OriginalName string
	Alt          string
}

// ListOptions describes filters for listing articles. Nil filters mean "any".
type ListOptions struct {
	PublishedOnly bool
	CategoryID    *uint
	MemberID      *uint
	Limit         int
}

// ArticleRepository persists articles and composes the upload store so that
// the on-disk file, the image row and the article's image reference stay
// mutually consistent across every transition.
type ArticleRepository struct {
	db     *gorm.DB
	images *uploads.Store
	logger *logrus.Logger
}

// NewArticleRepository constructs a Gorm-backed article repository.
func NewArticleRepository(db *gorm.DB, images *uploads.Store, logger *logrus.Logger) (*ArticleRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if images == nil {
		return nil, eris.New("upload store is required")
	}

	return &ArticleRepository{db: db, images: images, logger: logger}, nil
}

const articleDetailColumns = `article.id, article.title, article.summary, article.content,
article.created, article.category_id, article.member_id, article.published,
category.name AS category,
member.forename || ' ' || member.surname AS author,
image.id AS image_id, image.file AS image_file, image.alt AS image_alt`

const articleSummaryColumns = `article.id, article.title, article.summary,
article.created, article.category_id, article.member_id, article.published,
category.name AS category,
member.forename || ' ' || member.surname AS author,
image.file AS image_file, image.alt AS image_alt`

func (r *ArticleRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&Article{}).
		Joins("JOIN category ON article.category_id = category.id").
		Joins("JOIN member ON article.member_id = member.id").
		Joins("LEFT JOIN image ON article.image_id = image.id")
}

// Get returns the article joined with category, author and image metadata, or
// nil when no matching row exists. With publishedOnly set, unpublished
// articles are treated as not found.
func (r *ArticleRepository) Get(ctx context.Context, id uint, publishedOnly bool) (*ArticleDetail, error) {
	query := r.joined(ctx).Select(articleDetailColumns).Where("article.id = ?", id)
	if publishedOnly {
		query = query.Where("article.published = ?", true)
	}

	var detail ArticleDetail
	if err := query.Take(&detail).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"article_id": id}, err, "fetching article")
		return nil, eris.Wrapf(err, "fetching article %d", id)
	}

	return &detail, nil
}

// List returns article summaries ordered most recent first, optionally
// filtered by category and member.
func (r *ArticleRepository) List(ctx context.Context, opts ListOptions) ([]ArticleSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := r.joined(ctx).Select(articleSummaryColumns)
	if opts.PublishedOnly {
		query = query.Where("article.published = ?", true)
	}
	if opts.CategoryID != nil {
		query = query.Where("article.category_id = ?", *opts.CategoryID)
	}
	if opts.MemberID != nil {
		query = query.Where("article.member_id = ?", *opts.MemberID)
	}

	var summaries []ArticleSummary
	if err := query.Order("article.id DESC").Limit(limit).Find(&summaries).Error; err != nil {
		r.logError(nil, err, "listing articles")
		return nil, eris.Wrap(err, "listing articles")
	}

	return summaries, nil
}

// searchScope restricts a query to published articles whose title, summary or
// content contains term. The published condition applies to the whole OR
// group.
func (r *ArticleRepository) searchScope(query *gorm.DB, term string) *gorm.DB {
	like := "%" + term + "%"
	return query.
		Where("article.published = ?", true).
		Where(r.db.
			Where("article.title LIKE ?", like).
			Or("article.summary LIKE ?", like).
			Or("article.content LIKE ?", like))
}

// SearchCount counts published articles matching term.
func (r *ArticleRepository) SearchCount(ctx context.Context, term string) (int64, error) {
	var count int64
	query := r.searchScope(r.db.WithContext(ctx).Model(&Article{}), term)
	if err := query.Count(&count).Error; err != nil {
		r.logError(logrus.Fields{"term": term}, err, "counting search results")
		return 0, eris.Wrapf(err, "counting search results for %q", term)
	}

	return count, nil
}

// Search returns one page of published articles matching term, most recent
// first.
func (r *ArticleRepository) Search(ctx context.Context, term string, pageSize, offset int) ([]ArticleSummary, error) {
	if pageSize <= 0 {
		pageSize = 3
	}
	if offset < 0 {
		offset = 0
	}

	query := r.searchScope(r.joined(ctx).Select(articleSummaryColumns), term)

	var summaries []ArticleSummary
	if err := query.Order("article.id DESC").Limit(pageSize).Offset(offset).Find(&summaries).Error; err != nil {
		r.logError(logrus.Fields{"term": term}, err, "searching articles")
		return nil, eris.Wrapf(err, "searching articles for %q", term)
	}

	return summaries, nil
}

// Create inserts an article, processing the upload first when one is present.
// The image file is written before the transaction and removed again if the
// transaction fails, so a rolled-back insert leaves no orphaned upload.
func (r *ArticleRepository) Create(ctx context.Context, input ArticleInput, upload *ImageUpload) (*Article, error) {
	filename, err := r.saveUpload(upload)
	if err != nil {
		return nil, err
	}

	article := &Article{
		Title:      input.Title,
		Summary:    input.Summary,
		Content:    input.Content,
		CategoryID: input.CategoryID,
		MemberID:   input.MemberID,
		Published:  input.Published,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if filename != "" {
			img := &Image{File: filename, Alt: upload.Alt}
			if err := tx.Create(img).Error; err != nil {
				return err
			}
			article.ImageID = &img.ID
		}
		return tx.Create(article).Error
	})
	if err != nil {
		r.images.Discard(filename)
		if eris.Is(err, gorm.ErrDuplicatedKey) {
			return nil, eris.Wrap(ErrDuplicateTitle, "creating article")
		}
		r.logError(logrus.Fields{"title": input.Title}, err, "creating article")
		return nil, eris.Wrap(err, "creating article")
	}

	return article, nil
}

// Update rewrites the article row by id, inserting a new image row first when
// an upload is present. An existing image is left untouched; replacing or
// removing it is DeleteImage's job. Cleanup on failure matches Create.
func (r *ArticleRepository) Update(ctx context.Context, id uint, input ArticleInput, upload *ImageUpload) error {
	filename, err := r.saveUpload(upload)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns := map[string]any{
			"title":       input.Title,
			"summary":     input.Summary,
			"content":     input.Content,
			"category_id": input.CategoryID,
			"member_id":   input.MemberID,
			"published":   input.Published,
		}

		if filename != "" {
			img := &Image{File: filename, Alt: upload.Alt}
			if err := tx.Create(img).Error; err != nil {
				return err
			}
			columns["image_id"] = img.ID
		}

		result := tx.Model(&Article{}).Where("id = ?", id).Updates(columns)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		r.images.Discard(filename)
		switch {
		case eris.Is(err, gorm.ErrDuplicatedKey):
			return eris.Wrapf(ErrDuplicateTitle, "updating article %d", id)
		case eris.Is(err, gorm.ErrRecordNotFound):
			return eris.Wrapf(ErrArticleNotFound, "updating article %d", id)
		}
		r.logError(logrus.Fields{"article_id": id}, err, "updating article")
		return eris.Wrapf(err, "updating article %d", id)
	}

	return nil
}

// Delete removes the article and cascades the image cleanup: the image
// reference is cleared, the image row deleted and the backing file removed.
// The file removal happens after the transaction commits, best effort.
func (r *ArticleRepository) Delete(ctx context.Context, id uint) error {
	var file string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var article Article
		if err := tx.Take(&article, id).Error; err != nil {
			return err
		}

		if article.ImageID != nil {
			imageFile, err := r.detachImage(tx, article.ID, *article.ImageID)
			if err != nil {
				return err
			}
			file = imageFile
		}

		return tx.Delete(&Article{}, id).Error
	})
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return eris.Wrapf(ErrArticleNotFound, "deleting article %d", id)
		}
		r.logError(logrus.Fields{"article_id": id}, err, "deleting article")
		return eris.Wrapf(err, "deleting article %d", id)
	}

	r.images.Discard(file)
	return nil
}

// DeleteImage removes the article's image: the foreign key is cleared, the
// image row deleted and the file removed from the uploads directory. An
// article without an image is a no-op.
func (r *ArticleRepository) DeleteImage(ctx context.Context, articleID uint) error {
	var file string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var article Article
		if err := tx.Take(&article, articleID).Error; err != nil {
			return err
		}

		if article.ImageID == nil {
			return nil
		}

		imageFile, err := r.detachImage(tx, article.ID, *article.ImageID)
		if err != nil {
			return err
		}
		file = imageFile
		return nil
	})
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return eris.Wrapf(ErrArticleNotFound, "deleting image of article %d", articleID)
		}
		r.logError(logrus.Fields{"article_id": articleID}, err, "deleting article image")
		return eris.Wrapf(err, "deleting image of article %d", articleID)
	}

	r.images.Discard(file)
	return nil
}

// detachImage clears the article's image reference and deletes the image row.
// The reference must be cleared first or the foreign key would reject the
// delete. Returns the stored filename for removal after commit.
func (r *ArticleRepository) detachImage(tx *gorm.DB, articleID, imageID uint) (string, error) {
	var img Image
	if err := tx.Take(&img, imageID).Error; err != nil {
		return "", err
	}

	if err := tx.Model(&Article{}).Where("id = ?", articleID).Update("image_id", nil).Error; err != nil {
		return "", err
	}

	if err := tx.Delete(&Image{}, imageID).Error; err != nil {
		return "", err
	}

	return img.File, nil
}

// UpdateAlt rewrites the accessibility text of an image without touching the
// file.
func (r *ArticleRepository) UpdateAlt(ctx context.Context, imageID uint, alt string) error {
	result := r.db.WithContext(ctx).Model(&Image{}).Where("id = ?", imageID).Update("alt", alt)
	if result.Error != nil {
		r.logError(logrus.Fields{"image_id": imageID}, result.Error, "updating image alt text")
		return eris.Wrapf(result.Error, "updating alt text of image %d", imageID)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrImageNotFound, "updating alt text of image %d", imageID)
	}

	return nil
}

func (r *ArticleRepository) saveUpload(upload *ImageUpload) (string, error) {
	if upload == nil {
		return "", nil
	}

	name, err := r.images.Save(upload.SourcePath, upload.OriginalName)
	if err != nil {
		r.logError(logrus.Fields{"upload": upload.OriginalName}, err, "processing article image")
		return "", eris.Wrap(err, "processing article image")
	}

	return name, nil
}

func (r *ArticleRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
