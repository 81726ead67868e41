package cms

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	appdb "newsroom/app/internal/db"
	"newsroom/app/internal/uploads"
)

type testEnv struct {
	articles   *ArticleRepository
	db         *gorm.DB
	store      *uploads.Store
	memberID   uint
	categoryID uint
}

func setupArticles(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	gormDB, err := appdb.Open(appdb.Options{Path: filepath.Join(dir, "cms.db")})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := appdb.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	store, err := uploads.NewStore(filepath.Join(dir, "uploads"), logger)
	if err != nil {
		t.Fatalf("uploads.NewStore returned error: %v", err)
	}

	repo, err := NewArticleRepository(gormDB, store, logger)
	if err != nil {
		t.Fatalf("NewArticleRepository returned error: %v", err)
	}

	member := &Member{Forename: "Ivy", Surname: "Stone", Joined: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	if err := gormDB.Create(member).Error; err != nil {
		t.Fatalf("seeding member failed: %v", err)
	}

	category := &Category{Name: "Travel", Description: "Places worth the trip", Navigation: true}
	if err := gormDB.Create(category).Error; err != nil {
		t.Fatalf("seeding category failed: %v", err)
	}

	return &testEnv{
		articles:   repo,
		db:         gormDB,
		store:      store,
		memberID:   member.ID,
		categoryID: category.ID,
	}
}

func (env *testEnv) input(title string, published bool) ArticleInput {
	return ArticleInput{
		Title:      title,
		Summary:    "Summary of " + title,
		Content:    "Content of " + title,
		CategoryID: env.categoryID,
		MemberID:   env.memberID,
		Published:  published,
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test image failed: %v", err)
	}
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encoding test image failed: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("closing test image failed: %v", err)
	}
}

func (env *testEnv) uploadFixture(t *testing.T) *ImageUpload {
	t.Helper()

	source := filepath.Join(t.TempDir(), "Harbour View.png")
	writeTestPNG(t, source, 1400, 900)

	return &ImageUpload{
		SourcePath:   source,
		OriginalName: "Harbour View.png",
		Alt:          "A harbour at dusk",
	}
}

func (env *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(env.store.Dir())
	if err != nil {
		t.Fatalf("reading uploads dir failed: %v", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	input := env.input("Lisbon on foot", true)
	article, err := env.articles.Create(ctx, input, nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if article.ID == 0 {
		t.Fatal("expected a generated article id")
	}

	detail, err := env.articles.Get(ctx, article.ID, true)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail == nil {
		t.Fatal("expected article to be found")
	}

	if detail.Title != input.Title || detail.Summary != input.Summary || detail.Content != input.Content {
		t.Fatalf("stored fields differ from input: %#v", detail)
	}
	if detail.CategoryID != input.CategoryID || detail.MemberID != input.MemberID {
		t.Fatalf("stored references differ from input: %#v", detail)
	}
	if !detail.Published {
		t.Fatal("expected article to be published")
	}
	if detail.Category != "Travel" {
		t.Fatalf("expected joined category name, got %q", detail.Category)
	}
	if detail.Author != "Ivy Stone" {
		t.Fatalf("expected joined author name, got %q", detail.Author)
	}
	if detail.Created.IsZero() {
		t.Fatal("expected created timestamp to be set")
	}
	if detail.ImageID != nil || detail.ImageFile != nil {
		t.Fatalf("expected no image, got %#v", detail)
	}
}

func TestGetPublishedOnlyTreatsDraftAsNotFound(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.input("Draft piece", false), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	detail, err := env.articles.Get(ctx, article.ID, true)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail != nil {
		t.Fatal("expected draft to be hidden from published-only reads")
	}

	detail, err = env.articles.Get(ctx, article.ID, false)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail == nil {
		t.Fatal("expected draft to be visible to admin reads")
	}
}

func TestGetMissingArticleReturnsNil(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)

	detail, err := env.articles.Get(context.Background(), 12345, false)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail != nil {
		t.Fatalf("expected nil for missing article, got %#v", detail)
	}
}

func TestCreateDuplicateTitleIsRecoverable(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	if _, err := env.articles.Create(ctx, env.input("Same title", true), nil); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}

	_, err := env.articles.Create(ctx, env.input("Same title", true), nil)
	if !eris.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected ErrDuplicateTitle, got %v", err)
	}

	var count int64
	if err := env.db.Model(&Article{}).Count(&count).Error; err != nil {
		t.Fatalf("counting articles failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one article row, got %d", count)
	}
}

func TestCreateWithUploadPersistsImage(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()
	upload := env.uploadFixture(t)

	article, err := env.articles.Create(ctx, env.input("Illustrated", true), upload)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if article.ImageID == nil {
		t.Fatal("expected article to reference the new image")
	}

	detail, err := env.articles.Get(ctx, article.ID, true)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.ImageFile == nil || detail.ImageAlt == nil {
		t.Fatalf("expected image metadata on detail, got %#v", detail)
	}
	if *detail.ImageAlt != upload.Alt {
		t.Fatalf("expected alt %q, got %q", upload.Alt, *detail.ImageAlt)
	}

	stored, err := os.Open(env.store.Path(*detail.ImageFile))
	if err != nil {
		t.Fatalf("opening stored image failed: %v", err)
	}
	defer stored.Close()

	img, _, err := image.Decode(stored)
	if err != nil {
		t.Fatalf("decoding stored image failed: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 1200 || bounds.Dy() != 700 {
		t.Fatalf("expected 1200x700 crop, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestCreateFailureRemovesWrittenUpload(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	if _, err := env.articles.Create(ctx, env.input("Taken", true), nil); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}

	_, err := env.articles.Create(ctx, env.input("Taken", true), env.uploadFixture(t))
	if !eris.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected ErrDuplicateTitle, got %v", err)
	}

	if files := env.storedFiles(t); len(files) != 0 {
		t.Fatalf("expected uploads dir to be empty after rollback, got %v", files)
	}

	var imageCount int64
	if err := env.db.Model(&Image{}).Count(&imageCount).Error; err != nil {
		t.Fatalf("counting images failed: %v", err)
	}
	if imageCount != 0 {
		t.Fatalf("expected image insert to roll back, got %d rows", imageCount)
	}
}

func TestListOrderFiltersAndLimit(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	other := &Category{Name: "Food", Description: "Meals"}
	if err := env.db.Create(other).Error; err != nil {
		t.Fatalf("seeding category failed: %v", err)
	}

	first, err := env.articles.Create(ctx, env.input("First", true), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, err := env.articles.Create(ctx, env.input("Second", true), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	draftInput := env.input("Third draft", false)
	draftInput.CategoryID = other.ID
	if _, err := env.articles.Create(ctx, draftInput, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	published, err := env.articles.List(ctx, ListOptions{PublishedOnly: true})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 published articles, got %d", len(published))
	}
	if published[0].ID != second.ID || published[1].ID != first.ID {
		t.Fatalf("expected most recent first, got %d then %d", published[0].ID, published[1].ID)
	}

	all, err := env.articles.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 articles without the published filter, got %d", len(all))
	}

	byCategory, err := env.articles.List(ctx, ListOptions{CategoryID: &other.ID})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].Title != "Third draft" {
		t.Fatalf("unexpected category filter result: %#v", byCategory)
	}

	limited, err := env.articles.List(ctx, ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d results", len(limited))
	}
}

func TestSearchAppliesPublishedToWholeMatchGroup(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	matching := []ArticleInput{
		env.input("Cat cafes of Porto", true),
		env.input("Street food", true),
		env.input("Old town walks", true),
		env.input("Harbour lights", true),
		env.input("Night markets", true),
	}
	matching[1].Summary = "Where the cat people eat"
	matching[2].Content = "A long stroll with a cat at every corner"
	matching[3].Summary = "CAT boats in the marina"
	matching[4].Content = "Stalls, lanterns and one sleepy cat"

	ids := make([]uint, 0, len(matching))
	for _, input := range matching {
		article, err := env.articles.Create(ctx, input, nil)
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		ids = append(ids, article.ID)
	}

	// Matches the term but unpublished: must stay invisible to search.
	draft := env.input("Cat draft", false)
	if _, err := env.articles.Create(ctx, draft, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Published but no match anywhere.
	if _, err := env.articles.Create(ctx, env.input("Dog parks", true), nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	count, err := env.articles.SearchCount(ctx, "cat")
	if err != nil {
		t.Fatalf("SearchCount returned error: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 matches, got %d", count)
	}

	firstPage, err := env.articles.Search(ctx, "cat", 3, 0)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(firstPage) != 3 {
		t.Fatalf("expected 3 results on the first page, got %d", len(firstPage))
	}
	if firstPage[0].ID != ids[4] || firstPage[1].ID != ids[3] || firstPage[2].ID != ids[2] {
		t.Fatalf("expected newest matches first, got %v", firstPage)
	}

	secondPage, err := env.articles.Search(ctx, "cat", 3, 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(secondPage) != 2 {
		t.Fatalf("expected 2 results on the second page, got %d", len(secondPage))
	}
	if secondPage[0].ID != ids[1] || secondPage[1].ID != ids[0] {
		t.Fatalf("unexpected second page order: %v", secondPage)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.input("Original", false), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	revised := env.input("Revised", true)
	for i := 0; i < 2; i++ {
		if err := env.articles.Update(ctx, article.ID, revised, nil); err != nil {
			t.Fatalf("Update %d returned error: %v", i+1, err)
		}
	}

	detail, err := env.articles.Get(ctx, article.ID, false)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.Title != "Revised" || !detail.Published {
		t.Fatalf("expected revised state, got %#v", detail)
	}

	var count int64
	if err := env.db.Model(&Article{}).Count(&count).Error; err != nil {
		t.Fatalf("counting articles failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row after repeated updates, got %d", count)
	}
}

func TestUpdateDuplicateTitleAndMissingArticle(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	if _, err := env.articles.Create(ctx, env.input("Kept", true), nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, err := env.articles.Create(ctx, env.input("Renamed", true), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	err = env.articles.Update(ctx, second.ID, env.input("Kept", true), nil)
	if !eris.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected ErrDuplicateTitle, got %v", err)
	}

	err = env.articles.Update(ctx, 9999, env.input("Ghost", true), nil)
	if !eris.Is(err, ErrArticleNotFound) {
		t.Fatalf("expected ErrArticleNotFound, got %v", err)
	}
}

func TestUpdateFailureRemovesWrittenUpload(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	if _, err := env.articles.Create(ctx, env.input("Kept", true), nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, err := env.articles.Create(ctx, env.input("Renamed", true), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	err = env.articles.Update(ctx, second.ID, env.input("Kept", true), env.uploadFixture(t))
	if !eris.Is(err, ErrDuplicateTitle) {
		t.Fatalf("expected ErrDuplicateTitle, got %v", err)
	}

	if files := env.storedFiles(t); len(files) != 0 {
		t.Fatalf("expected uploads dir to be empty after rollback, got %v", files)
	}
}

func TestDeleteCascadesImageCleanup(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.input("Illustrated", true), env.uploadFixture(t))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := env.articles.Delete(ctx, article.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	detail, err := env.articles.Get(ctx, article.ID, false)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail != nil {
		t.Fatal("expected article to be gone")
	}

	var imageCount int64
	if err := env.db.Model(&Image{}).Count(&imageCount).Error; err != nil {
		t.Fatalf("counting images failed: %v", err)
	}
	if imageCount != 0 {
		t.Fatalf("expected image row to be deleted, got %d rows", imageCount)
	}

	if files := env.storedFiles(t); len(files) != 0 {
		t.Fatalf("expected backing file to be removed, got %v", files)
	}

	err = env.articles.Delete(ctx, article.ID)
	if !eris.Is(err, ErrArticleNotFound) {
		t.Fatalf("expected ErrArticleNotFound on repeated delete, got %v", err)
	}
}

func TestDeleteImageClearsReferenceRowAndFile(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.input("Illustrated", true), env.uploadFixture(t))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := env.articles.DeleteImage(ctx, article.ID); err != nil {
		t.Fatalf("DeleteImage returned error: %v", err)
	}

	detail, err := env.articles.Get(ctx, article.ID, false)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail == nil {
		t.Fatal("expected article to survive image deletion")
	}
	if detail.ImageID != nil || detail.ImageFile != nil {
		t.Fatalf("expected image reference to be cleared, got %#v", detail)
	}

	var imageCount int64
	if err := env.db.Model(&Image{}).Count(&imageCount).Error; err != nil {
		t.Fatalf("counting images failed: %v", err)
	}
	if imageCount != 0 {
		t.Fatalf("expected image row to be deleted, got %d rows", imageCount)
	}

	if files := env.storedFiles(t); len(files) != 0 {
		t.Fatalf("expected backing file to be removed, got %v", files)
	}

	// An article without an image is a no-op, not an error.
	if err := env.articles.DeleteImage(ctx, article.ID); err != nil {
		t.Fatalf("DeleteImage on bare article returned error: %v", err)
	}
}

func TestUpdateAltRewritesTextOnly(t *testing.T) {
	t.Parallel()

	env := setupArticles(t)
	ctx := context.Background()

	article, err := env.articles.Create(ctx, env.input("Illustrated", true), env.uploadFixture(t))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := env.articles.UpdateAlt(ctx, *article.ImageID, "A harbour at dawn"); err != nil {
		t.Fatalf("UpdateAlt returned error: %v", err)
	}

	detail, err := env.articles.Get(ctx, article.ID, false)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.ImageAlt == nil || *detail.ImageAlt != "A harbour at dawn" {
		t.Fatalf("expected updated alt text, got %#v", detail.ImageAlt)
	}

	if files := env.storedFiles(t); len(files) != 1 {
		t.Fatalf("expected the stored file to be untouched, got %v", files)
	}

	err = env.articles.UpdateAlt(ctx, 9999, "ghost")
	if !eris.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
}
