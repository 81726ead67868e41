package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"

	"newsroom/app/internal/cms"
)

const categoryInUseMessage = "Category contains articles that must be moved or deleted before you can delete it"

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type adminCategoryInput struct {
	Body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Navigation  bool   `json:"navigation,omitempty"`
	}
}

type adminCategoryUpdateInput struct {
	ID   uint `path:"id"`
	Body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Navigation  bool   `json:"navigation,omitempty"`
	}
}

type idInput struct {
	ID uint `path:"id"`
}

type categoryCreatedOutput struct {
	Body struct {
		ID uint `json:"id"`
	}
}

type adminCategoryListOutput struct {
	Body struct {
		Categories []cms.Category `json:"categories"`
		Total      int64          `json:"total"`
	}
}

type adminAltInput struct {
	ID   uint `path:"id"`
	Body struct {
		Alt string `json:"alt"`
	}
}

func (s *Server) registerAdminRoutes() {
	huma.Get(s.api, "/admin/articles", s.adminListArticlesHandler, func(op *huma.Operation) {
		op.Summary = "List all articles, drafts included"
	})
	huma.Get(s.api, "/admin/articles/{id}", s.adminGetArticleHandler, func(op *huma.Operation) {
		op.Summary = "Fetch any article"
	})
	huma.Delete(s.api, "/admin/articles/{id}", s.adminDeleteArticleHandler, func(op *huma.Operation) {
		op.Summary = "Delete an article and its image"
	})
	huma.Delete(s.api, "/admin/articles/{id}/image", s.adminDeleteImageHandler, func(op *huma.Operation) {
		op.Summary = "Delete an article's image"
	})
	huma.Put(s.api, "/admin/images/{id}/alt", s.adminUpdateAltHandler, func(op *huma.Operation) {
		op.Summary = "Update image alt text"
	})

	huma.Get(s.api, "/admin/categories", s.adminListCategoriesHandler, func(op *huma.Operation) {
		op.Summary = "List categories with totals"
	})
	huma.Post(s.api, "/admin/categories", s.adminCreateCategoryHandler, func(op *huma.Operation) {
		op.Summary = "Create a category"
		op.DefaultStatus = 201
	})
	huma.Put(s.api, "/admin/categories/{id}", s.adminUpdateCategoryHandler, func(op *huma.Operation) {
		op.Summary = "Update a category"
	})
	huma.Delete(s.api, "/admin/categories/{id}", s.adminDeleteCategoryHandler, func(op *huma.Operation) {
		op.Summary = "Delete a category"
	})
}

func (s *Server) adminListArticlesHandler(ctx context.Context, input *articleListInput) (*articleListOutput, error) {
	opts := cms.ListOptions{Limit: input.Limit}
	if input.Category != 0 {
		category := input.Category
		opts.CategoryID = &category
	}
	if input.Member != 0 {
		member := input.Member
		opts.MemberID = &member
	}

	articles, err := s.articles.List(ctx, opts)
	if err != nil {
		s.recordError(ctx, err, "listing articles for admin", nil)
		return nil, huma.Error500InternalServerError("We couldn't load articles right now.")
	}

	out := &articleListOutput{}
	out.Body.Articles = articles
	return out, nil
}

func (s *Server) adminGetArticleHandler(ctx context.Context, input *articleGetInput) (*articleGetOutput, error) {
	article, err := s.articles.Get(ctx, input.ID, false)
	if err != nil {
		s.recordError(ctx, err, "fetching article for admin", nil)
		return nil, huma.Error500InternalServerError("We couldn't load the article right now.")
	}
	if article == nil {
		return nil, huma.Error404NotFound("Article not found")
	}

	return &articleGetOutput{Body: *article}, nil
}

func (s *Server) adminDeleteArticleHandler(ctx context.Context, input *idInput) (*statusOutput, error) {
	if err := s.articles.Delete(ctx, input.ID); err != nil {
		if eris.Is(err, cms.ErrArticleNotFound) {
			return nil, huma.Error404NotFound("Article not found")
		}
		s.recordError(ctx, err, "deleting article", nil)
		return nil, huma.Error500InternalServerError("We couldn't delete the article right now.")
	}

	out := &statusOutput{}
	out.Body.Status = "deleted"
	return out, nil
}

func (s *Server) adminDeleteImageHandler(ctx context.Context, input *idInput) (*statusOutput, error) {
	if err := s.articles.DeleteImage(ctx, input.ID); err != nil {
		if eris.Is(err, cms.ErrArticleNotFound) {
			return nil, huma.Error404NotFound("Article not found")
		}
		s.recordError(ctx, err, "deleting article image", nil)
		return nil, huma.Error500InternalServerError("We couldn't delete the image right now.")
	}

	out := &statusOutput{}
	out.Body.Status = "deleted"
	return out, nil
}

func (s *Server) adminUpdateAltHandler(ctx context.Context, input *adminAltInput) (*statusOutput, error) {
	if !isText(input.Body.Alt, 1, altMax) {
		return nil, huma.Error422UnprocessableEntity("Alt text must be 1-254 characters")
	}

	if err := s.articles.UpdateAlt(ctx, input.ID, input.Body.Alt); err != nil {
		if eris.Is(err, cms.ErrImageNotFound) {
			return nil, huma.Error404NotFound("Image not found")
		}
		s.recordError(ctx, err, "updating alt text", nil)
		return nil, huma.Error500InternalServerError("We couldn't update the alt text right now.")
	}

	out := &statusOutput{}
	out.Body.Status = "saved"
	return out, nil
}

func (s *Server) adminListCategoriesHandler(ctx context.Context, _ *struct{}) (*adminCategoryListOutput, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing categories for admin", nil)
		return nil, huma.Error500InternalServerError("We couldn't load categories right now.")
	}

	total, err := s.categories.Count(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting categories", nil)
		return nil, huma.Error500InternalServerError("We couldn't load categories right now.")
	}

	out := &adminCategoryListOutput{}
	out.Body.Categories = categories
	out.Body.Total = total
	return out, nil
}

func (s *Server) adminCreateCategoryHandler(ctx context.Context, input *adminCategoryInput) (*categoryCreatedOutput, error) {
	if fieldErrors := validateCategoryInput(input.Body.Name, input.Body.Description); len(fieldErrors) > 0 {
		return nil, huma.Error422UnprocessableEntity("Please correct the errors", fieldErrorDetails(fieldErrors)...)
	}

	category := &cms.Category{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Navigation:  input.Body.Navigation,
	}

	if err := s.categories.Create(ctx, category); err != nil {
		if eris.Is(err, cms.ErrDuplicateName) {
			return nil, huma.Error409Conflict("Category name already exists")
		}
		s.recordError(ctx, err, "creating category", nil)
		return nil, huma.Error500InternalServerError("We couldn't create the category right now.")
	}

	out := &categoryCreatedOutput{}
	out.Body.ID = category.ID
	return out, nil
}

func (s *Server) adminUpdateCategoryHandler(ctx context.Context, input *adminCategoryUpdateInput) (*statusOutput, error) {
	if fieldErrors := validateCategoryInput(input.Body.Name, input.Body.Description); len(fieldErrors) > 0 {
		return nil, huma.Error422UnprocessableEntity("Please correct the errors", fieldErrorDetails(fieldErrors)...)
	}

	category := &cms.Category{
		ID:          input.ID,
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Navigation:  input.Body.Navigation,
	}

	if err := s.categories.Update(ctx, category); err != nil {
		switch {
		case eris.Is(err, cms.ErrDuplicateName):
			return nil, huma.Error409Conflict("Category name already exists")
		case eris.Is(err, cms.ErrCategoryNotFound):
			return nil, huma.Error404NotFound("Category not found")
		}
		s.recordError(ctx, err, "updating category", nil)
		return nil, huma.Error500InternalServerError("We couldn't update the category right now.")
	}

	out := &statusOutput{}
	out.Body.Status = "saved"
	return out, nil
}

func (s *Server) adminDeleteCategoryHandler(ctx context.Context, input *idInput) (*statusOutput, error) {
	if err := s.categories.Delete(ctx, input.ID); err != nil {
		switch {
		case eris.Is(err, cms.ErrCategoryInUse):
			return nil, huma.Error409Conflict(categoryInUseMessage)
		case eris.Is(err, cms.ErrCategoryNotFound):
			return nil, huma.Error404NotFound("Category not found")
		}
		s.recordError(ctx, err, "deleting category", nil)
		return nil, huma.Error500InternalServerError("We couldn't delete the category right now.")
	}

	out := &statusOutput{}
	out.Body.Status = "deleted"
	return out, nil
}

func fieldErrorDetails(fieldErrors map[string]string) []error {
	details := make([]error, 0, len(fieldErrors))
	for field, message := range fieldErrors {
		details = append(details, &huma.ErrorDetail{
			Message:  message,
			Location: "body." + field,
		})
	}
	return details
}
