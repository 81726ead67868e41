package http

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"newsroom/app/internal/cms"
)

const searchPageSize = 3

type articleListInput struct {
	Category uint `query:"category" doc:"Only articles in this category"`
	Member   uint `query:"member" doc:"Only articles by this author"`
	Limit    int  `query:"limit" doc:"Maximum number of results"`
}

type articleListOutput struct {
	Body struct {
		Articles []cms.ArticleSummary `json:"articles"`
	}
}

type articleGetInput struct {
	ID uint `path:"id"`
}

type articleGetOutput struct {
	Body cms.ArticleDetail
}

type searchInput struct {
	Query string `query:"q" doc:"Search term"`
	Page  int    `query:"page" doc:"1-based result page"`
}

type searchOutput struct {
	Body struct {
		Term    string               `json:"term"`
		Total   int64                `json:"total"`
		Page    int                  `json:"page"`
		Pages   int                  `json:"pages"`
		Results []cms.ArticleSummary `json:"results"`
	}
}

type categoryListOutput struct {
	Body struct {
		Categories []cms.Category `json:"categories"`
	}
}

type memberListOutput struct {
	Body struct {
		Members []cms.Member `json:"members"`
	}
}

type memberGetInput struct {
	ID uint `path:"id"`
}

type memberGetOutput struct {
	Body cms.Member
}

type healthOutput struct {
	Body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerArticleRoutes() {
	huma.Get(s.api, "/articles", s.listArticlesHandler, func(op *huma.Operation) {
		op.Summary = "List published articles"
	})
	huma.Get(s.api, "/articles/{id}", s.getArticleHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a published article"
	})
}

func (s *Server) registerSearchRoute() {
	huma.Get(s.api, "/search", s.searchHandler, func(op *huma.Operation) {
		op.Summary = "Search published articles"
	})
}

func (s *Server) registerCategoryRoutes() {
	huma.Get(s.api, "/categories", s.listCategoriesHandler, func(op *huma.Operation) {
		op.Summary = "List categories"
	})
}

func (s *Server) registerMemberRoutes() {
	huma.Get(s.api, "/members", s.listMembersHandler, func(op *huma.Operation) {
		op.Summary = "List authors"
	})
	huma.Get(s.api, "/members/{id}", s.getMemberHandler, func(op *huma.Operation) {
		op.Summary = "Fetch an author"
	})
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) listArticlesHandler(ctx context.Context, input *articleListInput) (*articleListOutput, error) {
	opts := cms.ListOptions{
		PublishedOnly: true,
		Limit:         input.Limit,
	}
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
		s.recordError(ctx, err, "listing articles", nil)
		return nil, huma.Error500InternalServerError("We couldn't load articles right now.")
	}

	out := &articleListOutput{}
	out.Body.Articles = articles
	return out, nil
}

func (s *Server) getArticleHandler(ctx context.Context, input *articleGetInput) (*articleGetOutput, error) {
	article, err := s.articles.Get(ctx, input.ID, true)
	if err != nil {
		s.recordError(ctx, err, "fetching article", nil)
		return nil, huma.Error500InternalServerError("We couldn't load the article right now.")
	}
	if article == nil {
		return nil, huma.Error404NotFound("Article not found")
	}

	return &articleGetOutput{Body: *article}, nil
}

func (s *Server) searchHandler(ctx context.Context, input *searchInput) (*searchOutput, error) {
	term := strings.TrimSpace(input.Query)
	if term == "" {
		return nil, huma.Error400BadRequest("A search term is required")
	}

	page := input.Page
	if page < 1 {
		page = 1
	}

	total, err := s.articles.SearchCount(ctx, term)
	if err != nil {
		s.recordError(ctx, err, "counting search results", nil)
		return nil, huma.Error500InternalServerError("We couldn't search right now.")
	}

	results, err := s.articles.Search(ctx, term, searchPageSize, (page-1)*searchPageSize)
	if err != nil {
		s.recordError(ctx, err, "searching articles", nil)
		return nil, huma.Error500InternalServerError("We couldn't search right now.")
	}

	pages := int((total + searchPageSize - 1) / searchPageSize)

	out := &searchOutput{}
	out.Body.Term = term
	out.Body.Total = total
	out.Body.Page = page
	out.Body.Pages = pages
	out.Body.Results = results
	return out, nil
}

func (s *Server) listCategoriesHandler(ctx context.Context, _ *struct{}) (*categoryListOutput, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing categories", nil)
		return nil, huma.Error500InternalServerError("We couldn't load categories right now.")
	}

	out := &categoryListOutput{}
	out.Body.Categories = categories
	return out, nil
}

func (s *Server) listMembersHandler(ctx context.Context, _ *struct{}) (*memberListOutput, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		s.recordError(ctx, err, "listing members", nil)
		return nil, huma.Error500InternalServerError("We couldn't load authors right now.")
	}

	out := &memberListOutput{}
	out.Body.Members = members
	return out, nil
}

func (s *Server) getMemberHandler(ctx context.Context, input *memberGetInput) (*memberGetOutput, error) {
	member, err := s.members.Get(ctx, input.ID)
	if err != nil {
		s.recordError(ctx, err, "fetching member", nil)
		return nil, huma.Error500InternalServerError("We couldn't load the author right now.")
	}
	if member == nil {
		return nil, huma.Error404NotFound("Author not found")
	}

	return &memberGetOutput{Body: *member}, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	out.Body.Database = "ok"

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		out.Body.Status = "degraded"
		out.Body.Database = "unreachable"
		s.recordError(ctx, err, "health check database ping", nil)
		return out, huma.Error503ServiceUnavailable("database unreachable")
	}

	return out, nil
}
