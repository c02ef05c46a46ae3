package graph

import (
	"context"

	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/service"
)

type authorResolver struct {
	a *domain.Author
}

func (r *authorResolver) ID() graphql.ID { return graphql.ID(r.a.ID) }
func (r *authorResolver) Name() *string  { return &r.a.Name }

func (r *authorResolver) Born() *int32 {
	if r.a.Born == nil {
		return nil
	}
	born := int32(*r.a.Born)
	return &born
}

type bookResolver struct {
	v       *service.BookView
	catalog *service.CatalogService
	errs    *errorMapper
}

func (r *bookResolver) ID() graphql.ID   { return graphql.ID(r.v.ID) }
func (r *bookResolver) Title() string    { return r.v.Title }
func (r *bookResolver) Published() int32 { return int32(r.v.Published) }

func (r *bookResolver) Genres() *[]string {
	genres := r.v.Genres
	if genres == nil {
		genres = []string{}
	}
	return &genres
}

// Author uses the batch-resolved author when present and looks it up
// otherwise.
func (r *bookResolver) Author(ctx context.Context) (*authorResolver, error) {
	if r.v.Author != nil {
		return &authorResolver{a: r.v.Author}, nil
	}
	author, err := r.catalog.Author(ctx, r.v.AuthorID)
	if err != nil {
		return nil, r.errs.wrap(ctx, "Book.author", err)
	}
	return &authorResolver{a: author}, nil
}

type userResolver struct {
	u *domain.User
}

func (r *userResolver) ID() graphql.ID   { return graphql.ID(r.u.ID) }
func (r *userResolver) Username() string { return r.u.Username }

func (r *userResolver) FavoriteGenre() *string {
	if r.u.FavoriteGenre == "" {
		return nil
	}
	return &r.u.FavoriteGenre
}

type tokenResolver struct {
	value string
}

func (r *tokenResolver) Value() string { return r.value }
