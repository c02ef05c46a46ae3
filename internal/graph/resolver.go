package graph

import (
	"context"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/notify"
	"github.com/listenupapp/catalog-server/internal/service"
)

// Resolver is the root for queries, mutations and subscriptions.
type Resolver struct {
	auth    *service.AuthService
	catalog *service.CatalogService
	books   notify.Subscriber[*service.BookView]
	errs    *errorMapper
	logger  *slog.Logger
}

// Queries

func (r *Resolver) BookCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.BookCount(ctx)
	return int32(n), r.errs.wrap(ctx, "bookCount", err)
}

func (r *Resolver) AuthorCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.AuthorCount(ctx)
	return int32(n), r.errs.wrap(ctx, "authorCount", err)
}

func (r *Resolver) AllAuthor(ctx context.Context) ([]*authorResolver, error) {
	authors, err := r.catalog.Authors(ctx)
	if err != nil {
		return nil, r.errs.wrap(ctx, "allAuthor", err)
	}
	out := make([]*authorResolver, len(authors))
	for i, a := range authors {
		out[i] = &authorResolver{a: a}
	}
	return out, nil
}

func (r *Resolver) AllAuthors(ctx context.Context) ([]*authorResolver, error) {
	return r.AllAuthor(ctx)
}

func (r *Resolver) AllBooks(ctx context.Context, args struct{ Genre *string }) ([]*bookResolver, error) {
	var genre string
	if args.Genre != nil {
		genre = *args.Genre
	}

	views, err := r.catalog.Books(ctx, genre)
	if err != nil {
		return nil, r.errs.wrap(ctx, "allBooks", err)
	}

	out := make([]*bookResolver, len(views))
	for i, v := range views {
		out[i] = r.book(v)
	}
	return out, nil
}

func (r *Resolver) Me(ctx context.Context) *userResolver {
	if u := r.auth.Me(ctx); u != nil {
		return &userResolver{u: u}
	}
	return nil
}

// Mutations

type credentialsArgs struct {
	Username string
	Password string
}

func (r *Resolver) CreateUser(ctx context.Context, args credentialsArgs) (*userResolver, error) {
	user, err := r.auth.CreateUser(ctx, service.CreateUserRequest{
		Username: args.Username,
		Password: args.Password,
	})
	if err != nil {
		return nil, r.errs.wrap(ctx, "createUser", err)
	}
	return &userResolver{u: user}, nil
}

func (r *Resolver) Login(ctx context.Context, args credentialsArgs) (*tokenResolver, error) {
	token, err := r.auth.Login(ctx, service.LoginRequest{
		Username: args.Username,
		Password: args.Password,
	})
	if err != nil {
		return nil, r.errs.wrap(ctx, "login", err)
	}
	return &tokenResolver{value: token.Value}, nil
}

func (r *Resolver) AddBook(ctx context.Context, args struct {
	Title     string
	Published int32
	Author    string
	Genres    *[]string
}) (*bookResolver, error) {
	req := service.AddBookRequest{
		Title:     args.Title,
		Published: int(args.Published),
		Author:    args.Author,
	}
	if args.Genres != nil {
		req.Genres = *args.Genres
	}

	view, err := r.catalog.AddBook(ctx, req)
	if err != nil {
		return nil, r.errs.wrap(ctx, "addBook", err)
	}
	return r.book(view), nil
}

func (r *Resolver) AddBorn(ctx context.Context, args struct {
	Name    string
	SetBorn int32
}) (*authorResolver, error) {
	author, err := r.catalog.AddBorn(ctx, service.AddBornRequest{
		Name:    args.Name,
		SetBorn: int(args.SetBorn),
	})
	if err != nil {
		return nil, r.errs.wrap(ctx, "addBorn", err)
	}
	return &authorResolver{a: author}, nil
}

func (r *Resolver) EditFavoriteGenre(ctx context.Context, args struct{ Genre string }) (*userResolver, error) {
	user, err := r.auth.EditFavoriteGenre(ctx, service.EditFavoriteGenreRequest{Genre: args.Genre})
	if err != nil {
		return nil, r.errs.wrap(ctx, "editFavoriteGenre", err)
	}
	return &userResolver{u: user}, nil
}

// Subscriptions

// BookAdded streams books added after the subscription starts.
func (r *Resolver) BookAdded(ctx context.Context) (<-chan *bookResolver, error) {
	events, err := r.books.Subscribe(ctx)
	if err != nil {
		return nil, r.errs.wrap(ctx, "bookAdded", err)
	}

	out := make(chan *bookResolver)
	go func() {
		defer close(out)
		for view := range events {
			select {
			case out <- r.book(view):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Resolver) book(v *service.BookView) *bookResolver {
	return &bookResolver{v: v, catalog: r.catalog, errs: r.errs}
}
