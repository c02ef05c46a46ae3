package store

import (
	"cmp"
	"slices"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// SortAuthors orders authors by name, then ID.
func SortAuthors(authors []*domain.Author) {
	slices.SortFunc(authors, func(a, b *domain.Author) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}

// SortBooks orders books by creation time, then ID, which is the order
// clients see from allBooks.
func SortBooks(books []*domain.Book) {
	slices.SortFunc(books, func(a, b *domain.Book) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}
