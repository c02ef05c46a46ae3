package domain

import "slices"

// Book is a catalog entry. It references its Author by ID and is never
// modified after creation.
type Book struct {
	Document  `bson:",inline"`
	Title     string   `json:"title" bson:"title"`
	Published int      `json:"published" bson:"published"`
	AuthorID  string   `json:"author_id" bson:"author_id"`
	Genres    []string `json:"genres" bson:"genres"`
}

// HasGenre reports whether genre is one of the book's genres.
// Matching is exact and case-sensitive.
func (b *Book) HasGenre(genre string) bool {
	return slices.Contains(b.Genres, genre)
}
