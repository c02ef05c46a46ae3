package domain

// User represents an account that can sign in and edit the catalog.
type User struct {
	Document      `bson:",inline"`
	Username      string `json:"username" bson:"username"`
	PasswordHash  string `json:"password_hash,omitempty" bson:"password_hash"` // Stored hashed, never exposed
	FavoriteGenre string `json:"favorite_genre,omitempty" bson:"favorite_genre,omitempty"`
}

// SetFavoriteGenre overwrites the user's favorite genre.
func (u *User) SetFavoriteGenre(genre string) {
	u.FavoriteGenre = genre
	u.Touch()
}
