package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_HasGenre(t *testing.T) {
	b := &Book{Title: "Dune", Genres: []string{"scifi", "classic"}}

	assert.True(t, b.HasGenre("scifi"))
	assert.True(t, b.HasGenre("classic"))
	assert.False(t, b.HasGenre("Scifi"))
	assert.False(t, b.HasGenre("sci"))
	assert.False(t, (&Book{}).HasGenre("scifi"))
}

func TestAuthor_SetBorn(t *testing.T) {
	a := &Author{Name: "Frank Herbert"}
	a.InitTimestamps()
	created := a.UpdatedAt

	time.Sleep(time.Millisecond)
	a.SetBorn(1920)

	require.NotNil(t, a.Born)
	assert.Equal(t, 1920, *a.Born)
	assert.True(t, a.UpdatedAt.After(created))
}

func TestUser_SetFavoriteGenre(t *testing.T) {
	u := &User{Username: "bob"}
	u.SetFavoriteGenre("refactoring")

	assert.Equal(t, "refactoring", u.FavoriteGenre)
	assert.False(t, u.UpdatedAt.IsZero())
}
