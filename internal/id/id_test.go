package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate(PrefixBook)
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixUser, PrefixAuthor, PrefixBook} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, prefix+"-"))
			// prefix + "-" + 21 nanoid characters
			assert.Len(t, id, len(prefix)+1+21)
			assert.True(t, HasPrefix(id, prefix))
		})
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
		want   bool
	}{
		{"author-abc", PrefixAuthor, true},
		{"book-abc", PrefixAuthor, false},
		{"author-", PrefixAuthor, false},
		{"authorabc", PrefixAuthor, false},
		{"", PrefixUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPrefix(tt.id, tt.prefix))
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate(PrefixUser)
		assert.NotEmpty(t, id)
	})
}
