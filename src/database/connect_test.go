package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	cases := map[string]string{
		"sqlite://database.db":                         "sqlite",
		"sqlite:///var/lib/autoexit/rules.db":          "sqlite",
		"file::memory:?cache=shared":                   "sqlite",
		"postgres://u:p@localhost:5432/db?sslmode=off": "postgres",
		"postgresql://u:p@localhost:5432/db":           "postgres",
	}

	for url, want := range cases {
		d, err := Dialector(url)
		require.NoError(t, err, url)
		assert.Equal(t, want, d.Name(), url)
	}

	for _, bad := range []string{"mysql://localhost/db", "sqlite://", ""} {
		_, err := Dialector(bad)
		assert.Error(t, err, bad)
	}
}
