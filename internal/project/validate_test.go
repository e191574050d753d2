package project

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	categories := []ProgressCategory{{ID: "game", Name: "Game Code"}}
	valid := []Library{
		{
			Name:     "engine",
			Category: "game",
			Objects: []Object{
				{Source: "engine/main.c"},
				{Source: "engine/render.cpp", Category: "game"},
			},
		},
		{
			Name:    "asm",
			Module:  1,
			Objects: []Object{{Source: "asm/init.s"}},
		},
	}
	require.NoError(t, Validate(valid, categories))
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name       string
		libs       []Library
		categories []ProgressCategory
	}{
		{
			name:       "empty category id",
			categories: []ProgressCategory{{ID: "", Name: "x"}},
		},
		{
			name:       "duplicate category",
			categories: []ProgressCategory{{ID: "game"}, {ID: "game"}},
		},
		{
			name: "empty library name",
			libs: []Library{{Name: ""}},
		},
		{
			name: "duplicate library name",
			libs: []Library{{Name: "engine"}, {Name: "engine"}},
		},
		{
			name: "undeclared library category",
			libs: []Library{{Name: "engine", Category: "nope"}},
		},
		{
			name: "negative module",
			libs: []Library{{Name: "engine", Module: -1}},
		},
		{
			name: "empty object source",
			libs: []Library{{Name: "engine", Objects: []Object{{Source: ""}}}},
		},
		{
			name: "duplicate object source across libraries",
			libs: []Library{
				{Name: "a", Objects: []Object{{Source: "shared/x.c"}}},
				{Name: "b", Objects: []Object{{Source: "shared/x.c"}}},
			},
		},
		{
			name: "object name collision",
			libs: []Library{{Name: "engine", Objects: []Object{
				{Source: "engine/main.c"},
				{Source: "engine/main.cpp"},
			}}},
		},
		{
			name: "uninferrable source kind",
			libs: []Library{{Name: "engine", Objects: []Object{{Source: "engine/table.inc"}}}},
		},
		{
			name: "undeclared object category",
			libs: []Library{{Name: "engine", Objects: []Object{{Source: "a.c", Category: "nope"}}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.libs, tc.categories)
			require.Error(t, err)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}
