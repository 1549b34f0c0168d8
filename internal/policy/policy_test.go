package policy

import (
	"testing"

	"github.com/classvault/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func TestEffectiveDashboardAccess(t *testing.T) {
	tests := []struct {
		name string
		user types.User
		want bool
	}{
		{
			name: "student is never gated",
			user: types.User{IsStudent: true, DashboardAccess: false},
			want: true,
		},
		{
			name: "student with stored flag true",
			user: types.User{IsStudent: true, DashboardAccess: true},
			want: true,
		},
		{
			name: "staff without approval",
			user: types.User{IsStudent: false, DashboardAccess: false},
			want: false,
		},
		{
			name: "staff with approval",
			user: types.User{IsStudent: false, DashboardAccess: true},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveDashboardAccess(tt.user))
		})
	}
}

func TestKeyword(t *testing.T) {
	tests := []struct {
		name string
		user types.User
		want *string
	}{
		{name: "absent keyword", user: types.User{}, want: nil},
		{name: "empty keyword", user: types.User{FileAccessKeyword: strptr("")}, want: nil},
		{name: "whitespace-only keyword", user: types.User{FileAccessKeyword: strptr("   ")}, want: nil},
		{name: "keyword is trimmed", user: types.User{FileAccessKeyword: strptr("  RED ")}, want: strptr("RED")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keyword(tt.user))
		})
	}
}

func TestNormalizeKeyword(t *testing.T) {
	assert.Nil(t, NormalizeKeyword(""))
	assert.Nil(t, NormalizeKeyword("  \t "))
	assert.Equal(t, strptr("TGFD"), NormalizeKeyword("  TGFD  "))
}

func TestFileVisible(t *testing.T) {
	redReport := types.File{Name: "RED-report.pdf", Type: types.FileTypeDocument}
	bluePhoto := types.File{Name: "blue-photo.png", Type: types.FileTypeImage}

	plain := types.User{}
	redOnly := types.User{FileAccessKeyword: strptr("RED")}

	t.Run("no keyword admits everything matching the caller filters", func(t *testing.T) {
		assert.True(t, FileVisible(plain, types.FileQuery{}, redReport))
		assert.True(t, FileVisible(plain, types.FileQuery{}, bluePhoto))
	})

	t.Run("keyword narrows, never broadens", func(t *testing.T) {
		assert.True(t, FileVisible(redOnly, types.FileQuery{}, redReport))
		assert.False(t, FileVisible(redOnly, types.FileQuery{}, bluePhoto))
	})

	t.Run("keyword containment is case sensitive", func(t *testing.T) {
		lower := types.File{Name: "red-report.pdf", Type: types.FileTypeDocument}
		assert.False(t, FileVisible(redOnly, types.FileQuery{}, lower))
	})

	t.Run("type filter applies alongside the keyword", func(t *testing.T) {
		q := types.FileQuery{Types: []string{types.FileTypeImage}}
		assert.False(t, FileVisible(redOnly, q, redReport))
	})

	t.Run("free-text search is case insensitive", func(t *testing.T) {
		q := types.FileQuery{SearchText: "REPORT"}
		assert.True(t, FileVisible(plain, q, redReport))
		assert.False(t, FileVisible(plain, q, bluePhoto))
	})

	t.Run("keyword result set is a subset of the unrestricted one", func(t *testing.T) {
		files := []types.File{redReport, bluePhoto, {Name: "RED-notes.txt", Type: types.FileTypeDocument}}
		q := types.FileQuery{}

		var unrestricted, restricted []types.File
		for _, f := range files {
			if FileVisible(plain, q, f) {
				unrestricted = append(unrestricted, f)
			}
			if FileVisible(redOnly, q, f) {
				restricted = append(restricted, f)
			}
		}

		assert.Subset(t, unrestricted, restricted)
		assert.Less(t, len(restricted), len(unrestricted))
	})
}
