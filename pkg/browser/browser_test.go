package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	base := "https://forum.example.com/threads/42/page-3"

	tests := []struct {
		ref  string
		want string
	}{
		{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"//cdn.example.com/b.jpg", "https://cdn.example.com/b.jpg"},
		{"/attachments/c.png", "https://forum.example.com/attachments/c.png"},
		{"d.gif", "https://forum.example.com/threads/42/d.gif"},
		{"data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(base, tt.ref))
		})
	}

	assert.Equal(t, "rel.jpg", ResolveURL("", "rel.jpg"))
}

func TestIsURLAttribute(t *testing.T) {
	assert.True(t, IsURLAttribute("src"))
	assert.True(t, IsURLAttribute("href"))
	assert.False(t, IsURLAttribute("alt"))
}
