package ecommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasImageExtension(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/a.jpg", true},
		{"https://cdn.example.com/a.JPEG", true},
		{"https://cdn.example.com/a.webp?w=200", true},
		{"https://cdn.example.com/a.png#frag", true},
		{"https://cdn.example.com/images/blue", false},
		{"https://cdn.example.com/a.svg", false},
		{"https://cdn.example.com/download?file=a.jpg", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, HasImageExtension(tt.url))
		})
	}
}

func TestURLImageProxy_Rewrite(t *testing.T) {
	p := NewURLImageProxy("https://img.example.com/")

	assert.Equal(t,
		"https://img.example.com/image.jpg?src=https%3A%2F%2Fcdn.example.com%2Fimages%2Fblue",
		p.Rewrite("https://cdn.example.com/images/blue", ".jpg"))
	assert.Equal(t,
		"https://img.example.com/image.png?src=https%3A%2F%2Fcdn.example.com%2Fx",
		p.Rewrite("https://cdn.example.com/x", "PNG"))
	assert.Empty(t, p.Rewrite("", ".jpg"))
}

func TestUploadURL(t *testing.T) {
	proxy := NewURLImageProxy("https://img.example.com")

	assert.Equal(t, "https://cdn.example.com/a.jpg", uploadURL(proxy, "https://cdn.example.com/a.jpg"))
	assert.Equal(t, "https://cdn.example.com/raw", uploadURL(nil, "https://cdn.example.com/raw"))
	assert.Equal(t,
		"https://img.example.com/image.jpg?src=https%3A%2F%2Fcdn.example.com%2Fraw",
		uploadURL(proxy, "https://cdn.example.com/raw"))
}
