package ecommerce

import (
	"net/url"
	"path"
	"strings"

	"github.com/catalogsync/backend/internal/domain/integration"
)

var recognizedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// HasImageExtension reports whether the URL path ends in an image extension
// that platforms fetching by URL accept.
func HasImageExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return recognizedImageExts[strings.ToLower(path.Ext(u.Path))]
}

// uploadURL applies the image URL policy of platforms that sniff extensions
func uploadURL(proxy integration.ImageProxy, source string) string {
	if proxy == nil || HasImageExtension(source) {
		return source
	}
	return proxy.Rewrite(source, ".jpg")
}

// URLImageProxy rewrites image URLs onto an image proxy service that serves
// the original bytes under a path with the wanted extension.
type URLImageProxy struct {
	baseURL string
}

var _ integration.ImageProxy = (*URLImageProxy)(nil)

// NewURLImageProxy creates a proxy rewriter for the given service root
func NewURLImageProxy(baseURL string) *URLImageProxy {
	return &URLImageProxy{baseURL: strings.TrimRight(baseURL, "/")}
}

// Rewrite returns {base}/image{ext}?src={source}
func (p *URLImageProxy) Rewrite(sourceURL, wantExt string) string {
	if sourceURL == "" {
		return ""
	}
	if !strings.HasPrefix(wantExt, ".") {
		wantExt = "." + wantExt
	}
	q := url.Values{}
	q.Set("src", sourceURL)
	return p.baseURL + "/image" + strings.ToLower(wantExt) + "?" + q.Encode()
}
