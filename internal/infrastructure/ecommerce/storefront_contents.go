package ecommerce

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// ContentsAPIStore keeps storefront documents in a git repository through a
// GitHub-compatible contents API. Versions are blob shas.
type ContentsAPIStore struct {
	config    *StorefrontConfig
	transport *transport
}

var _ ContentStore = (*ContentsAPIStore)(nil)

// NewContentsAPIStore creates a contents API backend
func NewContentsAPIStore(config *StorefrontConfig, opts ClientOptions) (*ContentsAPIStore, error) {
	if config == nil {
		config = NewStorefrontConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ContentsAPIStore{
		config:    config,
		transport: newTransport(integration.PlatformCodeStorefront, config.RequestsPerSecond, config.Burst, config.Timeout(), opts),
	}, nil
}

// contentsFile is the contents API file representation
type contentsFile struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// contentsPutRequest creates or replaces a file with a commit
type contentsPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type contentsPutResponse struct {
	Content contentsFile `json:"content"`
}

type contentsError struct {
	Message string `json:"message"`
}

// Get implements ContentStore
func (s *ContentsAPIStore) Get(ctx context.Context, creds integration.PlatformCredentials, filePath string) (ContentFile, error) {
	const op = "storefront.contents.get"
	endpoint, err := s.fileURL(creds, filePath)
	if err != nil {
		return ContentFile{}, integration.NewValidationError(op, err)
	}
	if creds.Branch != "" {
		endpoint += "?ref=" + url.QueryEscape(creds.Branch)
	}
	req, err := newJSONRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ContentFile{}, integration.NewValidationError(op, err)
	}
	s.authorize(req, creds)

	resp, err := s.transport.do(ctx, op, req)
	if err != nil {
		return ContentFile{}, err
	}
	switch {
	case resp.Status == http.StatusNotFound:
		return ContentFile{}, fmt.Errorf("%w: %s", ErrContentNotFound, filePath)
	case resp.Status < 200 || resp.Status >= 300:
		return ContentFile{}, integration.NewValidationError(op,
			fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.Status, snippet(resp.Body)))
	}

	var file contentsFile
	if err := decodeJSON(integration.PlatformCodeStorefront, resp.Body, &file); err != nil {
		return ContentFile{}, err
	}
	if file.Type != "file" || file.Encoding != "base64" {
		return ContentFile{}, integration.NewMalformedRecord(integration.PlatformCodeStorefront,
			"%s is a %s with %q encoding, want a base64 file", filePath, file.Type, file.Encoding)
	}
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return ContentFile{}, integration.NewMalformedRecord(integration.PlatformCodeStorefront, "%s content: %v", filePath, err)
	}
	return ContentFile{Path: filePath, Content: content, Version: file.SHA}, nil
}

// Put implements ContentStore. The API answers 409 for a stale sha and 422
// when a file exists but no sha was supplied.
func (s *ContentsAPIStore) Put(ctx context.Context, creds integration.PlatformCredentials, file ContentFile, message string) (string, error) {
	const op = "storefront.contents.put"
	endpoint, err := s.fileURL(creds, file.Path)
	if err != nil {
		return "", integration.NewValidationError(op, err)
	}
	body := contentsPutRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(file.Content),
		SHA:     file.Version,
		Branch:  creds.Branch,
	}
	req, err := newJSONRequest(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return "", integration.NewValidationError(op, err)
	}
	s.authorize(req, creds)

	resp, err := s.transport.do(ctx, op, req)
	if err != nil {
		return "", err
	}
	switch {
	case resp.Status == http.StatusConflict,
		resp.Status == http.StatusUnprocessableEntity && file.Version == "":
		return "", fmt.Errorf("%w: %s", ErrContentConflict, file.Path)
	case resp.Status == http.StatusUnprocessableEntity:
		var apiErr contentsError
		_ = decodeJSON(integration.PlatformCodeStorefront, resp.Body, &apiErr)
		return "", integration.NewPlatformUserError(op, []integration.FieldError{{Field: "content", Message: apiErr.Message}})
	case resp.Status < 200 || resp.Status >= 300:
		return "", integration.NewValidationError(op,
			fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.Status, snippet(resp.Body)))
	}

	var out contentsPutResponse
	if err := decodeJSON(integration.PlatformCodeStorefront, resp.Body, &out); err != nil {
		return "", err
	}
	if out.Content.SHA == "" {
		return "", integration.NewMalformedRecord(integration.PlatformCodeStorefront, "%s: commit returned no sha", file.Path)
	}
	return out.Content.SHA, nil
}

// fileURL returns {base}/repos/{owner}/{repo}/contents/{path}
func (s *ContentsAPIStore) fileURL(creds integration.PlatformCredentials, filePath string) (string, error) {
	owner, repo, ok := strings.Cut(creds.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return "", fmt.Errorf("%w: store %q repository %q is not owner/name", integration.ErrPlatformNotConfigured, creds.StoreID, creds.Repository)
	}
	segments := strings.Split(strings.Trim(filePath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(creds.BaseURL, "/") + "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) +
		"/contents/" + strings.Join(segments, "/"), nil
}

func (s *ContentsAPIStore) authorize(req *http.Request, creds integration.PlatformCredentials) {
	if creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}
	req.Header.Set("X-GitHub-Api-Version", s.config.APIVersion)
}
