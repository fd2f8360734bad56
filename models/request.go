package models

import "fmt"

// QueryKind tags which variant of a SearchRequest is set.
type QueryKind int

const (
	QueryFile QueryKind = iota + 1
	QueryURL
)

func (k QueryKind) String() string {
	switch k {
	case QueryFile:
		return "file"
	case QueryURL:
		return "url"
	default:
		return "unknown"
	}
}

// SearchRequest is a single reverse-image query: either a local image file or
// a remote image URL, plus a zero-based results page.
// Build it with FileQuery or URLQuery so exactly one variant is set.
type SearchRequest struct {
	Kind QueryKind

	// Path is the local image file (QueryFile only).
	Path string

	// ImageURL is the remote image address (QueryURL only).
	ImageURL string

	// Page is the zero-based results page.
	Page int
}

// FileQuery builds a request that searches by the image stored at path.
func FileQuery(path string, page int) SearchRequest {
	return SearchRequest{Kind: QueryFile, Path: path, Page: page}
}

// URLQuery builds a request that searches by the image at imageURL.
func URLQuery(imageURL string, page int) SearchRequest {
	return SearchRequest{Kind: QueryURL, ImageURL: imageURL, Page: page}
}

// Validate checks the variant invariant and the page offset.
func (r SearchRequest) Validate() error {
	if r.Page < 0 {
		return NewSearchError(ErrCodeInvalidInput, fmt.Sprintf("page must be non-negative, got %d", r.Page), nil)
	}
	switch r.Kind {
	case QueryFile:
		if r.ImageURL != "" {
			return NewSearchError(ErrCodeInvalidInput, "file query must not carry an image URL", nil)
		}
	case QueryURL:
		if r.Path != "" {
			return NewSearchError(ErrCodeInvalidInput, "url query must not carry a file path", nil)
		}
		if r.ImageURL == "" {
			return NewSearchError(ErrCodeInvalidInput, "image URL is required", nil)
		}
	default:
		return NewSearchError(ErrCodeInvalidInput, "query kind must be file or url", nil)
	}
	return nil
}

// SearchByURLRequest is the payload for POST /api/v1/search/url.
type SearchByURLRequest struct {
	// ImageURL is the remote image to search for. Required.
	ImageURL string `json:"image_url" binding:"required,url"`

	// Page is the zero-based results page. Default: 0.
	Page int `json:"page,omitempty" binding:"omitempty,min=0"`
}

// SearchByFileForm is the multipart form for POST /api/v1/search/file.
// The image itself travels in the "image" file part.
type SearchByFileForm struct {
	Page int `form:"page" binding:"omitempty,min=0"`
}
