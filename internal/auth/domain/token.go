package domain

import (
	"math"
	"time"
)

// Lifetimes of single-use flow tokens.
const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour
)

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by signup, signin and refresh.
type AuthResult struct {
	Tokens TokenPair
	User   User
}

// SuperadminSeed describes the account created at start-up.
type SuperadminSeed struct {
	Email    string
	Password string
	FullName string
}

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a normalised page request.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page and limit into their valid ranges.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// PageMeta describes where a page sits in the full listing.
type PageMeta struct {
	Total           int
	Page            int
	Limit           int
	TotalPages      int
	HasNextPage     bool
	HasPreviousPage bool
}

// Meta computes listing metadata for total rows.
func (p Page) Meta(total int) PageMeta {
	pages := int(math.Ceil(float64(total) / float64(p.Limit)))
	return PageMeta{
		Total:           total,
		Page:            p.Page,
		Limit:           p.Limit,
		TotalPages:      pages,
		HasNextPage:     p.Page < pages,
		HasPreviousPage: p.Page > 1,
	}
}
