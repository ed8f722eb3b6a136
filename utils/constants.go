package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for console access tokens (12 hours)
	AccessTokenTTL = 12 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Lead constants
const (
	// MaxSignupAmount is the upper bound accepted for a conversion signup amount
	MaxSignupAmount = 999_999_999

	// DateLayout is the calendar date layout used by the lead API
	DateLayout = "2006-01-02"

	// ReasonDraftTTL bounds how long an unfinished Lost/Junk dialog survives
	ReasonDraftTTL = 30 * time.Minute

	// ReasonDraftCacheKey prefixes redis keys holding reason dialog drafts
	ReasonDraftCacheKey = "reason_draft"

	// DefaultRequestTimeout is the handler level deadline for a console request
	DefaultRequestTimeout = 30 * time.Second

	// UploadRequestTimeout is the deadline for requests carrying documents
	UploadRequestTimeout = 2 * time.Minute

	// MaxDocumentSize is the largest conversion document accepted (10MB)
	MaxDocumentSize = 10 * 1024 * 1024
)
