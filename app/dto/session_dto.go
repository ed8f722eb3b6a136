package dto

// RefreshSessionRequest exchanges a refresh token for a new token pair
type RefreshSessionRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionTokensResponse carries a freshly issued token pair
type SessionTokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
