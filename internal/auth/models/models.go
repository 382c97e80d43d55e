package models

import "time"

// UserInfo represents authenticated user information from any provider
type UserInfo struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Picture  string                 `json:"picture,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Profile is the result of a completed login: the provider tokens plus the
// user as reported by the provider's profile endpoint.
type Profile struct {
	Provider     string                 `json:"provider"`
	AccessToken  string                 `json:"access_token"`
	RefreshToken string                 `json:"refresh_token,omitempty"`
	TokenType    string                 `json:"token_type,omitempty"`
	Expiry       time.Time              `json:"expiry,omitempty"`
	IDToken      string                 `json:"id_token,omitempty"`
	User         UserInfo               `json:"user"`
	Raw          map[string]interface{} `json:"raw,omitempty"`
}
