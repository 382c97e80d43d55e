package strategies

import (
	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/models"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/facebook"
)

var facebookDef = providerDef{
	name:          constants.ProviderFacebook,
	endpoint:      facebook.Endpoint,
	profileURL:    "https://graph.facebook.com/me?fields=id,name,email,first_name,last_name,picture",
	defaultScopes: []string{"email", "public_profile"},
	mapUser: func(r gjson.Result) models.UserInfo {
		return models.UserInfo{
			ID:       firstString(r, "id"),
			Email:    firstString(r, "email"),
			Name:     firstString(r, "name"),
			Picture:  firstString(r, "picture.data.url"),
			Metadata: metadata(r, "first_name", "last_name"),
		}
	},
}

// NewFacebookStrategy creates a Facebook Login strategy.
func NewFacebookStrategy(clientID, clientSecret string, scopes []string, redirectURL, failureRedirect string, opts ...Option) (*OAuth2Strategy, error) {
	return newOAuth2Strategy(facebookDef, clientID, clientSecret, scopes, redirectURL, failureRedirect, applyOptions(opts))
}
