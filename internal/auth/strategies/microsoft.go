package strategies

import (
	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/models"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/microsoft"
)

// DefaultMicrosoftTenant accepts both work/school and personal accounts.
const DefaultMicrosoftTenant = "common"

var microsoftDef = providerDef{
	name:          constants.ProviderMicrosoft,
	endpoint:      microsoft.AzureADEndpoint(DefaultMicrosoftTenant),
	profileURL:    "https://graph.microsoft.com/v1.0/me",
	defaultScopes: []string{"openid", "profile", "email", "User.Read"},
	pkce:          true,
	mapUser: func(r gjson.Result) models.UserInfo {
		return models.UserInfo{
			ID:       firstString(r, "id"),
			Email:    firstString(r, "mail", "userPrincipalName"),
			Name:     firstString(r, "displayName"),
			Metadata: metadata(r, "userPrincipalName", "givenName", "surname"),
		}
	},
}

// WithTenant selects the Azure AD tenant for Microsoft logins.
func WithTenant(tenant string) Option {
	return func(o *options) {
		o.tenant = tenant
	}
}

// NewMicrosoftStrategy creates a Microsoft identity platform strategy.
// PKCE is on by default.
func NewMicrosoftStrategy(clientID, clientSecret string, scopes []string, redirectURL, failureRedirect string, opts ...Option) (*OAuth2Strategy, error) {
	o := applyOptions(opts)
	def := microsoftDef
	if o.tenant != "" {
		def.endpoint = microsoft.AzureADEndpoint(o.tenant)
	}
	return newOAuth2Strategy(def, clientID, clientSecret, scopes, redirectURL, failureRedirect, o)
}
