package strategies

import (
	"fmt"

	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/models"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// DiscordEndpoint is Discord's OAuth 2.0 endpoint.
var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

const discordAvatarURL = "https://cdn.discordapp.com/avatars/%s/%s.png"

var discordDef = providerDef{
	name:          constants.ProviderDiscord,
	endpoint:      DiscordEndpoint,
	profileURL:    "https://discord.com/api/users/@me",
	defaultScopes: []string{"identify", "email"},
	mapUser: func(r gjson.Result) models.UserInfo {
		user := models.UserInfo{
			ID:       firstString(r, "id"),
			Email:    firstString(r, "email"),
			Name:     firstString(r, "global_name", "username"),
			Metadata: metadata(r, "username", "verified"),
		}
		if avatar := firstString(r, "avatar"); avatar != "" && user.ID != "" {
			user.Picture = fmt.Sprintf(discordAvatarURL, user.ID, avatar)
		}
		return user
	},
}

// NewDiscordStrategy creates a Discord strategy.
func NewDiscordStrategy(clientID, clientSecret string, scopes []string, redirectURL, failureRedirect string, opts ...Option) (*OAuth2Strategy, error) {
	return newOAuth2Strategy(discordDef, clientID, clientSecret, scopes, redirectURL, failureRedirect, applyOptions(opts))
}
