package constants

const (
	// StateBytes is the number of random bytes in a state token
	StateBytes = 32

	// StateAttempts bounds retries when a generated state collides with a pending one
	StateAttempts = 3
)

// Callback query parameters sent back by the provider
const (
	CodeParam             = "code"
	StateParam            = "state"
	ErrorParam            = "error"
	ErrorDescriptionParam = "error_description"
)

// Provider kinds
const (
	ProviderMicrosoft = "microsoft"
	ProviderGoogle    = "google"
	ProviderGitHub    = "github"
	ProviderFacebook  = "facebook"
	ProviderDiscord   = "discord"
)

// SupportedProviders lists every provider kind a strategy can be built for
var SupportedProviders = []string{
	ProviderMicrosoft,
	ProviderGoogle,
	ProviderGitHub,
	ProviderFacebook,
	ProviderDiscord,
}
