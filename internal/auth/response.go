package auth

import (
	"net/url"

	"github.com/brizzai/passport/internal/auth/constants"
	"github.com/brizzai/passport/internal/auth/models"
)

// Response is the outcome of a successful callback: either ProfileResponse or
// FailureRedirect.
type Response interface {
	isResponse()
}

// ProfileResponse carries the logged-in user.
type ProfileResponse struct {
	Profile *models.Profile
}

// FailureRedirect tells the caller to send the user to URL, typically the
// login page, because they canceled at the provider.
type FailureRedirect struct {
	URL string
}

func (ProfileResponse) isResponse() {}
func (FailureRedirect) isResponse() {}

// StateCode holds the query parameters of a provider callback.
type StateCode struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// StateCodeFromQuery reads a StateCode from callback query values.
func StateCodeFromQuery(q url.Values) StateCode {
	return StateCode{
		Code:             q.Get(constants.CodeParam),
		State:            q.Get(constants.StateParam),
		Error:            q.Get(constants.ErrorParam),
		ErrorDescription: q.Get(constants.ErrorDescriptionParam),
	}
}
