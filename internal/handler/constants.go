package handler

const (
	APIPrefix = "/api/v1"

	HeaderDeviceID     = "X-Device-Id"
	HeaderRefreshToken = "X-Refresh-Token"

	oauthStateCookie = "oauth_state"

	MsgNotAuthenticated   = "not authenticated"
	MsgInvalidRequestBody = "invalid request body"
	MsgUserNotFound       = "user not found"
	MsgInvalidState       = "invalid OAuth state"
	MsgFederationFailed   = "could not sign in with the identity provider"
	MsgNoticeSent         = "check your inbox to continue"
)
