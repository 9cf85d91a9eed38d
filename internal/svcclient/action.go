package svcclient

// Action identifies a logical outbound operation. The action selects both
// the request builder and the response parser, so the two always travel
// together for one call; no state is shared between invocations.
type Action string

const (
	// ActionUserInfo fetches the identity claims for an access token.
	ActionUserInfo Action = "USER_INFO"
)

// Service IDs resolved against the configured registry.
const (
	ServiceUserInfo = "oauth.http.userinfo"
)
