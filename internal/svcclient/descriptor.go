package svcclient

import "net/http"

// RequestDescriptor declares one outbound call: method, target shape and
// body-encoding rule. A descriptor is built fresh per call and never reused.
//
// Path and Params are mutually exclusive request shapes: a call either
// appends a path segment to the configured service URL or appends ad hoc
// query parameters, never both. ServiceURL overrides the configured URL
// outright when set.
type RequestDescriptor struct {
	Action     Action
	Method     string
	Path       string
	Params     map[string]string
	Headers    map[string]string
	Body       any
	ServiceURL string
}

// UserInfoRequest builds the descriptor for the user-info endpoint call.
// The caller validates the access token before invoking; an empty token
// would produce a request the remote service rejects.
func UserInfoRequest(accessToken string) RequestDescriptor {
	return RequestDescriptor{
		Action: ActionUserInfo,
		Method: http.MethodPost,
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
		},
	}
}
