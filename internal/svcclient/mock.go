package svcclient

import (
	"encoding/json"
	"net/http"
)

// Mock mode short-circuits network dispatch with a fixture selected by
// action. It is a first-class mode so integration tests run without
// network access; every fixture body carries an isMocked marker.

var userInfoFixture = map[string]any{
	"sub":         "00000000-aaaa-bbbb-cccc-111111111111",
	"email":       "jane.doe@example.com",
	"given_name":  "Jane",
	"family_name": "Doe",
	"name":        "Jane Doe",
}

func mockResponse(action Action, finalURL string) *ServiceResponse {
	switch action {
	case ActionUserInfo:
		return mockJSON(http.StatusOK, "OK", userInfoFixture)
	default:
		return &ServiceResponse{
			StatusCode:    http.StatusOK,
			StatusMessage: "Success",
			Body:          []byte("MOCK RESPONSE (" + finalURL + ")"),
		}
	}
}

func mockJSON(code int, msg string, fixture map[string]any) *ServiceResponse {
	body := make(map[string]any, len(fixture)+1)
	for k, v := range fixture {
		body[k] = v
	}
	body["isMocked"] = true

	b, _ := json.Marshal(body)
	return &ServiceResponse{StatusCode: code, StatusMessage: msg, Body: b}
}
