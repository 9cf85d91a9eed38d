package svcclient

import (
	"context"
	"strings"

	"github.com/dropDatabas3/reentry/internal/observability/logger"
)

// GetUserInfo fetches the identity claims for an access token.
//
// It never returns an error: an empty token short-circuits without touching
// the transport, and every pipeline failure (transport, non-2xx status,
// unparseable body) is logged and reported as Success=false.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) ParsedResult {
	var result ParsedResult
	if strings.TrimSpace(accessToken) == "" {
		return result
	}

	res, err := c.Call(ctx, ServiceUserInfo, UserInfoRequest(accessToken))
	if err != nil {
		logger.From(ctx).With(
			logger.Layer("service"),
			logger.Component("svcclient.userinfo"),
		).Error("user info call failed", logger.Err(err))
		return result
	}

	if res.Parsed.Success && res.Parsed.ResponseObject != nil {
		return res.Parsed
	}
	return result
}
