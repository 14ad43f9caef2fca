package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/autoci/marketplace/internal/derived"
	"github.com/autoci/marketplace/internal/models"
	"github.com/autoci/marketplace/pkg/config"
)

// AccountAPI provides profile completeness and sign-in redirect checks
type AccountAPI struct {
	profiles       ProfileStore
	allowedOrigins []string
	devMode        bool
}

// NewAccountAPI creates a new account API
func NewAccountAPI(profiles ProfileStore, server *config.ServerConfig) *AccountAPI {
	return &AccountAPI{
		profiles:       profiles,
		allowedOrigins: server.AllowedOrigins,
		devMode:        server.DevMode,
	}
}

// ProfileStatus handles account.profile_status. A caller without a profile
// row is reported as missing every field.
func (a *AccountAPI) ProfileStatus(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := a.profiles.GetByID(ctx.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &models.Profile{ID: userID}
	}
	missing := derived.MissingProfileFields(*profile)
	if missing == nil {
		missing = []string{}
	}
	return map[string]interface{}{
		"complete":       derived.IsProfileComplete(*profile),
		"missing_fields": missing,
	}, nil
}

// SanitizeRedirect handles auth.sanitize_redirect. Rejected targets fall
// back to the site root.
func (a *AccountAPI) SanitizeRedirect(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		URL string `json:"url"`
	}
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	target, ok := derived.SanitizeRedirectURL(p.URL, a.allowedOrigins, a.devMode)
	if !ok {
		target = "/"
	}
	return map[string]interface{}{
		"url":     target,
		"allowed": ok,
	}, nil
}
