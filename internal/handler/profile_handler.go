// internal/handler/profile_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/service"
	"github.com/fallrisk/super-serial/internal/utils"
)

// RenameProfileRequest names the new profile name
type RenameProfileRequest struct {
	To string `json:"to" binding:"required" example:"lab bench"`
}

// ProfileHandler handles profile requests
type ProfileHandler struct {
	terminal *service.TerminalService
	logger   *utils.ServiceLogger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(terminal *service.TerminalService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		terminal: terminal,
		logger:   utils.NewServiceLogger(logger, "profile-handler"),
	}
}

// RegisterRoutes registers profile routes
func (h *ProfileHandler) RegisterRoutes(router *gin.RouterGroup) {
	profiles := router.Group("/profiles")
	{
		profiles.GET("", h.ListProfiles)
		profiles.POST("/reload", h.ReloadProfiles)
		profiles.GET("/:name", h.GetProfile)
		profiles.PUT("/:name", h.SaveProfile)
		profiles.DELETE("/:name", h.DeleteProfile)
		profiles.POST("/:name/rename", h.RenameProfile)
	}
}

// ListProfiles lists profiles
// @Summary List profiles
// @Description Saved connection profiles in file order
// @Tags Profiles
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]profile.Profile} "Profiles"
// @Router /profiles [get]
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Profiles retrieved", h.terminal.Profiles())
}

// ReloadProfiles re-reads the profile file
// @Summary Reload profiles
// @Description Re-read the profile file. A rejected file leaves the current profiles in place.
// @Tags Profiles
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]profile.Profile} "Profiles"
// @Failure 400 {object} utils.APIResponse "Profile file rejected"
// @Router /profiles/reload [post]
func (h *ProfileHandler) ReloadProfiles(c *gin.Context) {
	if err := h.terminal.LoadProfiles(); err != nil {
		utils.LinkErrorResponse(c, "Failed to reload profiles", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profiles reloaded", h.terminal.Profiles())
}

// GetProfile returns one profile
// @Summary Get profile
// @Tags Profiles
// @Produce json
// @Param name path string true "Profile name"
// @Success 200 {object} utils.APIResponse{data=profile.Profile} "Profile"
// @Failure 404 {object} utils.APIResponse "Profile not found"
// @Router /profiles/{name} [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	p, err := h.terminal.Profile(c.Param("name"))
	if err != nil {
		h.profileError(c, "Failed to get profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile retrieved", p)
}

// SaveProfile creates or replaces a profile
// @Summary Save profile
// @Description Create or replace the named profile and write the profile file
// @Tags Profiles
// @Accept json
// @Produce json
// @Param name path string true "Profile name"
// @Param request body serialcfg.RawConfig true "Serial settings"
// @Success 200 {object} utils.APIResponse{data=profile.Profile} "Profile saved"
// @Failure 400 {object} utils.APIResponse "Invalid settings"
// @Router /profiles/{name} [put]
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	var raw serialcfg.RawConfig
	if err := c.ShouldBindJSON(&raw); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.terminal.SaveProfile(c.Param("name"), raw)
	if err != nil {
		h.profileError(c, "Failed to save profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile saved", p)
}

// DeleteProfile removes a profile
// @Summary Delete profile
// @Tags Profiles
// @Produce json
// @Param name path string true "Profile name"
// @Success 200 {object} utils.APIResponse "Profile deleted"
// @Failure 404 {object} utils.APIResponse "Profile not found"
// @Router /profiles/{name} [delete]
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	if err := h.terminal.DeleteProfile(c.Param("name")); err != nil {
		h.profileError(c, "Failed to delete profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile deleted", nil)
}

// RenameProfile renames a profile
// @Summary Rename profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param name path string true "Profile name"
// @Param request body RenameProfileRequest true "New name"
// @Success 200 {object} utils.APIResponse{data=profile.Profile} "Profile renamed"
// @Failure 404 {object} utils.APIResponse "Profile not found"
// @Failure 409 {object} utils.APIResponse "Name taken"
// @Router /profiles/{name}/rename [post]
func (h *ProfileHandler) RenameProfile(c *gin.Context) {
	var req RenameProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.terminal.RenameProfile(c.Param("name"), req.To); err != nil {
		h.profileError(c, "Failed to rename profile", err)
		return
	}

	p, err := h.terminal.Profile(req.To)
	if err != nil {
		h.profileError(c, "Failed to rename profile", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Profile renamed", p)
}

func (h *ProfileHandler) profileError(c *gin.Context, message string, err error) {
	switch {
	case isProfileNotFound(err):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	case errors.Is(err, profile.ErrExists):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	default:
		h.logger.Warn(message, zap.Error(err))
		utils.LinkErrorResponse(c, message, err)
	}
}

func isProfileNotFound(err error) bool {
	return errors.Is(err, profile.ErrNotFound)
}
