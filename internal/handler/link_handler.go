// internal/handler/link_handler.go
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/service"
	"github.com/fallrisk/super-serial/internal/utils"
)

// OpenLinkRequest opens the link either from a saved profile or from
// explicit settings. Profile wins when both are given.
type OpenLinkRequest struct {
	Profile string `json:"profile,omitempty" example:"bench supply"`
	serialcfg.RawConfig
}

// WriteRequest carries text to send over the link
type WriteRequest struct {
	Data string `json:"data" binding:"required" example:"AT\r"`
}

// LinkHandler handles link control requests
type LinkHandler struct {
	terminal *service.TerminalService
	logger   *utils.ServiceLogger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(terminal *service.TerminalService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		terminal: terminal,
		logger:   utils.NewServiceLogger(logger, "link-handler"),
	}
}

// RegisterRoutes registers link routes
func (h *LinkHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ports", h.ListPorts)

	linkRoutes := router.Group("/link")
	{
		linkRoutes.GET("", h.GetStatus)
		linkRoutes.POST("/open", h.Open)
		linkRoutes.POST("/close", h.Close)
		linkRoutes.POST("/write", h.Write)
	}
}

// GetStatus returns the link state
// @Summary Link status
// @Description Current link state and the applied settings, if any
// @Tags Link
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.LinkStatus} "Link status"
// @Router /link [get]
func (h *LinkHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Link status retrieved", h.terminal.Status())
}

// Open opens the link
// @Summary Open the link
// @Description Open the serial link with explicit settings or a saved profile
// @Tags Link
// @Accept json
// @Produce json
// @Param request body OpenLinkRequest true "Settings or profile name"
// @Success 200 {object} utils.APIResponse{data=service.LinkStatus} "Link opened"
// @Failure 400 {object} utils.APIResponse "Invalid settings"
// @Failure 404 {object} utils.APIResponse "Port or profile not found"
// @Failure 409 {object} utils.APIResponse "Link already open"
// @Router /link/open [post]
func (h *LinkHandler) Open(c *gin.Context) {
	var req OpenLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	if name := strings.TrimSpace(req.Profile); name != "" {
		err = h.terminal.OpenProfile(c.Request.Context(), name)
	} else {
		err = h.terminal.Open(c.Request.Context(), req.RawConfig)
	}
	if err != nil {
		if isProfileNotFound(err) {
			utils.ErrorResponse(c, http.StatusNotFound, "Profile not found", err)
			return
		}
		utils.LinkErrorResponse(c, "Failed to open link", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Link opened", h.terminal.Status())
}

// Close closes the link
// @Summary Close the link
// @Description Close the serial link. Closing a closed link succeeds.
// @Tags Link
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.LinkStatus} "Link closed"
// @Router /link/close [post]
func (h *LinkHandler) Close(c *gin.Context) {
	if err := h.terminal.Close(); err != nil {
		utils.LinkErrorResponse(c, "Failed to close link", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Link closed", h.terminal.Status())
}

// Write sends text over the link
// @Summary Write to the link
// @Description Send text over the open link
// @Tags Link
// @Accept json
// @Produce json
// @Param request body WriteRequest true "Text to send"
// @Success 200 {object} utils.APIResponse{data=object{written=int}} "Data written"
// @Failure 409 {object} utils.APIResponse "Link not open"
// @Failure 502 {object} utils.APIResponse "Device error"
// @Router /link/write [post]
func (h *LinkHandler) Write(c *gin.Context) {
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	n, err := h.terminal.Write([]byte(req.Data))
	if err != nil {
		utils.LinkErrorResponse(c, "Failed to write", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Data written", gin.H{"written": n})
}

// ListPorts lists serial ports
// @Summary List serial ports
// @Description Enumerate the serial ports present on the host
// @Tags Link
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]transport.PortInfo} "Ports"
// @Failure 404 {object} utils.APIResponse "Enumeration failed"
// @Router /ports [get]
func (h *LinkHandler) ListPorts(c *gin.Context) {
	ports, err := h.terminal.Ports()
	if err != nil {
		utils.LogError(utils.LoggerWithRequestID(h.logger.Logger, c.GetString("request_id")), "Failed to list ports", err)
		utils.LinkErrorResponse(c, "Failed to list ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ports retrieved", ports)
}
