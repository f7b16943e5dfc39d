package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/rongwang/savings-circles/internal/service"
	"github.com/sirupsen/logrus"
)

// Handler serves the HTTP API on top of a Service
type Handler struct {
	service service.Service
	logger  *logrus.Logger

	limiter         Limiter
	requestsPerMin  int
	authRequestsMin int
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// WithRateLimit enables per-client limits on the API. Auth routes use their
// own, usually stricter, budget.
func (h *Handler) WithRateLimit(l Limiter, requestsPerMin, authRequestsPerMin int) *Handler {
	h.limiter = l
	h.requestsPerMin = requestsPerMin
	h.authRequestsMin = authRequestsPerMin
	return h
}

// SetupRoutes registers every API route on router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.Use(RateLimitMiddleware(h.limiter, "auth", h.authRequestsMin, time.Minute))
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
	}

	circles := api.Group("/circles")
	circles.Use(AuthMiddleware(), RateLimitMiddleware(h.limiter, "api", h.requestsPerMin, time.Minute))
	{
		circles.POST("", h.CreateCircle)
		circles.GET("", h.ListCircles)
		circles.GET("/:id", h.GetCircle)
		circles.POST("/:id/members", h.InviteMember)
		circles.POST("/:id/approve/:userId", h.ApproveMember)
		circles.POST("/:id/propose-amount", h.ProposeAmount)
		circles.POST("/:id/approve-amount", h.ApproveAmount)
		circles.POST("/:id/contributions", h.RecordContribution)
		circles.GET("/:id/contributions", h.GetContributions)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok", Message: "healthy"})
}

// Auth handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.SignUp(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Circle handlers
func (h *Handler) CreateCircle(c *gin.Context) {
	var req models.CreateCircleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.CreateCircle(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListCircles(c *gin.Context) {
	circles, err := h.service.ListCircles(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, circles)
}

func (h *Handler) GetCircle(c *gin.Context) {
	resp, err := h.service.GetCircle(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Membership handlers
func (h *Handler) InviteMember(c *gin.Context) {
	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.InviteMember(c.Request.Context(), c.GetString("userId"), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ApproveMember(c *gin.Context) {
	resp, err := h.service.ApproveMember(c.Request.Context(), c.GetString("userId"), c.Param("id"), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Amount consensus handlers
func (h *Handler) ProposeAmount(c *gin.Context) {
	var req models.ProposeAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.ProposeAmount(c.Request.Context(), c.GetString("userId"), c.Param("id"), *req.NewAmount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ApproveAmount(c *gin.Context) {
	resp, err := h.service.ApproveAmount(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Contribution handlers
func (h *Handler) RecordContribution(c *gin.Context) {
	resp, err := h.service.RecordContribution(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetContributions(c *gin.Context) {
	resp, err := h.service.GetContributions(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
