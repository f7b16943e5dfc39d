package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/savings-circles/internal/circle"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/rongwang/savings-circles/internal/service"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// ordered so that ErrNoProposal matches before the ErrInvalidState it wraps
var errorMappings = []errorMapping{
	{service.ErrEmailTaken, http.StatusConflict, "ALREADY_EXISTS"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "AUTHENTICATION_ERROR"},
	{circle.ErrNotAuthorized, http.StatusForbidden, "FORBIDDEN"},
	{circle.ErrUnknownCircle, http.StatusNotFound, "NOT_FOUND"},
	{circle.ErrUnknownUser, http.StatusNotFound, "USER_NOT_FOUND"},
	{circle.ErrAlreadyProposed, http.StatusConflict, "ALREADY_PROPOSED"},
	{circle.ErrAlreadyApproved, http.StatusConflict, "ALREADY_APPROVED"},
	{circle.ErrAlreadyMember, http.StatusConflict, "ALREADY_MEMBER"},
	{circle.ErrDuplicatePeriod, http.StatusConflict, "DUPLICATE_PERIOD"},
	{circle.ErrProposalPending, http.StatusConflict, "PROPOSAL_PENDING"},
	{circle.ErrNoProposal, http.StatusConflict, "NO_PROPOSAL"},
	{circle.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
	{circle.ErrInvalidAmount, http.StatusUnprocessableEntity, "INVALID_AMOUNT"},
	{circle.ErrInvalidRole, http.StatusUnprocessableEntity, "INVALID_ROLE"},
}

// writeError maps err to its status and code. Unrecognised errors are store
// or infrastructure failures and are reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, models.ErrorResponse{Error: m.target.Error(), Code: m.code})
			return
		}
	}

	_ = c.Error(err)
	h.logger.WithError(err).WithField("path", c.FullPath()).Error("internal error")
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: "Internal server error",
		Code:  "INTERNAL_ERROR",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}
