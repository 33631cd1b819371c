package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// FromError maps a service error onto its HTTP status and stable code. Unknown errors are 500s.
func FromError(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var (
		scope    *types.InsufficientScopeError
		parse    *types.GenerationParseError
		timeout  *types.GenerationTimeoutError
		conflict *types.EditConflictError
		notFound *types.NotFoundError
		invalid  *types.ValidationError
		batch    *sentiment.BatchAnalysisError
	)
	switch {
	case errors.As(err, &scope):
		return apierr.New(http.StatusForbidden, "insufficient_scope", err)
	case errors.As(err, &timeout):
		return apierr.New(http.StatusGatewayTimeout, "generation_timeout", err)
	case errors.As(err, &parse):
		return apierr.New(http.StatusUnprocessableEntity, "generation_parse_failed", err)
	case errors.As(err, &conflict):
		return apierr.New(http.StatusConflict, "edit_conflict", err)
	case errors.As(err, &notFound):
		return apierr.New(http.StatusNotFound, notFound.Kind+"_not_found", err)
	case errors.As(err, &invalid):
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	case errors.As(err, &batch):
		return apierr.New(http.StatusBadGateway, "batch_analysis_failed", err)
	}
	return apierr.New(http.StatusInternalServerError, "internal_error", err)
}

// RespondServiceError writes the mapped error. Internal failures do not echo their message.
func RespondServiceError(c *gin.Context, err error) {
	ae := FromError(err)
	if ae.Status >= http.StatusInternalServerError && ae.Status != http.StatusGatewayTimeout && ae.Status != http.StatusBadGateway {
		_ = c.Error(err)
		RespondError(c, ae.Status, ae.Code, errors.New("internal error"))
		return
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

// RespondErrorWithDetails is used where a failed request still carries partial results.
func RespondErrorWithDetails(c *gin.Context, err error, details any) {
	ae := FromError(err)
	c.JSON(ae.Status, ErrorEnvelope{
		Error: APIError{
			Message: ae.Error(),
			Code:    ae.Code,
			Details: details,
		},
	})
}
