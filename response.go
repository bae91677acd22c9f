package main

import (
	"errors"
	"net/http"
	"strconv"

	"ctei-manager/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// apiResponse ist die einheitliche Antwortform aller Routen.
type apiResponse struct {
	Success    bool                  `json:"success"`
	Data       any                   `json:"data,omitempty"`
	Error      string                `json:"error,omitempty"`
	Errors     []services.BatchError `json:"errors,omitempty"`
	Pagination *pagination           `json:"pagination,omitempty"`
}

type pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, apiResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, apiResponse{Error: msg})
}

// failService bildet Service-Fehler auf Statuscodes ab. Unbekannte Fehler werden
// protokolliert und nur generisch gemeldet.
func failService(c *gin.Context, log *zap.Logger, err error) {
	var calcErr *services.CalculationError
	switch {
	case errors.Is(err, services.ErrProjectNotFound), errors.Is(err, services.ErrAlertNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCalculationInProgress):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, services.ErrInvalidTransition.Error())
	case errors.As(err, &calcErr):
		fail(c, http.StatusUnprocessableEntity, calcErr.Err.Error())
	default:
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

// idParam liest einen positiven numerischen Pfadparameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
