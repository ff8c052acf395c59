// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"seva/internal/modules/assignment"
	"seva/internal/modules/donation"
	"seva/internal/modules/ngo"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, errType, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Type: errType})
}

// writeDomainError maps module sentinels onto the transport taxonomy:
// validation → 400, missing → 404, conflicting transition → 409. Anything
// unrecognized is a defect and becomes a plain 500.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, donation.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, donation.ErrNotFound),
		errors.Is(err, ngo.ErrNGONotFound),
		errors.Is(err, assignment.ErrVolunteerNotFound),
		errors.Is(err, assignment.ErrAssignmentNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, donation.ErrTaken):
		writeError(c, http.StatusConflict, "conflict", "donation no longer available")
	case errors.Is(err, donation.ErrInvalidState),
		errors.Is(err, donation.ErrConflict),
		errors.Is(err, donation.ErrWrongVolunteer),
		errors.Is(err, assignment.ErrActiveAssignment),
		errors.Is(err, assignment.ErrInactiveVolunteer):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, assignment.ErrDistrictMismatch),
		errors.Is(err, ngo.ErrOutsideDistrict),
		errors.Is(err, ngo.ErrNotSpecialized):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ngo.ErrCapacity):
		writeJSON(c, http.StatusConflict, gin.H{
			"error":       err.Error(),
			"type":        "capacity",
			"remaining":   0,
			"is_critical": false,
		})
	default:
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

// isValidID ensures IDs are alphanumeric and at most 32 chars. Generated IDs
// are hex; seeded fixture IDs may use the full alphabet.
func isValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return false
	}
	return true
}
