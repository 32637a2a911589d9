package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// parseLimit reads ?limit= clamped to [1, max], defaulting when absent
// or unparsable.
func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// parseUintQuery reads a required unsigned integer query parameter.
func parseUintQuery(c *gin.Context, key string) (uint64, bool) {
	raw := c.Query(key)
	if raw == "" {
		respondError(c, http.StatusBadRequest, "ERR_MISSING_PARAM", key+" is required")
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_PARAM", key+" must be an unsigned integer")
		return 0, false
	}
	return v, true
}
