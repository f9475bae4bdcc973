package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"gapchat/pkg/apperr"
)

// respondError surfaces an error as a dismissable notification body. All
// categories map to a status and a translated message; nothing is retried
// server-side.
func respondError(c *gin.Context, err error, fallback string) {
	status := apperr.HTTPStatus(err)

	var ae *apperr.Error
	if errors.As(err, &ae) {
		c.JSON(status, gin.H{"error": __(ae.Message)})
		return
	}

	c.JSON(status, gin.H{"error": __(fallback)})
}

func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	return userID.(string), true
}
