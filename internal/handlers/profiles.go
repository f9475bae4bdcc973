package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gapchat/internal/models"
	"gapchat/internal/store"
	"gapchat/internal/sync"
)

// GetUserProfile retrieves a public user profile by username.
func (h *MessageHandler) GetUserProfile(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	profile, err := h.store.GetProfileByUsername(c.Request.Context(), username)
	if err != nil {
		respondError(c, err, "failed to fetch profile")
		return
	}

	applyLiveness(&profile)
	c.JSON(http.StatusOK, profile)
}

// GetUsers lists profiles except the current user's, optionally filtered by
// a search term.
func (h *MessageHandler) GetUsers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	search := strings.TrimSpace(c.Query("q"))
	profiles, err := h.store.ListProfiles(c.Request.Context(), userID, search)
	if err != nil {
		respondError(c, err, "failed to fetch profiles")
		return
	}

	sync.OverlayLiveness(profiles, time.Now().UTC())
	c.JSON(http.StatusOK, profiles)
}

// GetMyProfile returns the current user's profile.
func (h *MessageHandler) GetMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	profile, err := h.store.GetProfileByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to fetch profile")
		return
	}

	applyLiveness(&profile)
	c.JSON(http.StatusOK, profile)
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

// UpdateProfile mutates the current user's own profile.
func (h *MessageHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("invalid request")})
		return
	}

	profile, err := h.store.UpdateProfile(c.Request.Context(), userID, store.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		respondError(c, err, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UploadAvatar handles avatar image uploads.
func (h *MessageHandler) UploadAvatar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("avatar file is required")})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("file must be an image")})
		return
	}

	if header.Size > 2*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": __("avatar must be smaller than 2MB")})
		return
	}

	ext := ".jpg"
	if idx := strings.LastIndex(header.Filename, "."); idx >= 0 {
		ext = header.Filename[idx:]
	}
	filename := "avatar_" + userID + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + ext
	filepath := h.fileStoragePath + "/" + filename

	if err := c.SaveUploadedFile(header, filepath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": __("failed to save avatar")})
		return
	}

	avatarURL := "/api/files/" + filename
	if err := h.store.UpdateAvatar(c.Request.Context(), userID, avatarURL); err != nil {
		respondError(c, err, "failed to update avatar")
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": avatarURL})
}

func applyLiveness(p *models.Profile) {
	p.IsOnline = p.IsOnline && time.Since(p.LastSeen) < sync.PresenceStaleAfter
}
