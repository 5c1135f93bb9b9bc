// internal/handlers/user.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/furnigo/furnigo-api/internal/i18n"
	"github.com/furnigo/furnigo-api/internal/models"
	"github.com/furnigo/furnigo-api/internal/services"
	"github.com/furnigo/furnigo-api/internal/utils"
)

type UserProfiles interface {
	CreateUser(ctx context.Context, userUUID string, req *services.CreateUserRequest) (*models.User, error)
	GetProfile(ctx context.Context, userUUID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userUUID string, req *services.UpdateUserProfileRequest) (*models.User, error)
	UploadProfilePicture(ctx context.Context, userUUID string, src services.ImageSource) (string, error)
}

type UserHandler struct {
	users UserProfiles
}

func NewUserHandler(users UserProfiles) *UserHandler {
	return &UserHandler{users: users}
}

// POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userUUID, exists := utils.GetUserUUIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if req.Email == "" {
		req.Email = utils.GetUserEmailFromContext(c)
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), userUUID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "user", err, nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserCreated),
		"user":    user,
	})
}

// GET /users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userUUID, exists := utils.GetUserUUIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	user, err := h.users.GetProfile(c.Request.Context(), userUUID)
	if err != nil {
		utils.ServiceErrorResponse(c, "user", err, nil)
		return
	}

	utils.SuccessResponse(c, user)
}

// PUT /users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userUUID, exists := utils.GetUserUUIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.UpdateUserProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userUUID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "user", err, nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserProfileUpdated),
		"user":    user,
	})
}

// POST /users/me/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userUUID, exists := utils.GetUserUUIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "image"), err.Error())
		return
	}

	url, err := h.users.UploadProfilePicture(c.Request.Context(), userUUID, services.ImageSourceFromFileHeader(header))
	if err != nil {
		utils.ServiceErrorResponse(c, "user", err, nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":             i18n.T(lang, i18n.KeyUserAvatarUpdated),
		"profile_picture_url": url,
	})
}
