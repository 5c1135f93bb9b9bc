// internal/handlers/post.go
package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/i18n"
	"github.com/furnigo/furnigo-api/internal/models"
	"github.com/furnigo/furnigo-api/internal/services"
	"github.com/furnigo/furnigo-api/internal/utils"
)

type PostReader interface {
	ListPosts(ctx context.Context, params utils.PaginationParams) ([]*models.Post, bool, error)
	GetPost(ctx context.Context, postID int64) (*models.Post, error)
}

type PostCreator interface {
	Run(ctx context.Context, input services.CreatePostInput) (*services.CreatePostResult, error)
}

type PostHandler struct {
	posts    PostReader
	workflow PostCreator
	runs     services.RunRecorder
}

func NewPostHandler(posts PostReader, workflow PostCreator, runs services.RunRecorder) *PostHandler {
	return &PostHandler{
		posts:    posts,
		workflow: workflow,
		runs:     runs,
	}
}

// GET /posts
func (h *PostHandler) GetPosts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	posts, hasNext, err := h.posts.ListPosts(c.Request.Context(), params)
	if err != nil {
		utils.ServiceErrorResponse(c, "post", err, nil)
		return
	}

	result := utils.CreatePaginationResult(posts, hasNext, params)
	utils.PaginatedResponse(c, result)
}

// GET /posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || postID <= 0 {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "post ID"), nil)
		return
	}

	post, err := h.posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		utils.ServiceErrorResponse(c, "post", err, nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"post":    post,
		"is_sold": post.IsSold(),
	})
}

// POST /posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userUUID, exists := utils.GetUserUUIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var draft services.PostDraft
	if err := c.ShouldBind(&draft); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	var images []services.ImageSource
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["images"] {
			images = append(images, services.ImageSourceFromFileHeader(fh))
		}
	}
	if len(images) > config.MaxPostImages {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "number of images"), gin.H{"max": config.MaxPostImages})
		return
	}

	result, err := h.workflow.Run(c.Request.Context(), services.CreatePostInput{
		UserUUID: userUUID,
		Draft:    draft,
		Images:   images,
	})
	if err != nil {
		resource := "post"
		if result != nil && result.FailedStep == services.StateResolvingUser {
			resource = "user"
		}
		utils.ServiceErrorResponse(c, resource, err, result)
		return
	}

	message := i18n.T(lang, i18n.KeyPostCreated)
	if failed := services.FailedCount(result.Outcomes); failed > 0 {
		message = i18n.T(lang, i18n.KeyPostCreatedPartial, failed, len(result.Outcomes))
	}

	utils.CreatedResponse(c, gin.H{
		"message": message,
		"run":     result,
	})
}

// GET /v1/posts/runs/orphaned lists runs whose uploaded objects were never
// committed to a post. Operators clean them up by hand.
func (h *PostHandler) GetOrphanedRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.runs.OrphanedRuns(c.Request.Context(), limit)
	if err != nil {
		utils.ServiceErrorResponse(c, "post", err, nil)
		return
	}

	utils.SuccessResponse(c, runs)
}

// GET /posts/runs
func (h *PostHandler) GetRuns(c *gin.Context) {
	userUUID, exists := utils.GetUserUUIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.runs.ListRuns(c.Request.Context(), userUUID, limit)
	if err != nil {
		utils.ServiceErrorResponse(c, "post", err, nil)
		return
	}

	utils.SuccessResponse(c, runs)
}
