// internal/services/user_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/graphql"
	"github.com/furnigo/furnigo-api/internal/models"
	"github.com/furnigo/furnigo-api/internal/utils"
)

const (
	getUserIDQuery = `
		query GetUserId($uuid: UUID!) {
			usersCollection(filter: { uuid: { eq: $uuid } }, first: 1) {
				edges { node { id } }
			}
		}`

	getUserQuery = `
		query GetUser($uuid: UUID!) {
			usersCollection(filter: { uuid: { eq: $uuid } }, first: 1) {
				edges { node { id uuid name email birthday profile_picture_url } }
			}
		}`

	insertUserMutation = `
		mutation InsertUser($objects: [usersInsertInput!]!) {
			insertIntousersCollection(objects: $objects) {
				affectedCount
				records { id uuid name email birthday profile_picture_url }
			}
		}`

	updateUserMutation = `
		mutation UpdateUser($uuid: UUID!, $set: usersUpdateInput!) {
			updateusersCollection(filter: { uuid: { eq: $uuid } }, set: $set) {
				affectedCount
			}
		}`

	updateProfilePictureMutation = `
		mutation UpdateProfilePicture($id: Int!, $url: String!) {
			updateusersCollection(filter: { id: { eq: $id } }, set: { profile_picture_url: $url }) {
				affectedCount
			}
		}`
)

type UserService struct {
	gql     graphql.Executor
	storage ObjectStorage
	bucket  string
	timeout time.Duration
	now     func() time.Time
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Birthday string `json:"birthday,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type UpdateUserProfileRequest struct {
	Name     string `json:"name,omitempty" validate:"omitempty,max=100"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Birthday string `json:"birthday,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type userNode struct {
	ID                graphql.ID `json:"id"`
	UUID              string     `json:"uuid"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Birthday          *string    `json:"birthday"`
	ProfilePictureURL *string    `json:"profile_picture_url"`
}

func (n userNode) toModel() *models.User {
	u := &models.User{
		ID:    int64(n.ID),
		UUID:  n.UUID,
		Name:  n.Name,
		Email: n.Email,
	}
	if n.Birthday != nil {
		u.Birthday = *n.Birthday
	}
	if n.ProfilePictureURL != nil {
		u.ProfilePictureURL = *n.ProfilePictureURL
	}
	return u
}

func NewUserService(gql graphql.Executor, storage ObjectStorage, storageCfg *config.StorageConfig, workflowCfg *config.WorkflowConfig) *UserService {
	return &UserService{
		gql:     gql,
		storage: storage,
		bucket:  storageCfg.ProfileBucket,
		timeout: workflowCfg.CallTimeout,
		now:     time.Now,
	}
}

// ResolveUserID maps the auth provider's identifier to the store's numeric
// user key. The identifier is passed through unvalidated.
func (s *UserService) ResolveUserID(ctx context.Context, userUUID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		UsersCollection graphql.Connection[userNode] `json:"usersCollection"`
	}
	if err := s.gql.Execute(ctx, getUserIDQuery, map[string]interface{}{"uuid": userUUID}, &resp); err != nil {
		return 0, fmt.Errorf("resolve user id: %w", err)
	}

	nodes := resp.UsersCollection.Nodes()
	if len(nodes) == 0 {
		logrus.WithField("user_uuid", userUUID).Warn("No user found for this UUID")
		return 0, fmt.Errorf("user %s: %w", userUUID, apperrors.ErrNotFound)
	}

	id := int64(nodes[0].ID)
	if id <= 0 {
		return 0, fmt.Errorf("user %s: %w: non-positive id %d", userUUID, apperrors.ErrTransport, id)
	}

	return id, nil
}

// CreateUser inserts the profile row for a freshly signed-up account.
func (s *UserService) CreateUser(ctx context.Context, userUUID string, req *CreateUserRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	object := map[string]interface{}{
		"uuid":  userUUID,
		"email": req.Email,
		"name":  req.Name,
	}
	if req.Birthday != "" {
		object["birthday"] = req.Birthday
	}

	var resp struct {
		Insert graphql.MutationResult[userNode] `json:"insertIntousersCollection"`
	}
	vars := map[string]interface{}{"objects": []interface{}{object}}
	if err := s.gql.Execute(ctx, insertUserMutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if resp.Insert.AffectedCount == 0 {
		return nil, fmt.Errorf("create user: %w: no row inserted", apperrors.ErrTransport)
	}
	if len(resp.Insert.Records) == 0 {
		return &models.User{UUID: userUUID, Name: req.Name, Email: req.Email, Birthday: req.Birthday}, nil
	}

	return resp.Insert.Records[0].toModel(), nil
}

func (s *UserService) GetProfile(ctx context.Context, userUUID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		UsersCollection graphql.Connection[userNode] `json:"usersCollection"`
	}
	if err := s.gql.Execute(ctx, getUserQuery, map[string]interface{}{"uuid": userUUID}, &resp); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	nodes := resp.UsersCollection.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("user %s: %w", userUUID, apperrors.ErrNotFound)
	}

	return nodes[0].toModel(), nil
}

// UpdateProfile changes the provided fields only.
func (s *UserService) UpdateProfile(ctx context.Context, userUUID string, req *UpdateUserProfileRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	set := make(map[string]interface{})
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Email != "" {
		set["email"] = req.Email
	}
	if req.Birthday != "" {
		set["birthday"] = req.Birthday
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidInput("no profile fields to update")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		Update graphql.MutationResult[userNode] `json:"updateusersCollection"`
	}
	vars := map[string]interface{}{"uuid": userUUID, "set": set}
	if err := s.gql.Execute(callCtx, updateUserMutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if resp.Update.AffectedCount == 0 {
		return nil, fmt.Errorf("user %s: %w", userUUID, apperrors.ErrNotFound)
	}

	logrus.WithFields(logrus.Fields{
		"user_uuid": userUUID,
		"fields":    len(set),
	}).Info("Profile updated")

	return s.GetProfile(ctx, userUUID)
}

// UploadProfilePicture overwrites users/<id>/profile_image.jpg and stores its
// cache-busted public URL on the profile.
func (s *UserService) UploadProfilePicture(ctx context.Context, userUUID string, src ImageSource) (string, error) {
	userID, err := s.ResolveUserID(ctx, userUUID)
	if err != nil {
		return "", err
	}

	if src.Open == nil {
		return "", apperrors.InvalidInput("image source has no content")
	}
	body, err := src.Open()
	if err != nil {
		return "", apperrors.InvalidInput("open %s: %v", src.Name, err)
	}
	defer body.Close()

	key := fmt.Sprintf("users/%d/profile_image.jpg", userID)
	uploadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.storage.Upload(uploadCtx, s.bucket, key, body, UploadOptions{
		ContentType: contentTypeOrDefault(src.ContentType),
		Upsert:      true,
	})
	cancel()
	if err != nil {
		return "", fmt.Errorf("upload profile picture: %w", err)
	}

	url := fmt.Sprintf("%s?t=%d", result.URL, s.now().UnixMilli())

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		Update graphql.MutationResult[userNode] `json:"updateusersCollection"`
	}
	vars := map[string]interface{}{"id": userID, "url": url}
	if err := s.gql.Execute(callCtx, updateProfilePictureMutation, vars, &resp); err != nil {
		return "", fmt.Errorf("update profile picture: %w", err)
	}
	if resp.Update.AffectedCount == 0 {
		return "", fmt.Errorf("user %d: %w", userID, apperrors.ErrNotFound)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"key":     key,
	}).Info("Profile picture updated")

	return url, nil
}
