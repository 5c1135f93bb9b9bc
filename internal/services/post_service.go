// internal/services/post_service.go
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/graphql"
	"github.com/furnigo/furnigo-api/internal/models"
	"github.com/furnigo/furnigo-api/internal/utils"
)

const (
	postFields = `id user_id title description price location pictures category condition status ar_obj_id created_at`

	insertPostMutation = `
		mutation InsertPost($objects: [postsInsertInput!]!) {
			insertIntopostsCollection(objects: $objects) {
				affectedCount
				records { id }
			}
		}`

	getLatestPostQuery = `
		query GetLatestPost($userId: Int!) {
			postsCollection(
				filter: { user_id: { eq: $userId } }
				orderBy: [{ created_at: DescNullsLast }]
				first: 1
			) {
				edges { node { id } }
			}
		}`

	updatePostImagesMutation = `
		mutation UpdatePostImages($postId: Int!, $pictures: [String]) {
			updatepostsCollection(filter: { id: { eq: $postId } }, set: { pictures: $pictures }) {
				affectedCount
			}
		}`

	getPostsQuery = `
		query GetPosts($first: Int!, $offset: Int!, $filter: postsFilter) {
			postsCollection(
				filter: $filter
				orderBy: [{ created_at: DescNullsLast }]
				first: $first
				offset: $offset
			) {
				edges { node { ` + postFields + ` } }
				pageInfo { hasNextPage }
			}
		}`

	getPostQuery = `
		query GetPost($postId: Int!) {
			postsCollection(filter: { id: { eq: $postId } }, first: 1) {
				edges { node { ` + postFields + ` } }
			}
		}`
)

// PostDraft carries the listing fields as entered. Price is free text.
type PostDraft struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
	Price       string `form:"price" json:"price"`
	Location    string `form:"location" json:"location"`
	Category    string `form:"category" json:"category"`
	Condition   string `form:"condition" json:"condition"`
	ARObjectID  *int64 `form:"ar_obj_id" json:"ar_obj_id"`
}

// newPost is the validated form of a PostDraft.
type newPost struct {
	Title       string           `validate:"required,max=200"`
	Description string           `validate:"required"`
	Price       int              `validate:"gte=0"`
	Location    string           `validate:"max=200"`
	Category    models.Category  `validate:"required,post_category"`
	Condition   models.Condition `validate:"required,post_condition"`
	ARObjectID  *int64
}

type PostService struct {
	gql     graphql.Executor
	timeout time.Duration
}

type postNode struct {
	ID          graphql.ID  `json:"id"`
	UserID      graphql.ID  `json:"user_id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Price       *int        `json:"price"`
	Location    *string     `json:"location"`
	Pictures    []string    `json:"pictures"`
	Category    string      `json:"category"`
	Condition   string      `json:"condition"`
	Status      string      `json:"status"`
	ARObjectID  *graphql.ID `json:"ar_obj_id"`
	CreatedAt   string      `json:"created_at"`
}

func (n postNode) toModel() *models.Post {
	p := &models.Post{
		ID:        int64(n.ID),
		UserID:    int64(n.UserID),
		Title:     n.Title,
		Pictures:  n.Pictures,
		Category:  models.Category(n.Category),
		Condition: models.Condition(n.Condition),
		Status:    models.PostStatus(n.Status),
		CreatedAt: parseTimestamp(n.CreatedAt),
	}
	if p.Pictures == nil {
		p.Pictures = []string{}
	}
	if n.Description != nil {
		p.Description = *n.Description
	}
	if n.Price != nil {
		p.Price = *n.Price
	}
	if n.Location != nil {
		p.Location = *n.Location
	}
	if n.ARObjectID != nil {
		id := int64(*n.ARObjectID)
		p.ARObjectID = &id
	}
	return p
}

// Timestamps come back with or without a zone depending on the column type.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func NewPostService(gql graphql.Executor, workflowCfg *config.WorkflowConfig) *PostService {
	return &PostService{
		gql:     gql,
		timeout: workflowCfg.CallTimeout,
	}
}

// ParsePrice treats an empty price as 0. Anything that is not a
// non-negative integer is rejected.
func ParsePrice(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	price, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput("price %q is not a whole number", raw)
	}
	if price < 0 {
		return 0, apperrors.InvalidInput("price %d is negative", price)
	}
	return price, nil
}

func (d PostDraft) validate() (*newPost, error) {
	price, err := ParsePrice(d.Price)
	if err != nil {
		return nil, err
	}
	if d.ARObjectID != nil && *d.ARObjectID <= 0 {
		return nil, apperrors.InvalidInput("invalid AR object id %d", *d.ARObjectID)
	}

	p := &newPost{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Price:       price,
		Location:    strings.TrimSpace(d.Location),
		Category:    models.Category(d.Category),
		Condition:   models.Condition(d.Condition),
		ARObjectID:  d.ARObjectID,
	}
	if err := utils.ValidateStruct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return p, nil
}

// CreatePost inserts a listing with no pictures and returns its key.
func (s *PostService) CreatePost(ctx context.Context, userID int64, draft PostDraft) (int64, error) {
	if userID <= 0 {
		return 0, apperrors.InvalidInput("invalid user key %d", userID)
	}

	p, err := draft.validate()
	if err != nil {
		return 0, err
	}

	object := map[string]interface{}{
		"user_id":     userID,
		"title":       p.Title,
		"description": p.Description,
		"price":       p.Price,
		"location":    p.Location,
		"pictures":    []string{},
		"category":    string(p.Category),
		"condition":   string(p.Condition),
		"status":      string(models.PostStatusAvailable),
		"ar_obj_id":   p.ARObjectID,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		Insert graphql.MutationResult[postNode] `json:"insertIntopostsCollection"`
	}
	vars := map[string]interface{}{"objects": []interface{}{object}}
	if err := s.gql.Execute(callCtx, insertPostMutation, vars, &resp); err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}

	if resp.Insert.AffectedCount == 0 {
		return 0, fmt.Errorf("create post: %w: no row inserted", apperrors.ErrTransport)
	}

	if len(resp.Insert.Records) > 0 {
		postID := int64(resp.Insert.Records[0].ID)
		if postID <= 0 {
			return 0, fmt.Errorf("create post: %w: non-positive id %d", apperrors.ErrTransport, postID)
		}
		return postID, nil
	}

	logrus.WithField("user_id", userID).Warn("Insert returned no records, looking up latest post")
	return s.latestPostID(ctx, userID)
}

// latestPostID picks the user's most recent post. Callers hold the user's
// creation lock so no other insert can interleave.
func (s *PostService) latestPostID(ctx context.Context, userID int64) (int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		PostsCollection graphql.Connection[postNode] `json:"postsCollection"`
	}
	if err := s.gql.Execute(callCtx, getLatestPostQuery, map[string]interface{}{"userId": userID}, &resp); err != nil {
		return 0, fmt.Errorf("latest post: %w", err)
	}

	nodes := resp.PostsCollection.Nodes()
	if len(nodes) == 0 {
		return 0, fmt.Errorf("latest post of user %d: %w", userID, apperrors.ErrNotFound)
	}
	return int64(nodes[0].ID), nil
}

// SetPostImages replaces the post's picture list.
func (s *PostService) SetPostImages(ctx context.Context, postID int64, urls []string) error {
	if urls == nil {
		urls = []string{}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		Update graphql.MutationResult[postNode] `json:"updatepostsCollection"`
	}
	vars := map[string]interface{}{"postId": postID, "pictures": urls}
	if err := s.gql.Execute(callCtx, updatePostImagesMutation, vars, &resp); err != nil {
		return fmt.Errorf("set post images: %w", err)
	}

	if resp.Update.AffectedCount == 0 {
		return fmt.Errorf("post %d: %w", postID, apperrors.ErrNotFound)
	}

	return nil
}

func (s *PostService) ListPosts(ctx context.Context, params utils.PaginationParams) ([]*models.Post, bool, error) {
	params = utils.NormalizePagination(params)

	filter := map[string]interface{}{}
	if params.Category != "" {
		if !models.Category(params.Category).Valid() {
			return nil, false, apperrors.InvalidInput("unknown category %q", params.Category)
		}
		filter["category"] = map[string]interface{}{"eq": params.Category}
	}
	if params.Status != "" {
		filter["status"] = map[string]interface{}{"eq": params.Status}
	}

	vars := map[string]interface{}{
		"first":  params.Limit,
		"offset": params.Offset(),
	}
	if len(filter) > 0 {
		vars["filter"] = filter
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		PostsCollection graphql.Connection[postNode] `json:"postsCollection"`
	}
	if err := s.gql.Execute(callCtx, getPostsQuery, vars, &resp); err != nil {
		return nil, false, fmt.Errorf("list posts: %w", err)
	}

	nodes := resp.PostsCollection.Nodes()
	posts := make([]*models.Post, 0, len(nodes))
	for _, n := range nodes {
		posts = append(posts, n.toModel())
	}

	return posts, resp.PostsCollection.PageInfo.HasNextPage, nil
}

func (s *PostService) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp struct {
		PostsCollection graphql.Connection[postNode] `json:"postsCollection"`
	}
	if err := s.gql.Execute(callCtx, getPostQuery, map[string]interface{}{"postId": postID}, &resp); err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	nodes := resp.PostsCollection.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("post %d: %w", postID, apperrors.ErrNotFound)
	}
	return nodes[0].toModel(), nil
}
