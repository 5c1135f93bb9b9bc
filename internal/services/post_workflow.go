// internal/services/post_workflow.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/metrics"
	"github.com/furnigo/furnigo-api/internal/models"
)

// WorkflowState names the step a post creation run is in.
type WorkflowState string

const (
	StateIdle            WorkflowState = "idle"
	StateResolvingUser   WorkflowState = "resolving_user"
	StateCreatingPost    WorkflowState = "creating_post"
	StateUploadingImages WorkflowState = "uploading_images"
	StateFinalizingPost  WorkflowState = "finalizing_post"
	StateDone            WorkflowState = "done"
	StateFailed          WorkflowState = "failed"
)

// IdentityResolver maps an auth identifier to the numeric user key.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, userUUID string) (int64, error)
}

// ListingStore creates listings and commits their pictures.
type ListingStore interface {
	CreatePost(ctx context.Context, userID int64, draft PostDraft) (int64, error)
	SetPostImages(ctx context.Context, postID int64, urls []string) error
}

// ImageUploader stores a listing's images and reports one outcome per source.
type ImageUploader interface {
	UploadPostImages(ctx context.Context, userID, postID int64, sources []ImageSource) []UploadOutcome
}

// CreatePostInput is one post creation request.
type CreatePostInput struct {
	UserUUID string
	Draft    PostDraft
	Images   []ImageSource
}

// CreatePostResult describes how far a run got. PostID is set as soon as the
// listing exists, even when a later step fails.
type CreatePostResult struct {
	RunID      string          `json:"run_id,omitempty"`
	State      WorkflowState   `json:"state"`
	FailedStep WorkflowState   `json:"failed_step,omitempty"`
	UserID     int64           `json:"user_id,omitempty"`
	PostID     int64           `json:"post_id,omitempty"`
	Pictures   []string        `json:"pictures"`
	Outcomes   []UploadOutcome `json:"outcomes"`
	Error      string          `json:"error,omitempty"`
}

// Uploaded counts the images that were stored.
func (r *CreatePostResult) Uploaded() int {
	return len(r.Outcomes) - FailedCount(r.Outcomes)
}

// CreatePostWorkflow runs resolve, create, upload and finalize for one user at a time.
type CreatePostWorkflow struct {
	users    IdentityResolver
	posts    ListingStore
	uploader ImageUploader
	locker   UserLocker
	ledger   RunRecorder
	cfg      *config.WorkflowConfig
}

// NewCreatePostWorkflow builds a workflow. A nil locker or ledger falls back to
// an in-process lock and a no-op recorder.
func NewCreatePostWorkflow(users IdentityResolver, posts ListingStore, uploader ImageUploader, locker UserLocker, ledger RunRecorder, cfg *config.WorkflowConfig) *CreatePostWorkflow {
	if locker == nil {
		locker = NewLocalUserLocker()
	}
	if ledger == nil {
		ledger = NopRecorder{}
	}
	return &CreatePostWorkflow{
		users:    users,
		posts:    posts,
		uploader: uploader,
		locker:   locker,
		ledger:   ledger,
		cfg:      cfg,
	}
}

// run tracks a single invocation.
type run struct {
	result  *CreatePostResult
	state   WorkflowState
	orphans []string
	log     *logrus.Entry
}

func (r *run) enter(state WorkflowState) {
	r.state = state
	r.log.WithField("state", state).Debug("Post workflow transition")
}

func (r *run) fail(err error) error {
	r.result.State = StateFailed
	r.result.FailedStep = r.state
	r.result.Error = err.Error()
	r.state = StateFailed
	r.log.WithField("failed_step", r.result.FailedStep).WithError(err).Error("Post creation failed")
	return err
}

// Run creates a listing, uploads its images and commits the references that
// made it. The result is returned even on failure.
func (w *CreatePostWorkflow) Run(ctx context.Context, input CreatePostInput) (*CreatePostResult, error) {
	started := time.Now()
	r := &run{
		result: &CreatePostResult{Pictures: []string{}, Outcomes: []UploadOutcome{}},
		state:  StateIdle,
		log:    logrus.WithField("user_uuid", input.UserUUID),
	}

	err := w.run(ctx, r, input)
	if err == nil {
		r.result.State = StateDone
		r.log.WithFields(logrus.Fields{
			"user_id":  r.result.UserID,
			"post_id":  r.result.PostID,
			"pictures": len(r.result.Pictures),
		}).Info("Post created")
	}

	metrics.RecordWorkflowRun(string(r.result.State), string(r.result.FailedStep))
	w.record(ctx, r, input, time.Since(started))

	return r.result, err
}

func (w *CreatePostWorkflow) run(ctx context.Context, r *run, input CreatePostInput) error {
	release, err := w.locker.Acquire(ctx, input.UserUUID)
	if err != nil {
		return r.fail(err)
	}
	defer release()

	r.enter(StateResolvingUser)
	userID, err := step(StateResolvingUser, func() (int64, error) {
		return w.users.ResolveUserID(ctx, input.UserUUID)
	})
	if err != nil {
		return r.fail(err)
	}
	r.result.UserID = userID
	r.log = r.log.WithField("user_id", userID)

	r.enter(StateCreatingPost)
	postID, err := step(StateCreatingPost, func() (int64, error) {
		return w.posts.CreatePost(ctx, userID, input.Draft)
	})
	if err != nil {
		return r.fail(err)
	}
	r.result.PostID = postID
	r.log = r.log.WithField("post_id", postID)

	// The listing already holds an empty picture list.
	if len(input.Images) == 0 {
		return nil
	}

	r.enter(StateUploadingImages)
	var outcomes []UploadOutcome
	observe(StateUploadingImages, func() {
		outcomes = w.uploader.UploadPostImages(ctx, userID, postID, input.Images)
	})
	r.result.Outcomes = outcomes
	urls := SucceededURLs(outcomes)
	failed := FailedCount(outcomes)
	if failed > 0 {
		r.log.WithFields(logrus.Fields{
			"uploaded":  len(urls),
			"requested": len(outcomes),
		}).Warn("Some images failed to upload")
	}

	r.enter(StateFinalizingPost)
	_, err = step(StateFinalizingPost, func() (struct{}, error) {
		return struct{}{}, w.posts.SetPostImages(ctx, postID, urls)
	})
	if err != nil {
		r.orphans = SucceededKeys(outcomes)
		return r.fail(err)
	}
	r.result.Pictures = urls

	if failed > 0 && w.cfg.FailOnPartialUpload {
		r.state = StateUploadingImages
		return r.fail(fmt.Errorf("%w: %d of %d images failed", apperrors.ErrPartialUpload, failed, len(outcomes)))
	}

	return nil
}

func step[T any](state WorkflowState, fn func() (T, error)) (T, error) {
	started := time.Now()
	v, err := fn()
	metrics.ObserveWorkflowStep(string(state), err, time.Since(started))
	return v, err
}

// observe times a step that reports failures in its result instead of an error.
func observe(state WorkflowState, fn func()) {
	started := time.Now()
	fn()
	metrics.ObserveWorkflowStep(string(state), nil, time.Since(started))
}

func (w *CreatePostWorkflow) record(ctx context.Context, r *run, input CreatePostInput, elapsed time.Duration) {
	entry := &models.PostRun{
		UserUUID:        input.UserUUID,
		UserID:          r.result.UserID,
		PostID:          r.result.PostID,
		State:           string(r.result.State),
		FailedStep:      string(r.result.FailedStep),
		Error:           r.result.Error,
		ImagesRequested: len(input.Images),
		ImagesUploaded:  r.result.Uploaded(),
		Pictures:        models.StringList(r.result.Pictures),
		OrphanedKeys:    models.StringList(r.orphans),
		DurationMs:      elapsed.Milliseconds(),
	}

	// The run is recorded even when the caller has gone away.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.CallTimeout)
	defer cancel()

	if len(r.orphans) > 0 {
		r.log.WithField("orphaned_keys", r.orphans).Warn("Uploaded images were not committed to the post")
	}
	if err := w.ledger.Record(recordCtx, entry); err != nil {
		r.log.WithError(err).Error("Failed to record post run")
		return
	}
	if entry.ID != uuid.Nil {
		r.result.RunID = entry.ID.String()
	}
}
