package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/furnigo/furnigo-api/internal/apperrors"
	"github.com/furnigo/furnigo-api/internal/config"
	"github.com/furnigo/furnigo-api/internal/graphql"
)

type userRow struct {
	ID                int64   `json:"id"`
	UUID              string  `json:"uuid"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Birthday          *string `json:"birthday"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

type postRow struct {
	ID          int64    `json:"id"`
	UserID      int64    `json:"user_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int      `json:"price"`
	Location    string   `json:"location"`
	Pictures    []string `json:"pictures"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Status      string   `json:"status"`
	ARObjectID  *int64   `json:"ar_obj_id"`
	CreatedAt   string   `json:"created_at"`
}

// fakeStore answers the GraphQL documents used by the services from memory.
type fakeStore struct {
	mu sync.Mutex

	users      map[string]*userRow
	posts      map[int64]*postRow
	nextPostID int64

	// fail makes the named operation return the error.
	fail map[string]error
	// omitRecords drops `records` from insert responses.
	omitRecords bool
	// refuseInsert reports affectedCount 0 for inserts.
	refuseInsert bool

	calls []string
	vars  map[string]map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]*userRow),
		posts:      make(map[int64]*postRow),
		nextPostID: 100,
		fail:       make(map[string]error),
		vars:       make(map[string]map[string]interface{}),
	}
}

func (f *fakeStore) addUser(id int64, uuid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[uuid] = &userRow{ID: id, UUID: uuid, Name: "User", Email: fmt.Sprintf("user%d@example.com", id)}
}

func (f *fakeStore) addPost(p postRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Pictures == nil {
		p.Pictures = []string{}
	}
	f.posts[p.ID] = &p
}

func (f *fakeStore) post(id int64) *postRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[id]
}

func (f *fakeStore) called(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == op {
			return true
		}
	}
	return false
}

func (f *fakeStore) Execute(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	op := graphql.OperationName(query)

	// Normalise variables the way they would travel over the wire.
	raw, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	var v map[string]interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.vars[op] = v
	failure := f.fail[op]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.FromContext(op, err)
	}
	if failure != nil {
		return failure
	}

	data, err := f.dispatch(op, v)
	if err != nil {
		return err
	}

	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func edges(nodes ...interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, map[string]interface{}{"node": n})
	}
	return out
}

func (f *fakeStore) dispatch(op string, v map[string]interface{}) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch op {
	case "GetUserId", "GetUser":
		var found []interface{}
		if u, ok := f.users[fmt.Sprint(v["uuid"])]; ok {
			found = append(found, u)
		}
		return map[string]interface{}{"usersCollection": map[string]interface{}{"edges": edges(found...)}}, nil

	case "InsertUser":
		obj := v["objects"].([]interface{})[0].(map[string]interface{})
		u := &userRow{
			ID:    int64(len(f.users) + 1),
			UUID:  fmt.Sprint(obj["uuid"]),
			Name:  fmt.Sprint(obj["name"]),
			Email: fmt.Sprint(obj["email"]),
		}
		if b, ok := obj["birthday"].(string); ok {
			u.Birthday = &b
		}
		f.users[u.UUID] = u
		return map[string]interface{}{"insertIntousersCollection": map[string]interface{}{
			"affectedCount": 1,
			"records":       []interface{}{u},
		}}, nil

	case "UpdateUser":
		u, ok := f.users[fmt.Sprint(v["uuid"])]
		if ok {
			set := v["set"].(map[string]interface{})
			if s, ok := set["name"].(string); ok {
				u.Name = s
			}
			if s, ok := set["email"].(string); ok {
				u.Email = s
			}
			if s, ok := set["birthday"].(string); ok {
				u.Birthday = &s
			}
		}
		return affected("updateusersCollection", ok), nil

	case "UpdateProfilePicture":
		id := int64(v["id"].(float64))
		for _, u := range f.users {
			if u.ID == id {
				url := fmt.Sprint(v["url"])
				u.ProfilePictureURL = &url
				return affected("updateusersCollection", true), nil
			}
		}
		return affected("updateusersCollection", false), nil

	case "InsertPost":
		if f.refuseInsert {
			return affected("insertIntopostsCollection", false), nil
		}
		obj := v["objects"].([]interface{})[0].(map[string]interface{})
		f.nextPostID++
		p := &postRow{
			ID:          f.nextPostID,
			UserID:      int64(obj["user_id"].(float64)),
			Title:       fmt.Sprint(obj["title"]),
			Description: fmt.Sprint(obj["description"]),
			Price:       int(obj["price"].(float64)),
			Location:    fmt.Sprint(obj["location"]),
			Pictures:    []string{},
			Category:    fmt.Sprint(obj["category"]),
			Condition:   fmt.Sprint(obj["condition"]),
			Status:      fmt.Sprint(obj["status"]),
			CreatedAt:   fmt.Sprintf("2026-10-15T10:00:%02d.123456", f.nextPostID%60),
		}
		if ar, ok := obj["ar_obj_id"].(float64); ok {
			id := int64(ar)
			p.ARObjectID = &id
		}
		f.posts[p.ID] = p
		result := map[string]interface{}{"affectedCount": 1}
		if !f.omitRecords {
			result["records"] = []interface{}{map[string]interface{}{"id": fmt.Sprint(p.ID)}}
		}
		return map[string]interface{}{"insertIntopostsCollection": result}, nil

	case "GetLatestPost":
		userID := int64(v["userId"].(float64))
		var latest *postRow
		for _, p := range f.posts {
			if p.UserID == userID && (latest == nil || p.ID > latest.ID) {
				latest = p
			}
		}
		var found []interface{}
		if latest != nil {
			found = append(found, map[string]interface{}{"id": latest.ID})
		}
		return map[string]interface{}{"postsCollection": map[string]interface{}{"edges": edges(found...)}}, nil

	case "UpdatePostImages":
		p, ok := f.posts[int64(v["postId"].(float64))]
		if ok {
			p.Pictures = []string{}
			for _, u := range v["pictures"].([]interface{}) {
				p.Pictures = append(p.Pictures, u.(string))
			}
		}
		return affected("updatepostsCollection", ok), nil

	case "GetPosts":
		all := make([]*postRow, 0, len(f.posts))
		filter, _ := v["filter"].(map[string]interface{})
		for _, p := range f.posts {
			if matches(filter, "category", p.Category) && matches(filter, "status", p.Status) {
				all = append(all, p)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

		first, offset := int(v["first"].(float64)), int(v["offset"].(float64))
		page := []interface{}{}
		for i := offset; i < len(all) && i < offset+first; i++ {
			page = append(page, all[i])
		}
		return map[string]interface{}{"postsCollection": map[string]interface{}{
			"edges":    edges(page...),
			"pageInfo": map[string]interface{}{"hasNextPage": offset+first < len(all)},
		}}, nil

	case "GetPost":
		var found []interface{}
		if p, ok := f.posts[int64(v["postId"].(float64))]; ok {
			found = append(found, p)
		}
		return map[string]interface{}{"postsCollection": map[string]interface{}{"edges": edges(found...)}}, nil
	}

	return nil, fmt.Errorf("unexpected operation %s", op)
}

func affected(field string, ok bool) map[string]interface{} {
	n := 0
	if ok {
		n = 1
	}
	return map[string]interface{}{field: map[string]interface{}{"affectedCount": n}}
}

func matches(filter map[string]interface{}, field, value string) bool {
	cond, ok := filter[field].(map[string]interface{})
	if !ok {
		return true
	}
	return cond["eq"] == value
}

// blockingExecutor never answers before the deadline.
type blockingExecutor struct{}

func (blockingExecutor) Execute(ctx context.Context, query string, _ map[string]interface{}, _ interface{}) error {
	<-ctx.Done()
	return apperrors.FromContext(graphql.OperationName(query), ctx.Err())
}

var (
	pngBytes  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
)

func testWorkflowConfig() *config.WorkflowConfig {
	return &config.WorkflowConfig{
		CallTimeout:       2 * time.Second,
		UploadTimeout:     2 * time.Second,
		LockTTL:           time.Minute,
		UploadConcurrency: 1,
	}
}

func testStorageConfig(t *testing.T) *config.StorageConfig {
	t.Helper()
	return &config.StorageConfig{
		PublicURL:      "http://localhost:8080",
		PostBucket:     "post-images",
		ProfileBucket:  "profile-pictures",
		CacheControl:   "max-age=3600",
		MaxUploadBytes: 1 << 20,
		LocalDir:       t.TempDir(),
	}
}

func newLocalStorage(t *testing.T, cfg *config.StorageConfig) *StorageService {
	t.Helper()
	s, err := NewStorageService(cfg)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	return s
}
