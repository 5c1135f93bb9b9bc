// internal/models/user.go
package models

// User is a row of the store's users table. UUID is issued by the auth
// provider, ID by the store.
type User struct {
	ID                int64  `json:"id"`
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Birthday          string `json:"birthday,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}
