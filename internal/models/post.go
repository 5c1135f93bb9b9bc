// internal/models/post.go
package models

import "time"

// Post is a marketplace listing.
type Post struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int        `json:"price"`
	Location    string     `json:"location"`
	Pictures    []string   `json:"pictures"`
	Category    Category   `json:"category"`
	Condition   Condition  `json:"condition"`
	Status      PostStatus `json:"status"`
	ARObjectID  *int64     `json:"ar_obj_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (p *Post) IsSold() bool {
	return p.Status != PostStatusAvailable
}
