package api

import "time"

// CreateChangesetRequest открывает новый changeset
type CreateChangesetRequest struct {
	Tags map[string]string `json:"tags"`
}

// Changeset представляет changeset в ответах сервера
type Changeset struct {
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
	Tags      map[string]string `json:"tags"`
	UserID    string            `json:"user_id"`
	ID        int64             `json:"id"`
	Size      int64             `json:"size"`
	NumCreate int64             `json:"num_create"`
	NumModify int64             `json:"num_modify"`
	NumDelete int64             `json:"num_delete"`
	Open      bool              `json:"open"`
}
