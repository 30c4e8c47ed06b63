package models

import "time"

// Changeset логическая группа правок одного пользователя.
// Строка изменяется на месте, но только под optimistic проверкой UpdatedAt.
type Changeset struct {
	CreatedAt time.Time         `json:"created_at"`          // CreatedAt время открытия
	UpdatedAt time.Time         `json:"updated_at"`          // UpdatedAt время последнего применения diff
	ClosedAt  *time.Time        `json:"closed_at,omitempty"` // ClosedAt nil пока changeset открыт
	Tags      map[string]string `json:"tags"`
	UserID    string            `json:"user_id"` // UserID владелец
	ID        int64             `json:"id"`
	Size      int64             `json:"size"`       // Size накопленное число затронутых элементов
	NumCreate int64             `json:"num_create"` // NumCreate созданные ревизии
	NumModify int64             `json:"num_modify"` // NumModify измененные ревизии
	NumDelete int64             `json:"num_delete"` // NumDelete удаленные ревизии
}

// IsOpen reports whether the changeset still accepts edits.
func (c *Changeset) IsOpen() bool {
	return c.ClosedAt == nil
}

// Close marks the changeset closed at now. Closing twice keeps the first time.
func (c *Changeset) Close(now time.Time) {
	if c.ClosedAt != nil {
		return
	}
	closedAt := now
	c.ClosedAt = &closedAt
}

// AutoCloseOnSize closes the changeset once its size reached maxSize.
// Returns true if this call closed it.
func (c *Changeset) AutoCloseOnSize(now time.Time, maxSize int64) bool {
	if c.ClosedAt != nil || c.Size < maxSize {
		return false
	}
	c.Close(now)
	return true
}

// Clone создает копию changeset
func (c *Changeset) Clone() *Changeset {
	cc := *c
	if c.ClosedAt != nil {
		closedAt := *c.ClosedAt
		cc.ClosedAt = &closedAt
	}
	if c.Tags != nil {
		cc.Tags = make(map[string]string, len(c.Tags))
		for k, v := range c.Tags {
			cc.Tags[k] = v
		}
	}
	return &cc
}
