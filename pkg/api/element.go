package api

import "time"

// Tag пара ключ-значение, порядок и дубликаты сохраняются до проверки на сервере
type Tag struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Member ссылка из списка членов way или relation
type Member struct {
	Type string `json:"type"`           // node, way или relation
	Role string `json:"role,omitempty"` // роль, только для relation
	ID   int64  `json:"id"`             // отрицательный id ссылается на placeholder этого же diff
}

// Element одна ревизия элемента
type Element struct {
	CreatedAt      time.Time         `json:"created_at"`
	Tags           map[string]string `json:"tags"`
	Lon            *float64          `json:"lon,omitempty"`
	Lat            *float64          `json:"lat,omitempty"`
	NextSequenceID *int64            `json:"next_sequence_id,omitempty"`
	Type           string            `json:"type"`
	Members        []Member          `json:"members,omitempty"`
	ID             int64             `json:"id"`
	Version        int64             `json:"version"`
	ChangesetID    int64             `json:"changeset_id"`
	SequenceID     int64             `json:"sequence_id"`
	Visible        bool              `json:"visible"`
}

// Draft одно изменение в diff.
// Version - версия, на которой основана правка: 0 для создания.
type Draft struct {
	Lon      *float64 `json:"lon,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Type     string   `json:"type"`
	Tags     []Tag    `json:"tags,omitempty"`
	Members  []Member `json:"members,omitempty"`
	ID       int64    `json:"id"`
	Version  int64    `json:"version"`
	Visible  bool     `json:"visible"`
	IfUnused bool     `json:"if_unused,omitempty"` // только для удаления
}

// UploadRequest diff для загрузки в changeset
type UploadRequest struct {
	Drafts []Draft `json:"drafts"`
}

// DiffResult сопоставляет запрошенный id с назначенным
type DiffResult struct {
	Type       string `json:"type"`
	OldID      int64  `json:"old_id"`
	NewID      int64  `json:"new_id"`
	NewVersion int64  `json:"new_version"`
	Visible    bool   `json:"visible"`
}

// SkippedElement удаление с if_unused, пропущенное потому что элемент используется
type SkippedElement struct {
	Type    string `json:"type"`
	ID      int64  `json:"id"`
	Version int64  `json:"version"`
}

// UploadResponse ответ на загрузку diff
type UploadResponse struct {
	Results []DiffResult     `json:"results"`
	Skipped []SkippedElement `json:"skipped,omitempty"`
}

// ElementsResponse список ревизий (история, родители)
type ElementsResponse struct {
	Elements []Element `json:"elements"`
}
