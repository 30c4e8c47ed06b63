// Package data готовит локальные правки к отправке: проверяет и кладет их в outbox.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/golang/geo/s2"

	"github.com/iudanet/mapkeeper/internal/client/storage"
	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/validation"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// ErrNoDrafts возвращается, если во входных данных нет ни одной правки
var ErrNoDrafts = errors.New("no drafts in input")

// Service проверяет правки и управляет outbox
type Service struct {
	outbox storage.OutboxStorage
}

// NewService создает сервис правок
func NewService(outbox storage.OutboxStorage) *Service {
	return &Service{outbox: outbox}
}

// Summary количество правок в outbox по видам
type Summary struct {
	Creates  int
	Modifies int
	Deletes  int
}

// Total общее число правок
func (s Summary) Total() int {
	return s.Creates + s.Modifies + s.Deletes
}

// Stage читает правки из r и добавляет их в outbox.
// Принимает тело запроса upload ({"drafts": [...]}) или просто массив правок.
// Если хоть одна правка некорректна, ничего не добавляется.
func (s *Service) Stage(ctx context.Context, r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read drafts: %w", err)
	}

	drafts, err := decodeDrafts(raw)
	if err != nil {
		return 0, err
	}

	for i, d := range drafts {
		if err := CheckDraft(d); err != nil {
			return 0, fmt.Errorf("draft %d (%s %d): %w", i, d.Type, d.ID, err)
		}
	}

	if err := s.outbox.Stage(ctx, drafts); err != nil {
		return 0, fmt.Errorf("failed to stage drafts: %w", err)
	}

	return len(drafts), nil
}

func decodeDrafts(raw []byte) ([]api.Draft, error) {
	var drafts []api.Draft
	if err := json.Unmarshal(raw, &drafts); err != nil {
		var req api.UploadRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("failed to decode drafts: %w", err)
		}
		drafts = req.Drafts
	}
	if len(drafts) == 0 {
		return nil, ErrNoDrafts
	}
	return drafts, nil
}

// CheckDraft выполняет проверки, не требующие состояния сервера:
// форму элемента, уникальность тегов и согласованность id с версией
func CheckDraft(d api.Draft) error {
	t, err := models.ParseElementType(d.Type)
	if err != nil {
		return err
	}

	if (d.Lon == nil) != (d.Lat == nil) {
		return errors.New("lon and lat must be set together")
	}
	var point *s2.LatLng
	if d.Lon != nil {
		point = models.NewPoint(*d.Lon, *d.Lat)
	}

	members := make([]models.Member, len(d.Members))
	for i, m := range d.Members {
		mt, err := models.ParseElementType(m.Type)
		if err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
		members[i] = models.Member{Order: i, Role: m.Role, Ref: models.ElementRef{Type: mt, ID: m.ID}}
	}

	switch {
	case d.ID == 0:
		return errors.New("id cannot be 0")
	case d.ID < 0 && d.Version != 0:
		return errors.New("new element must have version 0")
	case d.ID < 0 && !d.Visible:
		return errors.New("new element cannot be a delete")
	case d.ID > 0 && d.Version <= 0:
		return errors.New("existing element needs its current version")
	case d.IfUnused && d.Visible:
		return errors.New("if_unused only applies to deletes")
	}

	if err := validation.ElementShape(t, point, members, d.Visible); err != nil {
		return err
	}

	tags := make([]models.Tag, len(d.Tags))
	for i, tag := range d.Tags {
		tags[i] = models.Tag{Key: tag.Key, Value: tag.Value}
	}
	if _, err := validation.TagMap(tags); err != nil {
		return err
	}

	return nil
}

// Pending возвращает правки в outbox и их сводку
func (s *Service) Pending(ctx context.Context) ([]storage.StagedDraft, Summary, error) {
	staged, err := s.outbox.Pending(ctx)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("failed to get pending drafts: %w", err)
	}

	var sum Summary
	for _, d := range staged {
		switch {
		case d.Draft.ID < 0:
			sum.Creates++
		case !d.Draft.Visible:
			sum.Deletes++
		default:
			sum.Modifies++
		}
	}

	return staged, sum, nil
}

// Discard удаляет все правки из outbox
func (s *Service) Discard(ctx context.Context) (int, error) {
	staged, err := s.outbox.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending drafts: %w", err)
	}
	if len(staged) == 0 {
		return 0, nil
	}

	if err := s.outbox.Clear(ctx, staged[len(staged)-1].Seq); err != nil {
		return 0, fmt.Errorf("failed to discard drafts: %w", err)
	}

	return len(staged), nil
}
