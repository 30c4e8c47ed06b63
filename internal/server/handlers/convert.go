package handlers

import (
	"fmt"

	"github.com/iudanet/mapkeeper/internal/diff"
	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// draftFromAPI декодирует одно изменение diff.
// Проверки формы и тегов выполняет diff.Preparer.
func draftFromAPI(d api.Draft) (diff.Draft, error) {
	t, err := models.ParseElementType(d.Type)
	if err != nil {
		return diff.Draft{}, err
	}

	draft := diff.Draft{
		Ref:      models.ElementRef{Type: t, ID: d.ID},
		Version:  d.Version,
		Visible:  d.Visible,
		IfUnused: d.IfUnused,
	}

	if (d.Lon == nil) != (d.Lat == nil) {
		return diff.Draft{}, fmt.Errorf("%s: lon and lat must be set together", draft.Ref)
	}
	if d.Lon != nil {
		draft.Point = models.NewPoint(*d.Lon, *d.Lat)
	}

	if len(d.Tags) > 0 {
		draft.Tags = make([]models.Tag, len(d.Tags))
		for i, tag := range d.Tags {
			draft.Tags[i] = models.Tag{Key: tag.Key, Value: tag.Value}
		}
	}

	if len(d.Members) > 0 {
		draft.Members = make([]models.Member, len(d.Members))
		for i, m := range d.Members {
			mt, err := models.ParseElementType(m.Type)
			if err != nil {
				return diff.Draft{}, fmt.Errorf("%s member %d: %w", draft.Ref, i, err)
			}
			draft.Members[i] = models.Member{
				Order: i,
				Role:  m.Role,
				Ref:   models.ElementRef{Type: mt, ID: m.ID},
			}
		}
	}

	return draft, nil
}

func elementToAPI(e *models.Element) api.Element {
	out := api.Element{
		CreatedAt:      e.CreatedAt,
		Tags:           e.Tags,
		NextSequenceID: e.NextSequenceID,
		Type:           e.Type.String(),
		ID:             e.ID,
		Version:        e.Version,
		ChangesetID:    e.ChangesetID,
		SequenceID:     e.SequenceID,
		Visible:        e.Visible,
	}
	if out.Tags == nil {
		out.Tags = map[string]string{}
	}
	if e.Point != nil {
		lon, lat := e.Point.Lng.Degrees(), e.Point.Lat.Degrees()
		out.Lon, out.Lat = &lon, &lat
	}
	for _, m := range e.Members {
		out.Members = append(out.Members, api.Member{Type: m.Ref.Type.String(), ID: m.Ref.ID, Role: m.Role})
	}
	return out
}

func elementsToAPI(elements []*models.Element) []api.Element {
	out := make([]api.Element, len(elements))
	for i, e := range elements {
		out[i] = elementToAPI(e)
	}
	return out
}

func changesetToAPI(cs *models.Changeset) api.Changeset {
	tags := cs.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return api.Changeset{
		CreatedAt: cs.CreatedAt,
		UpdatedAt: cs.UpdatedAt,
		ClosedAt:  cs.ClosedAt,
		Tags:      tags,
		UserID:    cs.UserID,
		ID:        cs.ID,
		Size:      cs.Size,
		NumCreate: cs.NumCreate,
		NumModify: cs.NumModify,
		NumDelete: cs.NumDelete,
		Open:      cs.IsOpen(),
	}
}

// uploadResponse строит diffResult в порядке запроса: по одной строке на каждую новую ревизию
func uploadResponse(drafts []diff.Draft, result *diff.Result) api.UploadResponse {
	resp := api.UploadResponse{Results: []api.DiffResult{}}
	next := make(map[models.ElementRef]int)

	for _, d := range drafts {
		revisions := result.Assigned[d.Ref]
		i := next[d.Ref]
		if i >= len(revisions) {
			// пропущенное удаление
			continue
		}
		next[d.Ref] = i + 1

		e := revisions[i]
		resp.Results = append(resp.Results, api.DiffResult{
			Type:       e.Type.String(),
			OldID:      d.Ref.ID,
			NewID:      e.ID,
			NewVersion: e.Version,
			Visible:    e.Visible,
		})
	}

	for _, s := range result.Skipped {
		resp.Skipped = append(resp.Skipped, api.SkippedElement{
			Type:    s.Ref.Type.String(),
			ID:      s.Ref.ID,
			Version: s.Version,
		})
	}

	return resp
}
