package data

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mapkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/mapkeeper/internal/validation"
	"github.com/iudanet/mapkeeper/pkg/api"
)

func newTestService(t *testing.T) *Service {
	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "data_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store)
}

func ptr(v float64) *float64 { return &v }

func TestService_StageUploadRequest(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	input := `{"drafts": [
		{"type": "node", "id": -1, "version": 0, "visible": true, "lon": 37.6, "lat": 55.7, "tags": [{"k": "amenity", "v": "cafe"}]},
		{"type": "node", "id": -2, "version": 0, "visible": true, "lon": 37.61, "lat": 55.71},
		{"type": "way", "id": -1, "version": 0, "visible": true, "members": [{"type": "node", "id": -1}, {"type": "node", "id": -2}]},
		{"type": "node", "id": 10, "version": 3, "visible": true, "lon": 1, "lat": 2},
		{"type": "node", "id": 11, "version": 1, "visible": false, "if_unused": true}
	]}`

	n, err := svc.Stage(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	staged, sum, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 5)
	assert.Equal(t, Summary{Creates: 3, Modifies: 1, Deletes: 1}, sum)
	assert.Equal(t, 5, sum.Total())
	assert.Equal(t, "way", staged[2].Draft.Type)
	assert.True(t, staged[4].Draft.IfUnused)
}

func TestService_StageArray(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	n, err := svc.Stage(ctx, strings.NewReader(`[{"type": "relation", "id": -1, "visible": true, "members": [{"type": "way", "id": 5, "role": "outer"}]}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_StageRejectsWholeInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	input := `[
		{"type": "node", "id": -1, "visible": true, "lon": 1, "lat": 1},
		{"type": "way", "id": -1, "visible": true, "lon": 1, "lat": 1}
	]`

	_, err := svc.Stage(ctx, strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, validation.ErrUnexpectedPoint)
	assert.Contains(t, err.Error(), "draft 1")

	staged, _, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestService_StageInvalidInput(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty array", input: `[]`, want: ErrNoDrafts},
		{name: "empty request", input: `{"drafts": []}`, want: ErrNoDrafts},
		{name: "not json", input: `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Stage(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckDraft(t *testing.T) {
	tests := []struct {
		name    string
		draft   api.Draft
		wantErr error
		wantMsg string
	}{
		{
			name:  "valid node create",
			draft: api.Draft{Type: "node", ID: -1, Visible: true, Lon: ptr(10), Lat: ptr(20)},
		},
		{
			name:  "valid delete",
			draft: api.Draft{Type: "way", ID: 7, Version: 2},
		},
		{
			name:    "unknown type",
			draft:   api.Draft{Type: "area", ID: -1, Visible: true},
			wantMsg: "area",
		},
		{
			name:    "zero id",
			draft:   api.Draft{Type: "node", Visible: true, Lon: ptr(1), Lat: ptr(1)},
			wantMsg: "id cannot be 0",
		},
		{
			name:    "create with version",
			draft:   api.Draft{Type: "node", ID: -1, Version: 1, Visible: true, Lon: ptr(1), Lat: ptr(1)},
			wantMsg: "version 0",
		},
		{
			name:    "create as delete",
			draft:   api.Draft{Type: "node", ID: -1},
			wantMsg: "cannot be a delete",
		},
		{
			name:    "modify without version",
			draft:   api.Draft{Type: "node", ID: 5, Visible: true, Lon: ptr(1), Lat: ptr(1)},
			wantMsg: "current version",
		},
		{
			name:    "if_unused on modify",
			draft:   api.Draft{Type: "node", ID: 5, Version: 1, Visible: true, IfUnused: true, Lon: ptr(1), Lat: ptr(1)},
			wantMsg: "if_unused",
		},
		{
			name:    "half a point",
			draft:   api.Draft{Type: "node", ID: -1, Visible: true, Lon: ptr(1)},
			wantMsg: "together",
		},
		{
			name:    "node without point",
			draft:   api.Draft{Type: "node", ID: -1, Visible: true},
			wantErr: validation.ErrMissingPoint,
		},
		{
			name:    "latitude out of range",
			draft:   api.Draft{Type: "node", ID: -1, Visible: true, Lon: ptr(0), Lat: ptr(91)},
			wantErr: validation.ErrInvalidPoint,
		},
		{
			name: "way with relation member",
			draft: api.Draft{Type: "way", ID: -1, Visible: true, Members: []api.Member{
				{Type: "relation", ID: 1},
			}},
			wantErr: validation.ErrInvalidWayMember,
		},
		{
			name: "duplicate tag",
			draft: api.Draft{Type: "node", ID: -1, Visible: true, Lon: ptr(1), Lat: ptr(1), Tags: []api.Tag{
				{Key: "name", Value: "a"}, {Key: "name", Value: "b"},
			}},
			wantErr: validation.ErrDuplicateTagKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDraft(tt.draft)
			if tt.wantErr == nil && tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestService_Discard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	n, err := svc.Discard(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Stage(ctx, strings.NewReader(`[{"type": "node", "id": 3, "version": 1}, {"type": "node", "id": 4, "version": 2}]`))
	require.NoError(t, err)

	n, err = svc.Discard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	staged, sum, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, staged)
	assert.Zero(t, sum.Total())
}
