package validation

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/iudanet/mapkeeper/internal/models"
)

// Ошибки формы элемента
var (
	ErrUnknownElementType = errors.New("unknown element type")
	ErrMissingPoint       = errors.New("node must have coordinates")
	ErrInvalidPoint       = errors.New("node coordinates out of range")
	ErrUnexpectedPoint    = errors.New("only nodes can have coordinates")
	ErrUnexpectedMembers  = errors.New("nodes cannot have members")
	ErrInvalidWayMember   = errors.New("way members must be nodes without role")
	ErrInvalidMemberRef   = errors.New("member reference id cannot be 0")
	ErrDuplicateTagKey    = errors.New("duplicate tag key")
	ErrEmptyTagKey        = errors.New("tag key cannot be empty")
)

// ElementShape checks that the type-specific payload matches the element type.
// Deleted revisions carry no payload and are only checked for a known type.
func ElementShape(t models.ElementType, point *s2.LatLng, members []models.Member, visible bool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownElementType, uint8(t))
	}
	if !visible {
		return nil
	}

	for _, m := range members {
		if m.Ref.ID == 0 || !m.Ref.Type.Valid() {
			return ErrInvalidMemberRef
		}
	}

	switch t {
	case models.ElementTypeNode:
		if point == nil {
			return ErrMissingPoint
		}
		if !point.IsValid() {
			return ErrInvalidPoint
		}
		if len(members) > 0 {
			return ErrUnexpectedMembers
		}
	case models.ElementTypeWay:
		if point != nil {
			return ErrUnexpectedPoint
		}
		for _, m := range members {
			if m.Ref.Type != models.ElementTypeNode || m.Role != "" {
				return ErrInvalidWayMember
			}
		}
	case models.ElementTypeRelation:
		if point != nil {
			return ErrUnexpectedPoint
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownElementType, uint8(t))
	}

	return nil
}

// TagMap converts decoded tag pairs into a map. Keys must be unique and non-empty.
func TagMap(tags []models.Tag) (map[string]string, error) {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key == "" {
			return nil, ErrEmptyTagKey
		}
		if _, ok := result[tag.Key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTagKey, tag.Key)
		}
		result[tag.Key] = tag.Value
	}
	return result, nil
}
