package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

// ElementType закрытое перечисление типов элементов карты.
// Любой switch по типу должен перечислять все три варианта.
type ElementType uint8

const (
	ElementTypeNode     ElementType = iota + 1 // точка с координатами
	ElementTypeWay                             // упорядоченный список точек
	ElementTypeRelation                        // составной элемент из любых элементов с ролями
)

// String returns the lowercase type name used in storage and on the wire.
func (t ElementType) String() string {
	switch t {
	case ElementTypeNode:
		return "node"
	case ElementTypeWay:
		return "way"
	case ElementTypeRelation:
		return "relation"
	default:
		return fmt.Sprintf("ElementType(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case ElementTypeNode, ElementTypeWay, ElementTypeRelation:
		return true
	default:
		return false
	}
}

// ParseElementType parses "node", "way", "relation" or their one-letter forms.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "node", "n":
		return ElementTypeNode, nil
	case "way", "w":
		return ElementTypeWay, nil
	case "relation", "r":
		return ElementTypeRelation, nil
	default:
		return 0, fmt.Errorf("unknown element type %q", s)
	}
}

// ElementTypes lists all element types in their canonical order.
func ElementTypes() []ElementType {
	return []ElementType{ElementTypeNode, ElementTypeWay, ElementTypeRelation}
}

// ElementRef идентифицирует элемент независимо от версии.
// Отрицательный ID - placeholder, действительный только внутри одного diff.
type ElementRef struct {
	Type ElementType `json:"type"`
	ID   int64       `json:"id"`
}

// IsPlaceholder reports whether the ref carries a batch-local id.
func (r ElementRef) IsPlaceholder() bool {
	return r.ID < 0
}

// String produces the short form, e.g. "n123" or "w-1".
func (r ElementRef) String() string {
	return r.Type.String()[:1] + strconv.FormatInt(r.ID, 10)
}

// ParseElementRef parses the short form produced by ElementRef.String.
func ParseElementRef(s string) (ElementRef, error) {
	if len(s) < 2 {
		return ElementRef{}, fmt.Errorf("invalid element ref %q", s)
	}

	t, err := ParseElementType(s[:1])
	if err != nil {
		return ElementRef{}, err
	}

	id, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil {
		return ElementRef{}, fmt.Errorf("invalid element id in %q: %w", s, err)
	}
	if id == 0 {
		return ElementRef{}, fmt.Errorf("element id cannot be 0")
	}

	return ElementRef{Type: t, ID: id}, nil
}

// VersionedElementRef указывает на одну неизменяемую ревизию элемента.
type VersionedElementRef struct {
	ElementRef
	Version int64 `json:"version"`
}

// String produces e.g. "n123v1".
func (r VersionedElementRef) String() string {
	return r.ElementRef.String() + "v" + strconv.FormatInt(r.Version, 10)
}

// ParseVersionedElementRef parses the form produced by VersionedElementRef.String.
func ParseVersionedElementRef(s string) (VersionedElementRef, error) {
	i := strings.LastIndexByte(s, 'v')
	if i < 0 {
		return VersionedElementRef{}, fmt.Errorf("invalid versioned element ref %q", s)
	}

	ref, err := ParseElementRef(s[:i])
	if err != nil {
		return VersionedElementRef{}, err
	}

	version, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return VersionedElementRef{}, fmt.Errorf("invalid version in %q: %w", s, err)
	}
	if version <= 0 {
		return VersionedElementRef{}, fmt.Errorf("element version must be positive")
	}

	return VersionedElementRef{ElementRef: ref, Version: version}, nil
}

// Member ссылка на элемент из списка членов way или relation.
// Для членов way роль всегда пустая.
type Member struct {
	Role  string     `json:"role"`  // Role роль внутри relation
	Ref   ElementRef `json:"ref"`   // Ref на какой элемент ссылается
	Order int        `json:"order"` // Order позиция в списке членов
}

// Tag пара ключ-значение в том виде, как она пришла от клиента.
// Дубликаты ключей допустимы здесь и отсекаются при подготовке diff.
type Tag struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Element одна неизменяемая ревизия элемента.
// Ревизии никогда не изменяются и не удаляются: удаление - это новая ревизия с Visible=false.
type Element struct {
	CreatedAt      time.Time         `json:"created_at"`                 // CreatedAt время коммита ревизии
	Tags           map[string]string `json:"tags"`                       // Tags уникальные ключи
	Point          *s2.LatLng        `json:"point,omitempty"`            // Point только для node
	NextSequenceID *int64            `json:"next_sequence_id,omitempty"` // NextSequenceID nil пока ревизия текущая
	Members        []Member          `json:"members,omitempty"`          // Members только для way и relation
	ID             int64             `json:"id"`
	Version        int64             `json:"version"`      // Version начинается с 1, +1 на каждое изменение
	ChangesetID    int64             `json:"changeset_id"` // ChangesetID в каком changeset создана ревизия
	SequenceID     int64             `json:"sequence_id"`  // SequenceID глобальный монотонный номер коммита
	Type           ElementType       `json:"type"`
	Visible        bool              `json:"visible"` // Visible false = tombstone
}

// Ref returns the version-independent identity of the element.
func (e *Element) Ref() ElementRef {
	return ElementRef{Type: e.Type, ID: e.ID}
}

// VersionedRef returns the identity of this exact revision.
func (e *Element) VersionedRef() VersionedElementRef {
	return VersionedElementRef{ElementRef: e.Ref(), Version: e.Version}
}

// IsLatest reports whether no newer revision supersedes this one.
func (e *Element) IsLatest() bool {
	return e.NextSequenceID == nil
}

// References reports whether ref is among the element's members.
func (e *Element) References(ref ElementRef) bool {
	for _, m := range e.Members {
		if m.Ref == ref {
			return true
		}
	}
	return false
}

// Clone создает глубокую копию ревизии
func (e *Element) Clone() *Element {
	c := *e

	if e.Tags != nil {
		c.Tags = make(map[string]string, len(e.Tags))
		for k, v := range e.Tags {
			c.Tags[k] = v
		}
	}
	if e.Point != nil {
		p := *e.Point
		c.Point = &p
	}
	if e.NextSequenceID != nil {
		next := *e.NextSequenceID
		c.NextSequenceID = &next
	}
	if e.Members != nil {
		c.Members = make([]Member, len(e.Members))
		copy(c.Members, e.Members)
	}

	return &c
}

// NewPoint builds a node position from longitude and latitude in degrees.
func NewPoint(lon, lat float64) *s2.LatLng {
	p := s2.LatLngFromDegrees(lat, lon)
	return &p
}
