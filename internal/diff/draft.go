package diff

import (
	"github.com/golang/geo/s2"

	"github.com/iudanet/mapkeeper/internal/models"
)

// Draft is one requested mutation, already decoded from the wire format.
//
// Version is the base version the caller edited: 0 creates a new element
// under a placeholder ref, anything else updates (Visible) or deletes (!Visible)
// the element whose current version equals it. Members may reference
// placeholders created earlier in the same batch.
type Draft struct {
	Point    *s2.LatLng
	Tags     []models.Tag
	Members  []models.Member
	Ref      models.ElementRef
	Version  int64
	Visible  bool
	IfUnused bool // только для удаления: пропустить, если элемент еще используется
}

// IsCreate reports whether the draft creates a new element.
func (d *Draft) IsCreate() bool {
	return d.Version == 0
}

// IsDelete reports whether the draft deletes an element.
func (d *Draft) IsDelete() bool {
	return !d.Visible
}
