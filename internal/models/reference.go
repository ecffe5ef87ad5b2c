package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ReferenceKind is the closed set of domain objects a payment can settle.
type ReferenceKind string

const (
	RefBid   ReferenceKind = "bid"
	RefSkill ReferenceKind = "skill"
)

var (
	ErrMalformedReference = errors.New("malformed payment reference")
	ErrUnknownReference   = errors.New("unknown payment reference kind")
)

// ReferenceTag identifies the domain object a completed payment belongs to.
type ReferenceTag struct {
	Kind ReferenceKind
	ID   int64
}

// ParseReference decodes a reference string of the form "<kind>_<id>"
// (e.g. "bid_42", "skill_17"). This is the single place reference strings
// are interpreted; everything downstream works with the tag.
func ParseReference(ref string) (ReferenceTag, error) {
	kind, rawID, ok := strings.Cut(ref, "_")
	if !ok || kind == "" || rawID == "" {
		return ReferenceTag{}, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return ReferenceTag{}, fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	switch ReferenceKind(kind) {
	case RefBid, RefSkill:
		return ReferenceTag{Kind: ReferenceKind(kind), ID: id}, nil
	default:
		return ReferenceTag{}, fmt.Errorf("%w: %q", ErrUnknownReference, kind)
	}
}

// String renders the tag back into its wire form.
func (t ReferenceTag) String() string {
	return fmt.Sprintf("%s_%d", t.Kind, t.ID)
}
