package bamprovider

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// RefByName finds a sam.Reference with the given name. It returns nil if a
// reference is not found.
func RefByName(h *sam.Header, refName string) *sam.Reference {
	for _, ref := range h.Refs() {
		if ref.Name() == refName {
			return ref
		}
	}
	return nil
}

// NewRefIterator creates an iterator for the reads overlapping the half-open
// range [refName:start, refName:limit). Start and limit are both base zero.
// An unknown refName yields an iterator whose Err is of kind errors.NotExist.
func NewRefIterator(p Provider, refName string, start, limit int) Iterator {
	h, err := p.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(h, refName)
	if ref == nil {
		return NewErrorIterator(errors.E(errors.NotExist, "bamprovider.NewRefIterator: reference '"+refName+"' not found"))
	}
	return p.NewIterator(Region{Ref: ref, Start: start, End: limit})
}
