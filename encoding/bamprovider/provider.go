package bamprovider

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index specifies the name of the BAM index file. If Index=="", it defaults
	// to path + ".bai".
	Index string
}

// Region is a half-open, 0-based interval [Start, End) on one reference.
type Region struct {
	Ref        *sam.Reference
	Start, End int
}

func (r Region) String() string {
	name := "<nil>"
	if r.Ref != nil {
		name = r.Ref.Name()
	}
	return fmt.Sprintf("%s:%d-%d", name, r.Start, r.End)
}

// overlaps returns true if rec is mapped to r.Ref and its alignment
// intersects [r.Start, r.End).
func (r Region) overlaps(rec *sam.Record) bool {
	if rec.Ref == nil || rec.Ref.ID() != r.Ref.ID() {
		return false
	}
	return rec.Pos < r.End && rec.End() > r.Start
}

// Provider allows reading a BAM file in parallel. Thread safe.
type Provider interface {
	// GetHeader returns the header for the provided BAM data.  The callee
	// must not modify the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over the records whose alignment overlaps
	// the region.
	//
	// REQUIRES: Close has not been called.
	NewIterator(r Region) Iterator

	// Close must be called exactly once. It returns any error encountered
	// by the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in a particular genomic range, in
// coordinate order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If the iterator
	// reaches the end of its range, Scan() returns false.  If an error
	// occurs, Scan() returns false and the error can be retrieved by
	// calling Error().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// NewProvider creates a Provider for the BAM file at path, which may be a
// local path or an S3 URL.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	p := &BAMProvider{Path: path}
	for _, o := range optList {
		if o.Index != "" {
			p.Index = o.Index
		}
	}
	return p
}
