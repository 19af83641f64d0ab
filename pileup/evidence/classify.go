// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package evidence

import (
	"bytes"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/varsupport/pileup"
	"github.com/grailbio/varsupport/variant"
)

// Category is the kind of support a single read lends to a variant.
type Category uint8

const (
	// Reference: the read shows the reference allele.
	Reference Category = iota
	// ProperAlt: the read shows the alternate allele with good margin, base
	// quality and a clean neighborhood.
	ProperAlt
	// MarginAlt: alternate allele too close to the end of the aligned bases.
	MarginAlt
	// LowQualAlt: alternate allele with a supporting base below MinBaseQual.
	LowQualAlt
	// ExcessiveAlt: alternate allele surrounded by other alignment events.
	ExcessiveAlt
	// Unknown: the read can't be counted for either allele; see UnknownReason.
	Unknown
)

var categoryNames = [...]string{"reference", "proper", "margin", "lowq", "excessive", "unknown"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "invalid"
}

// IsAlt returns true for the four alternate-allele categories.
func (c Category) IsAlt() bool {
	return c >= ProperAlt && c <= ExcessiveAlt
}

// UnknownReason qualifies an Unknown category.
type UnknownReason uint8

const (
	// ReasonNone is used for all categories except Unknown.
	ReasonNone UnknownReason = iota
	// Unobservable: the read doesn't cover the whole variant span, or covers it
	// with a reference skip or an unrelated deletion.
	Unobservable
	// OtherAllele: the read shows a third allele.
	OtherAllele
	// Ambiguous: the read shows an N or other non-ACGT base where the alleles
	// differ, or the mates of a fragment disagree.
	Ambiguous
	// RefMismatch: the MD tag's reference bases disagree with the variant's
	// reference allele.
	RefMismatch
	// MissingMD: the read has no MD tag.
	MissingMD
)

var reasonNames = [...]string{"", "unobservable", "other-allele", "ambiguous", "ref-mismatch", "missing-md"}

func (r UnknownReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "invalid"
}

// Evidence is the result of classifying one read against one variant.
type Evidence struct {
	Category Category
	Reason   UnknownReason
	// Margin is the smallest edge distance among the bases supporting an alt
	// call.
	Margin int
	// MinQual is the smallest base quality among those bases.
	MinQual int
	// NearbyEvents is the number of other alignment events within
	// ExcessiveWindow of the variant.
	NearbyEvents int
}

func unknown(r UnknownReason) Evidence {
	return Evidence{Category: Unknown, Reason: r}
}

// missingQual is the QUAL value of a record stored without base qualities.
const missingQual = 0xff

// Classifier assigns evidence categories.  It is safe for concurrent use.
type Classifier struct {
	opts Opts
}

// NewClassifier creates a Classifier using the thresholds in opts.
func NewClassifier(opts Opts) *Classifier {
	return &Classifier{opts: opts}
}

// ClassifyRecord builds a cursor for rec and classifies it against v.  A
// record without an MD tag is reported as Unknown(MissingMD); an inconsistent
// record yields an *InconsistentAlignmentError.
func (cl *Classifier) ClassifyRecord(v *variant.Variant, rec *sam.Record) (Evidence, error) {
	c, err := NewCursor(rec)
	if err == ErrMissingMD {
		return unknown(MissingMD), nil
	}
	if err != nil {
		return Evidence{}, err
	}
	return cl.Classify(v, c), nil
}

// haplotype collects the query bases the read shows over [start, end), and
// the query indices they came from.  ok is false if the span can't be
// observed in this read.
func haplotype(v *variant.Variant, c *Cursor, start, end PosType) (hap []byte, support []int32, ok bool) {
	if v.IsInsertion() {
		// Pure insertion: both flanking bases must be aligned.
		if q, in := c.queryAt(start - 1); !in || q < 0 {
			return nil, nil, false
		}
		if q, in := c.queryAt(start); !in || q < 0 {
			return nil, nil, false
		}
		if ins, found := c.insertionAt(start); found {
			hap = append(hap, c.seq[ins.queryStart:ins.queryStart+ins.len]...)
			for i := int32(0); i < ins.len; i++ {
				support = append(support, ins.queryStart+i)
			}
		}
		return hap, support, true
	}
	if start < c.RefStart || end > c.RefEnd {
		return nil, nil, false
	}
	for pos := start; pos < end; pos++ {
		if pos > start {
			if ins, found := c.insertionAt(pos); found {
				hap = append(hap, c.seq[ins.queryStart:ins.queryStart+ins.len]...)
				for i := int32(0); i < ins.len; i++ {
					support = append(support, ins.queryStart+i)
				}
			}
		}
		switch q := c.refToQuery[pos-c.RefStart]; q {
		case skippedPos:
			return nil, nil, false
		case deletedPos:
			if !v.IsDeletion() {
				return nil, nil, false
			}
		default:
			hap = append(hap, c.seq[q])
			support = append(support, q)
		}
	}
	if !v.IsIndel() {
		return hap, support, true
	}
	// Anchored insertion, e.g. A>AGG.
	if ins, found := c.insertionAt(end); found {
		hap = append(hap, c.seq[ins.queryStart:ins.queryStart+ins.len]...)
		for i := int32(0); i < ins.len; i++ {
			support = append(support, ins.queryStart+i)
		}
	}
	return hap, support, true
}

// deletionOverhangs returns true if a deletion covering an end of [start, end)
// continues past it, i.e. the read deletes more than the span.
func deletionOverhangs(c *Cursor, start, end PosType) bool {
	deleted := func(pos PosType) bool {
		return pos >= c.RefStart && pos < c.RefEnd && c.refToQuery[pos-c.RefStart] == deletedPos
	}
	return (deleted(start) && deleted(start-1)) || (deleted(end-1) && deleted(end))
}

// deletionFlanks returns the query indices of the nearest aligned bases on
// either side of [start, end).
func deletionFlanks(c *Cursor, start, end PosType) (flanks []int32) {
	for pos := start - 1; pos >= c.RefStart; pos-- {
		if q := c.refToQuery[pos-c.RefStart]; q >= 0 {
			flanks = append(flanks, q)
			break
		}
	}
	for pos := end; pos < c.RefEnd; pos++ {
		if q := c.refToQuery[pos-c.RefStart]; q >= 0 {
			flanks = append(flanks, q)
			break
		}
	}
	return flanks
}

func allACGT(seq []byte) bool {
	for _, b := range seq {
		if !pileup.IsACGT(b) {
			return false
		}
	}
	return true
}

// Classify decides which allele read c supports at v.  It is a pure function
// of its inputs.
func (cl *Classifier) Classify(v *variant.Variant, c *Cursor) Evidence {
	start, end := v.Span()
	hap, support, ok := haplotype(v, c, start, end)
	if !ok {
		return unknown(Unobservable)
	}
	if bytes.Equal(hap, v.Ref) {
		return Evidence{Category: Reference}
	}
	if !allACGT(hap) {
		return unknown(Ambiguous)
	}
	if bytes.Equal(hap, v.Alt) {
		if v.IsDeletion() && deletionOverhangs(c, start, end) {
			return unknown(OtherAllele)
		}
		return cl.classifyAlt(v, c, start, end, support)
	}
	if start < end && !bytes.Equal(c.refBases[start-c.RefStart:end-c.RefStart], v.Ref) {
		return unknown(RefMismatch)
	}
	return unknown(OtherAllele)
}

func (cl *Classifier) classifyAlt(v *variant.Variant, c *Cursor, start, end PosType, support []int32) Evidence {
	if len(support) == 0 {
		// Pure deletion.
		support = deletionFlanks(c, start, end)
	}
	ev := Evidence{Margin: -1, MinQual: missingQual}
	for _, q := range support {
		if d := int(c.edgeDist[q]); ev.Margin < 0 || d < ev.Margin {
			ev.Margin = d
		}
		if qual := int(c.qual[q]); qual < ev.MinQual {
			ev.MinQual = qual
		}
	}
	if ev.Margin < 0 {
		ev.Margin = 0
	}
	var abutting bool
	abutting, ev.NearbyEvents = cl.nearbyEvents(c, start, end, v.IsIndel())
	switch {
	case ev.Margin < cl.opts.MinMargin:
		ev.Category = MarginAlt
	case ev.MinQual != missingQual && ev.MinQual < cl.opts.MinBaseQual:
		ev.Category = LowQualAlt
	case abutting || ev.NearbyEvents > cl.opts.MaxNearbyEvents:
		ev.Category = ExcessiveAlt
	default:
		ev.Category = ProperAlt
	}
	return ev
}

// eventDistance returns the number of reference bases between the event
// [es, ee) and the span [start, end).  inside is true if the event is part
// of the variant itself; a negative distance means the event straddles the
// span boundary.  An insertion right after the span is part of the variant
// only if indel is set.
func eventDistance(es, ee, start, end PosType, indel bool) (dist PosType, inside bool) {
	if es == ee {
		// Insertion at boundary es.
		if (start == end && es == start) || (start < es && es < end) || (indel && start < end && es == end) {
			return 0, true
		}
	} else {
		if start <= es && ee <= end && start < end {
			return 0, true
		}
		if es < end && ee > start {
			return -1, false
		}
	}
	if ee <= start {
		return start - ee, false
	}
	return es - end, false
}

// nearbyEvents scans the read's mismatches, deletions and insertions outside
// the variant.  abutting is set if any of them touches or straddles the span;
// n counts those within ExcessiveWindow.
func (cl *Classifier) nearbyEvents(c *Cursor, start, end PosType, indel bool) (abutting bool, n int) {
	window := PosType(cl.opts.ExcessiveWindow)
	visit := func(es, ee PosType) {
		dist, inside := eventDistance(es, ee, start, end, indel)
		switch {
		case inside:
		case dist <= 0:
			abutting = true
		case dist <= window:
			n++
		}
	}
	for i := 0; i < len(c.refToQuery); {
		pos := c.RefStart + PosType(i)
		q := c.refToQuery[i]
		if q == deletedPos {
			j := i + 1
			for j < len(c.refToQuery) && c.refToQuery[j] == deletedPos {
				j++
			}
			visit(pos, c.RefStart+PosType(j))
			i = j
			continue
		}
		if q >= 0 && c.mismatch[i] && pileup.IsACGT(c.seq[q]) {
			visit(pos, pos+1)
		}
		i++
	}
	for _, ins := range c.insertions {
		visit(ins.boundary, ins.boundary)
	}
	return abutting, n
}
