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
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/varsupport/pileup"
	"github.com/pkg/errors"
)

type PosType = pileup.PosType

// ErrMissingMD is returned by NewCursor when the record has no MD tag.
var ErrMissingMD = errors.New("record has no MD tag")

// InconsistentAlignmentError is returned by NewCursor when a record's CIGAR,
// MD, SEQ and QUAL fields disagree with each other.
type InconsistentAlignmentError struct {
	Name  string
	Cigar string
	Err   error
}

func (e *InconsistentAlignmentError) Error() string {
	return fmt.Sprintf("read %s (cigar %s): inconsistent alignment: %v", e.Name, e.Cigar, e.Err)
}

// Cause supports errors.Cause.
func (e *InconsistentAlignmentError) Cause() error {
	return e.Err
}

var mdSamTag = sam.NewTag(mdTag)

const (
	// refToQuery sentinels.
	deletedPos int32 = -1
	skippedPos int32 = -2
)

// alignedBase describes one step of a CIGAR+MD walk.
type alignedBase struct {
	// op is one of CigarMatch (which also covers '=' and 'X'), CigarInsertion,
	// CigarDeletion, CigarSkipped or CigarSoftClipped.
	op sam.CigarOpType
	// refPos is the 0-based reference position.  For insertions and soft clips,
	// it is the position of the next reference base.
	refPos PosType
	// queryPos is the index into SEQ, or -1 for deletions and skips.
	queryPos int32
	// refBase is the upper-case reference base, 0 when no reference base is
	// consumed and 'N' for skipped bases.
	refBase byte
	// queryBase is the read base, or 0 for deletions and skips.
	queryBase byte
	// mismatch is set when the MD marks an aligned base as a mismatch.
	mismatch bool
}

// walker steps through a record's CIGAR and MD in lockstep, one base at a
// time.
type walker struct {
	cigar    sam.Cigar
	seq      []byte
	md       mdReader
	opIdx    int
	opOff    int
	refPos   PosType
	queryPos int32
	// delBases holds the MD bases of the current deletion op.
	delBases []byte
}

func newWalker(cigar sam.Cigar, pos PosType, seq []byte, md string) *walker {
	return &walker{cigar: cigar, seq: seq, md: mdReader{md: md}, refPos: pos}
}

// next fills b with the next base of the alignment.  It returns false once
// every CIGAR op has been consumed.
func (w *walker) next(b *alignedBase) (bool, error) {
	for w.opIdx < len(w.cigar) {
		op := w.cigar[w.opIdx]
		if w.opOff >= op.Len() {
			w.opIdx++
			w.opOff = 0
			continue
		}
		t := op.Type()
		switch t {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if int(w.queryPos) >= len(w.seq) {
				return false, errors.Errorf("CIGAR consumes more than the %d bases in SEQ", len(w.seq))
			}
			mm, err := w.md.nextAligned()
			if err != nil {
				return false, err
			}
			q := w.seq[w.queryPos]
			*b = alignedBase{op: sam.CigarMatch, refPos: w.refPos, queryPos: w.queryPos, refBase: q, queryBase: q}
			if mm != 0 {
				b.refBase = mm
				b.mismatch = true
			}
			w.refPos++
			w.queryPos++
		case sam.CigarInsertion, sam.CigarSoftClipped:
			if int(w.queryPos) >= len(w.seq) {
				return false, errors.Errorf("CIGAR consumes more than the %d bases in SEQ", len(w.seq))
			}
			*b = alignedBase{op: t, refPos: w.refPos, queryPos: w.queryPos, queryBase: w.seq[w.queryPos]}
			w.queryPos++
		case sam.CigarDeletion:
			if w.opOff == 0 {
				var err error
				if w.delBases, err = w.md.deletion(op.Len()); err != nil {
					return false, err
				}
			}
			*b = alignedBase{op: t, refPos: w.refPos, queryPos: -1, refBase: w.delBases[w.opOff]}
			w.refPos++
		case sam.CigarSkipped:
			*b = alignedBase{op: t, refPos: w.refPos, queryPos: -1, refBase: 'N'}
			w.refPos++
		case sam.CigarHardClipped, sam.CigarPadded:
			w.opIdx++
			w.opOff = 0
			continue
		default:
			return false, errors.Errorf("unsupported CIGAR op %v", t)
		}
		w.opOff++
		return true, nil
	}
	if int(w.queryPos) != len(w.seq) {
		return false, errors.Errorf("CIGAR consumes %d bases, SEQ has %d", w.queryPos, len(w.seq))
	}
	return false, w.md.finish()
}

// insertion is a run of inserted query bases.
type insertion struct {
	// boundary is the reference position of the base the run precedes.
	boundary   PosType
	queryStart int32
	len        int32
}

// Cursor maps between the reference and query coordinates of one read.  It
// is built once per (read, variant) classification and then discarded.
type Cursor struct {
	Name string
	// [RefStart, RefEnd) is the reference interval covered by M/=/X/D/N ops.
	RefStart, RefEnd PosType

	// refToQuery, refBases and mismatch are indexed by refPos-RefStart.
	refToQuery []int32
	refBases   []byte
	mismatch   []bool
	insertions []insertion

	seq  []byte
	qual []byte
	// [alnStart, alnEnd) is the query range between the soft clips.
	alnStart, alnEnd int32
	hardClip         [2]int
	// edgeDist is indexed by query position; -1 for soft-clipped bases.
	edgeDist []int32
}

func inconsistent(rec *sam.Record, err error) error {
	return &InconsistentAlignmentError{Name: rec.Name, Cigar: rec.Cigar.String(), Err: err}
}

// clipLayout checks that clips only appear at the ends of the CIGAR, hard
// clips outermost, and returns the clip lengths.
func clipLayout(cigar sam.Cigar) (hard, soft [2]int, err error) {
	lo, hi := 0, len(cigar)
	for side, typ := range []sam.CigarOpType{sam.CigarHardClipped, sam.CigarSoftClipped} {
		if lo < hi && cigar[lo].Type() == typ {
			if side == 0 {
				hard[0] = cigar[lo].Len()
			} else {
				soft[0] = cigar[lo].Len()
			}
			lo++
		}
	}
	for side, typ := range []sam.CigarOpType{sam.CigarHardClipped, sam.CigarSoftClipped} {
		if lo < hi && cigar[hi-1].Type() == typ {
			if side == 0 {
				hard[1] = cigar[hi-1].Len()
			} else {
				soft[1] = cigar[hi-1].Len()
			}
			hi--
		}
	}
	for _, op := range cigar[lo:hi] {
		if t := op.Type(); t == sam.CigarHardClipped || t == sam.CigarSoftClipped {
			return hard, soft, errors.Errorf("clip op in the middle of the CIGAR")
		}
	}
	return hard, soft, nil
}

func refLen(cigar sam.Cigar) int {
	n := 0
	for _, op := range cigar {
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion, sam.CigarSkipped:
			n += op.Len()
		}
	}
	return n
}

// NewCursor walks rec's CIGAR and MD tag.  It returns ErrMissingMD if the MD
// tag is absent, and an *InconsistentAlignmentError if the record's fields
// disagree.
func NewCursor(rec *sam.Record) (*Cursor, error) {
	aux := rec.AuxFields.Get(mdSamTag)
	if aux == nil {
		return nil, ErrMissingMD
	}
	md, ok := aux.Value().(string)
	if !ok {
		return nil, inconsistent(rec, errors.Errorf("MD tag has type %c, expected Z", aux.Type()))
	}
	seq := rec.Seq.Expand()
	if len(rec.Qual) != len(seq) {
		return nil, inconsistent(rec, errors.Errorf("QUAL has %d bases, SEQ has %d", len(rec.Qual), len(seq)))
	}
	hard, soft, err := clipLayout(rec.Cigar)
	if err != nil {
		return nil, inconsistent(rec, err)
	}
	n := refLen(rec.Cigar)
	c := &Cursor{
		Name:       rec.Name,
		RefStart:   PosType(rec.Pos),
		RefEnd:     PosType(rec.Pos + n),
		refToQuery: make([]int32, n),
		refBases:   make([]byte, n),
		mismatch:   make([]bool, n),
		seq:        seq,
		qual:       rec.Qual,
		hardClip:   hard,
	}
	w := newWalker(rec.Cigar, c.RefStart, seq, md)
	var b alignedBase
	for {
		more, err := w.next(&b)
		if err != nil {
			return nil, inconsistent(rec, err)
		}
		if !more {
			break
		}
		i := b.refPos - c.RefStart
		switch b.op {
		case sam.CigarMatch:
			c.refToQuery[i] = b.queryPos
			c.refBases[i] = b.refBase
			c.mismatch[i] = b.mismatch
		case sam.CigarDeletion:
			c.refToQuery[i] = deletedPos
			c.refBases[i] = b.refBase
		case sam.CigarSkipped:
			c.refToQuery[i] = skippedPos
			c.refBases[i] = b.refBase
		case sam.CigarInsertion:
			if k := len(c.insertions) - 1; k >= 0 && c.insertions[k].boundary == b.refPos &&
				c.insertions[k].queryStart+c.insertions[k].len == b.queryPos {
				c.insertions[k].len++
			} else {
				c.insertions = append(c.insertions, insertion{boundary: b.refPos, queryStart: b.queryPos, len: 1})
			}
		}
	}
	c.alnStart = int32(soft[0])
	c.alnEnd = int32(len(seq) - soft[1])
	c.edgeDist = make([]int32, len(seq))
	for q := range c.edgeDist {
		qi := int32(q)
		if qi < c.alnStart || qi >= c.alnEnd {
			c.edgeDist[q] = -1
			continue
		}
		d := qi - c.alnStart
		if e := c.alnEnd - 1 - qi; e < d {
			d = e
		}
		c.edgeDist[q] = d
	}
	return c, nil
}

// queryAt returns the query index aligned to reference position pos, or one
// of deletedPos and skippedPos.  ok is false if pos is outside the read.
func (c *Cursor) queryAt(pos PosType) (q int32, ok bool) {
	if pos < c.RefStart || pos >= c.RefEnd {
		return 0, false
	}
	return c.refToQuery[pos-c.RefStart], true
}

// insertionAt returns the insertion run preceding reference position
// boundary, if any.
func (c *Cursor) insertionAt(boundary PosType) (insertion, bool) {
	for _, ins := range c.insertions {
		if ins.boundary == boundary {
			return ins, true
		}
		if ins.boundary > boundary {
			break
		}
	}
	return insertion{}, false
}

// Encode re-derives a CIGAR and an MD string from the cursor.  '=' and 'X'
// ops come back as 'M', and adjacent ops of the same kind are merged.
func (c *Cursor) Encode() (sam.Cigar, string) {
	var cigar sam.Cigar
	push := func(t sam.CigarOpType, n int) {
		if n == 0 {
			return
		}
		if k := len(cigar) - 1; k >= 0 && cigar[k].Type() == t {
			cigar[k] = sam.NewCigarOp(t, cigar[k].Len()+n)
			return
		}
		cigar = append(cigar, sam.NewCigarOp(t, n))
	}
	var md strings.Builder
	run := 0
	flushRun := func() {
		md.WriteString(strconv.Itoa(run))
		run = 0
	}

	push(sam.CigarHardClipped, c.hardClip[0])
	push(sam.CigarSoftClipped, int(c.alnStart))
	insIdx := 0
	inDeletion := false
	for i, q := range c.refToQuery {
		pos := c.RefStart + PosType(i)
		for insIdx < len(c.insertions) && c.insertions[insIdx].boundary == pos {
			push(sam.CigarInsertion, int(c.insertions[insIdx].len))
			insIdx++
			inDeletion = false
		}
		switch q {
		case deletedPos:
			push(sam.CigarDeletion, 1)
			if !inDeletion {
				flushRun()
				md.WriteByte('^')
				inDeletion = true
			}
			md.WriteByte(c.refBases[i])
			continue
		case skippedPos:
			push(sam.CigarSkipped, 1)
		default:
			push(sam.CigarMatch, 1)
			if c.mismatch[i] {
				flushRun()
				md.WriteByte(c.refBases[i])
			} else {
				run++
			}
		}
		inDeletion = false
	}
	for ; insIdx < len(c.insertions); insIdx++ {
		push(sam.CigarInsertion, int(c.insertions[insIdx].len))
	}
	flushRun()
	push(sam.CigarSoftClipped, len(c.seq)-int(c.alnEnd))
	push(sam.CigarHardClipped, c.hardClip[1])
	return cigar, md.String()
}
