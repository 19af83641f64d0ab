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
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
)

// testGenome is "ACGTACGT..."; position p holds "ACGT"[p%4].
var testGenome = func() []byte {
	g := make([]byte, 2000)
	for i := range g {
		g[i] = "ACGT"[i%4]
	}
	return g
}()

var testRef = func() *sam.Reference {
	ref, err := sam.NewReference("chr1", "", "", len(testGenome), nil, nil)
	if err != nil {
		panic(err)
	}
	return ref
}()

var testHeader = func() *sam.Header {
	h, err := sam.NewHeader(nil, []*sam.Reference{testRef})
	if err != nil {
		panic(err)
	}
	return h
}()

func mustParseCigar(t testing.TB, s string) sam.Cigar {
	cigar, err := sam.ParseCigar([]byte(s))
	assert.NoError(t, err, s)
	return cigar
}

// genomeSeq builds the query sequence of a read aligned at pos with the given
// CIGAR that matches testGenome exactly.  Inserted and soft-clipped bases are
// taken from extra in order, then padded with 'T'.
func genomeSeq(pos int, cigar sam.Cigar, extra string) []byte {
	var seq []byte
	r := pos
	for _, op := range cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			seq = append(seq, testGenome[r:r+n]...)
			r += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			for i := 0; i < n; i++ {
				if len(extra) > 0 {
					seq = append(seq, extra[0])
					extra = extra[1:]
				} else {
					seq = append(seq, 'T')
				}
			}
		case sam.CigarDeletion, sam.CigarSkipped:
			r += n
		}
	}
	return seq
}

// mdFor derives the MD tag of seq aligned at pos against testGenome, in the
// form Cursor.Encode produces.
func mdFor(pos int, cigar sam.Cigar, seq []byte) string {
	var md strings.Builder
	run := 0
	flush := func() {
		md.WriteString(strconv.Itoa(run))
		run = 0
	}
	r, q := pos, 0
	for _, op := range cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				if seq[q] == testGenome[r] {
					run++
				} else {
					flush()
					md.WriteByte(testGenome[r])
				}
				q++
				r++
			}
		case sam.CigarInsertion, sam.CigarSoftClipped:
			q += n
		case sam.CigarDeletion:
			flush()
			md.WriteByte('^')
			md.Write(testGenome[r : r+n])
			r += n
		case sam.CigarSkipped:
			r += n
		}
	}
	flush()
	return md.String()
}

// newRecord creates a mapped read on testRef with base quality 30 everywhere.
func newRecord(t testing.TB, name string, pos int, cigar string, seq []byte, md string) *sam.Record {
	c := mustParseCigar(t, cigar)
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	rec := &sam.Record{
		Name:  name,
		Ref:   testRef,
		Pos:   pos,
		MapQ:  60,
		Cigar: c,
		Seq:   sam.NewSeq(seq),
		Qual:  qual,
	}
	if md != "" {
		aux, err := sam.NewAux(mdSamTag, md)
		assert.NoError(t, err)
		rec.AuxFields = sam.AuxFields{aux}
	}
	return rec
}

// readBuilder creates reads against testGenome, with optional substitutions.
type readBuilder struct {
	name  string
	pos   int
	cigar string
	extra string
	// subs maps query index to the base to put there.
	subs map[int]byte
	// quals maps query index to the base quality to put there.
	quals map[int]byte
	flags sam.Flags
	mapq  byte
}

func (b readBuilder) build(t testing.TB) *sam.Record {
	cigar := mustParseCigar(t, b.cigar)
	seq := genomeSeq(b.pos, cigar, b.extra)
	for q, base := range b.subs {
		seq[q] = base
	}
	name := b.name
	if name == "" {
		name = "read"
	}
	rec := newRecord(t, name, b.pos, b.cigar, seq, mdFor(b.pos, cigar, seq))
	for q, qual := range b.quals {
		rec.Qual[q] = qual
	}
	rec.Flags = b.flags
	if b.mapq != 0 {
		rec.MapQ = b.mapq
	}
	return rec
}
