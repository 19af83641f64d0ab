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

// Package variant parses and represents single variant calls of the form
// <chrom>:<pos><ref>><alt>, e.g. "chr1:12345AT>G" or "2:29474101C>-".
package variant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/varsupport/pileup"
)

// PosType is the integer type used to represent genomic positions.
type PosType = pileup.PosType

// EmptyAllele is the textual form of a zero-length allele.
const EmptyAllele = "-"

// Variant is one parsed variant call.  It is immutable after Parse returns.
type Variant struct {
	// Chrom is the contig name, as it appears in the BAM header.
	Chrom string
	// Pos is the 1-based position of the first reference base affected.  For a
	// pure insertion, the inserted bases lie between Pos and Pos+1.
	Pos int
	// Ref and Alt are upper-case A/C/G/T/N sequences.  At most one of them is
	// empty.
	Ref []byte
	Alt []byte
}

// MalformedError is returned by Parse when the input is not a valid variant
// string.
type MalformedError struct {
	// Input is the full string passed to Parse.
	Input string
	// Token is the offending substring.
	Token string
	// Reason describes what was expected.
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed variant %q: %s (at %q)", e.Input, e.Reason, e.Token)
}

func malformed(input, token, reason string) error {
	return &MalformedError{Input: input, Token: token, Reason: reason}
}

// parseAllele validates an allele string.  "-" denotes the empty allele.
func parseAllele(input, allele string) ([]byte, error) {
	if allele == EmptyAllele {
		return []byte{}, nil
	}
	if allele == "" {
		return nil, malformed(input, allele, "empty allele; use '-' for a zero-length allele")
	}
	seq := make([]byte, len(allele))
	for i := 0; i < len(allele); i++ {
		c, ok := pileup.NormalizeBase(allele[i])
		if !ok || (c == 'N' && allele[i]&^0x20 != 'N') {
			return nil, malformed(input, allele, "allele must consist of A/C/G/T/N")
		}
		seq[i] = c
	}
	return seq, nil
}

// Parse parses a variant string of the form <chrom>:<pos><ref>><alt>, where
// <ref> and <alt> are nucleotide sequences or "-".  It is a pure function of
// its input; on failure it returns a *MalformedError.
func Parse(s string) (Variant, error) {
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		return Variant{}, malformed(s, s, "missing ':' between chromosome and position")
	}
	chrom := s[:colon]
	if chrom == "" || strings.ContainsAny(chrom, " \t") {
		return Variant{}, malformed(s, chrom, "invalid chromosome name")
	}
	rest := s[colon+1:]
	nDigit := 0
	for nDigit < len(rest) && rest[nDigit] >= '0' && rest[nDigit] <= '9' {
		nDigit++
	}
	if nDigit == 0 {
		return Variant{}, malformed(s, rest, "missing position")
	}
	pos, err := strconv.ParseInt(rest[:nDigit], 10, 32)
	if err != nil || pos <= 0 {
		return Variant{}, malformed(s, rest[:nDigit], "position must be a positive 32-bit integer")
	}
	alleles := strings.Split(rest[nDigit:], ">")
	if len(alleles) != 2 {
		return Variant{}, malformed(s, rest[nDigit:], "expected exactly one '>' between alleles")
	}
	v := Variant{Chrom: chrom, Pos: int(pos)}
	if v.Ref, err = parseAllele(s, alleles[0]); err != nil {
		return Variant{}, err
	}
	if v.Alt, err = parseAllele(s, alleles[1]); err != nil {
		return Variant{}, err
	}
	if len(v.Ref) == 0 && len(v.Alt) == 0 {
		return Variant{}, malformed(s, rest[nDigit:], "reference and alternate alleles can't both be empty")
	}
	return v, nil
}

// MustParse is like Parse, but panics on error.
func MustParse(s string) Variant {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func alleleString(seq []byte) string {
	if len(seq) == 0 {
		return EmptyAllele
	}
	return string(seq)
}

// String returns the canonical form chrom:posREF>ALT.
func (v *Variant) String() string {
	return v.Chrom + ":" + strconv.Itoa(v.Pos) + alleleString(v.Ref) + ">" + alleleString(v.Alt)
}

// IsInsertion returns true if the variant has no reference bases.
func (v *Variant) IsInsertion() bool {
	return len(v.Ref) == 0
}

// IsDeletion returns true if the variant removes reference bases, with or
// without anchor bases: AC>-, AC>A and ACG>T are all deletions.
func (v *Variant) IsDeletion() bool {
	return len(v.Alt) < len(v.Ref)
}

// IsIndel returns true if Ref and Alt differ in length.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// Span returns the 0-based half-open reference interval covered by Ref.  For a
// pure insertion this is the empty interval at the boundary the inserted bases
// precede.
func (v *Variant) Span() (start, end PosType) {
	if v.IsInsertion() {
		return PosType(v.Pos), PosType(v.Pos)
	}
	start = PosType(v.Pos - 1)
	return start, start + PosType(len(v.Ref))
}

// FetchRange returns the 0-based half-open interval a read must overlap to
// carry evidence for this variant.  An insertion needs both flanking bases.
func (v *Variant) FetchRange() (start, end int) {
	s, e := v.Span()
	if s == e {
		return int(s) - 1, int(e) + 1
	}
	return int(s), int(e)
}
