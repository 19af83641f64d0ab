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
package pileup

// Common components shared by the variant parser and the read-evidence
// classifier.

// PosType is the integer type used to represent genomic positions.  BAM
// positions are limited to int32.
type PosType = int32

const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents an C base.
	BaseC
	// BaseG represents an G base.
	BaseG
	// BaseT represents an T base.
	BaseT
	// BaseX is a catch-all for N and the IUPAC ambiguity codes.
	BaseX
	// BaseInvalid marks a byte which isn't a nucleotide symbol at all.
	BaseInvalid byte = 0xff
)

// NBase is the number of regular base types.
const NBase = 4

// EnumToASCIITable is the A/C/G/T/X -> ASCII mapping, with X rendered as 'N'.
var EnumToASCIITable = [...]byte{'A', 'C', 'G', 'T', 'N'}

// ASCIIToEnumTable is the ASCII -> A/C/G/T/X mapping.  Lowercase letters are
// accepted.  IUPAC ambiguity codes and '=' map to BaseX, everything else to
// BaseInvalid.
var ASCIIToEnumTable [256]byte

func init() {
	for i := range ASCIIToEnumTable {
		ASCIIToEnumTable[i] = BaseInvalid
	}
	for _, c := range []byte("=MRSVWYHKDBNmrsvwyhkdbn") {
		ASCIIToEnumTable[c] = BaseX
	}
	for e, c := range EnumToASCIITable[:NBase] {
		ASCIIToEnumTable[c] = byte(e)
		ASCIIToEnumTable[c+'a'-'A'] = byte(e)
	}
}

// IsACGT returns true iff c is an unambiguous nucleotide, in either case.
func IsACGT(c byte) bool {
	return ASCIIToEnumTable[c] < NBase
}

// NormalizeBase maps c to one of 'A', 'C', 'G', 'T', 'N'.  Ambiguity codes map
// to 'N'.  The second return value is false if c is not a nucleotide symbol.
func NormalizeBase(c byte) (byte, bool) {
	e := ASCIIToEnumTable[c]
	if e == BaseInvalid {
		return 'N', false
	}
	return EnumToASCIITable[e], true
}
