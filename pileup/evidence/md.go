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

	"github.com/pkg/errors"
)

// mdTag is the aux tag carrying the mismatch string.
const mdTag = "MD"

// mdReader tokenizes an MD string, e.g. "10A5^AC6", on demand.  Match runs are
// consumed one base at a time; zero-length runs (which separate adjacent
// mismatches and deletions) are skipped.
type mdReader struct {
	md  string
	pos int
	// run is the number of match bases left in the current match run.
	run int
}

func isMDDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isMDBase(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// loadRun parses the next match-run length if one starts at r.pos.
func (r *mdReader) loadRun() error {
	for r.run == 0 && r.pos < len(r.md) && isMDDigit(r.md[r.pos]) {
		end := r.pos
		for end < len(r.md) && isMDDigit(r.md[end]) {
			end++
		}
		n, err := strconv.Atoi(r.md[r.pos:end])
		if err != nil {
			return errors.Wrapf(err, "MD %q: bad match length", r.md)
		}
		r.run = n
		r.pos = end
	}
	return nil
}

// nextAligned consumes one aligned (M/=/X) base.  It returns 0 if the MD says
// the base matches the reference, and the upper-case reference base
// otherwise.
func (r *mdReader) nextAligned() (byte, error) {
	if err := r.loadRun(); err != nil {
		return 0, err
	}
	if r.run > 0 {
		r.run--
		return 0, nil
	}
	if r.pos >= len(r.md) {
		return 0, errors.Errorf("MD %q exhausted before the end of the aligned bases", r.md)
	}
	c := r.md[r.pos]
	if c == '^' {
		return 0, errors.Errorf("MD %q: deletion at offset %d where the CIGAR expects an aligned base", r.md, r.pos)
	}
	if !isMDBase(c) {
		return 0, errors.Errorf("MD %q: unexpected character %q at offset %d", r.md, c, r.pos)
	}
	r.pos++
	return c &^ 0x20, nil
}

// deletion consumes a "^bases" token of exactly n bases and returns the
// deleted reference bases, upper-cased.
func (r *mdReader) deletion(n int) ([]byte, error) {
	if err := r.loadRun(); err != nil {
		return nil, err
	}
	if r.run > 0 {
		return nil, errors.Errorf("MD %q: %d match bases left where the CIGAR has a deletion", r.md, r.run)
	}
	if r.pos >= len(r.md) || r.md[r.pos] != '^' {
		return nil, errors.Errorf("MD %q: missing deletion at offset %d", r.md, r.pos)
	}
	start := r.pos + 1
	end := start
	for end < len(r.md) && isMDBase(r.md[end]) {
		end++
	}
	if end-start != n {
		return nil, errors.Errorf("MD %q: deletion of %d bases where the CIGAR deletes %d", r.md, end-start, n)
	}
	r.pos = end
	return []byte(strings.ToUpper(r.md[start:end])), nil
}

// finish verifies that nothing but zero-length match runs remain.
func (r *mdReader) finish() error {
	if err := r.loadRun(); err != nil {
		return err
	}
	if r.run > 0 {
		return errors.Errorf("MD %q: %d match bases left after the last aligned base", r.md, r.run)
	}
	if r.pos < len(r.md) {
		return errors.Errorf("MD %q: leftover %q after the last aligned base", r.md, r.md[r.pos:])
	}
	return nil
}
