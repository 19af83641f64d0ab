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
	"math"
)

// Summary counts the reads supporting one variant, by category.
type Summary struct {
	Reference uint32 `json:"reference"`
	Proper    uint32 `json:"proper"`
	Margin    uint32 `json:"margin"`
	Lowq      uint32 `json:"lowq"`
	Excessive uint32 `json:"excessive"`
	// Alleles counts reads showing neither allele (including reads whose MD
	// reference disagrees with the variant).
	Alleles uint32 `json:"alleles"`
	// Unknown counts reads which can't be judged at all.
	Unknown uint32 `json:"unknown"`
}

// Add counts one read.
func (s *Summary) Add(ev Evidence) {
	switch ev.Category {
	case Reference:
		s.Reference++
	case ProperAlt:
		s.Proper++
	case MarginAlt:
		s.Margin++
	case LowQualAlt:
		s.Lowq++
	case ExcessiveAlt:
		s.Excessive++
	default:
		if ev.Reason == OtherAllele || ev.Reason == RefMismatch {
			s.Alleles++
		} else {
			s.Unknown++
		}
	}
}

// Combine adds the counts in o to s.
func (s *Summary) Combine(o Summary) {
	s.Reference += o.Reference
	s.Proper += o.Proper
	s.Margin += o.Margin
	s.Lowq += o.Lowq
	s.Excessive += o.Excessive
	s.Alleles += o.Alleles
	s.Unknown += o.Unknown
}

// AltCount returns the number of reads supporting the alternate allele at
// any confidence.
func (s Summary) AltCount() uint32 {
	return s.Proper + s.Margin + s.Lowq + s.Excessive
}

// Total returns the number of reads counted.
func (s Summary) Total() uint32 {
	return s.Reference + s.AltCount() + s.Alleles + s.Unknown
}

// Freq returns n/Total(), rounded to four decimal places.  It returns 0 for
// an empty summary.
func (s Summary) Freq(n uint32) float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 10000
}
