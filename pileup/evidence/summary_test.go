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
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var allEvidence = []Evidence{
	{Category: Reference},
	{Category: ProperAlt},
	{Category: MarginAlt},
	{Category: LowQualAlt},
	{Category: ExcessiveAlt},
	unknown(Unobservable),
	unknown(OtherAllele),
	unknown(Ambiguous),
	unknown(RefMismatch),
	unknown(MissingMD),
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	for _, ev := range allEvidence {
		s.Add(ev)
	}
	expect.EQ(t, s, Summary{
		Reference: 1,
		Proper:    1,
		Margin:    1,
		Lowq:      1,
		Excessive: 1,
		Alleles:   2,
		Unknown:   3,
	})
	expect.EQ(t, s.Total(), uint32(len(allEvidence)))
	expect.EQ(t, s.AltCount(), uint32(4))
	expect.EQ(t, s.Freq(s.Reference), 0.1)
	expect.EQ(t, Summary{}.Freq(0), 0.0)
	expect.EQ(t, Summary{Reference: 2, Proper: 1}.Freq(1), 0.3333)
}

func TestSummaryCombine(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	var whole Summary
	parts := make([]Summary, 4)
	for i := 0; i < 1000; i++ {
		ev := allEvidence[r.Intn(len(allEvidence))]
		whole.Add(ev)
		parts[r.Intn(len(parts))].Add(ev)
	}
	var fwd, rev Summary
	for i := range parts {
		fwd.Combine(parts[i])
		rev.Combine(parts[len(parts)-1-i])
	}
	expect.EQ(t, fwd, whole)
	expect.EQ(t, rev, whole)
	expect.EQ(t, whole.Total(), uint32(1000))
}

func TestSummaryJSON(t *testing.T) {
	data, err := json.Marshal(Summary{Reference: 3, Proper: 1, Unknown: 2})
	assert.NoError(t, err)
	expect.EQ(t, string(data),
		`{"reference":3,"proper":1,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":2}`)
}

func TestMergeMates(t *testing.T) {
	tests := []struct {
		a, b, want Evidence
	}{
		{Evidence{Category: Reference}, Evidence{Category: Reference}, Evidence{Category: Reference}},
		{Evidence{Category: ProperAlt}, Evidence{Category: MarginAlt}, Evidence{Category: ProperAlt}},
		{Evidence{Category: ExcessiveAlt}, Evidence{Category: LowQualAlt}, Evidence{Category: LowQualAlt}},
		{unknown(Unobservable), Evidence{Category: MarginAlt}, Evidence{Category: MarginAlt}},
		{Evidence{Category: Reference}, unknown(MissingMD), Evidence{Category: Reference}},
		{unknown(Unobservable), unknown(OtherAllele), unknown(OtherAllele)},
		{Evidence{Category: Reference}, Evidence{Category: ProperAlt}, unknown(Ambiguous)},
	}
	for _, tt := range tests {
		expect.EQ(t, mergeMates(tt.a, tt.b), tt.want, "%+v", tt)
		expect.EQ(t, mergeMates(tt.b, tt.a), tt.want, "%+v", tt)
	}
}

func TestMateTable(t *testing.T) {
	m := newMateTable()
	_, ok := m.lookupAndDelete("a", Evidence{Category: Reference})
	expect.False(t, ok)
	_, ok = m.lookupAndDelete("b", Evidence{Category: ProperAlt})
	expect.False(t, ok)
	mate, ok := m.lookupAndDelete("a", Evidence{Category: Reference})
	expect.True(t, ok)
	expect.EQ(t, mate, Evidence{Category: Reference})

	var s Summary
	m.drain(&s)
	expect.EQ(t, s, Summary{Proper: 1})
	s = Summary{}
	m.drain(&s)
	expect.EQ(t, s, Summary{})
}
