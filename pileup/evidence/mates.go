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
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
)

const numMateTableShards = 64

type mateShard struct {
	mu    sync.Mutex
	mates map[string]Evidence
}

// mateTable is a sharded, thread-safe map from read name to the evidence of
// the first mate seen.
type mateTable struct {
	shards [numMateTableShards]mateShard
}

func newMateTable() *mateTable {
	m := &mateTable{}
	for i := range m.shards {
		m.shards[i].mates = make(map[string]Evidence)
	}
	return m
}

// lookupAndDelete returns the evidence of name's mate if another job already
// stored it, removing it from the table.  Otherwise it stores ev and returns
// false.
func (m *mateTable) lookupAndDelete(name string, ev Evidence) (Evidence, bool) {
	h := seahash.Sum64(unsafe.StringToBytes(name))
	shard := &m.shards[int(h%uint64(numMateTableShards))]

	shard.mu.Lock()
	mate, ok := shard.mates[name]
	if ok {
		delete(shard.mates, name)
	} else {
		shard.mates[name] = ev
	}
	shard.mu.Unlock()
	return mate, ok
}

// drain adds the evidence of every unpaired read left in the table to s.  It
// must not be called concurrently with lookupAndDelete.
func (m *mateTable) drain(s *Summary) {
	for i := range m.shards {
		shard := &m.shards[i]
		for name, ev := range shard.mates {
			s.Add(ev)
			delete(shard.mates, name)
		}
	}
}

// altRank orders alt categories from most to least confident.
var altRank = [...]int{ProperAlt: 0, MarginAlt: 1, LowQualAlt: 2, ExcessiveAlt: 3}

// mergeMates combines the evidence of two reads from the same fragment.
// Mates that agree count once; a mate that can't be judged defers to the
// other; mates that disagree on the allele make the fragment ambiguous.
func mergeMates(a, b Evidence) Evidence {
	switch {
	case a.Category == b.Category && a.Reason == b.Reason:
		return a
	case a.Category.IsAlt() && b.Category.IsAlt():
		if altRank[b.Category] < altRank[a.Category] {
			return b
		}
		return a
	case a.Category == Unknown && b.Category == Unknown:
		// Prefer a reason that says something about the alleles.
		if a.Reason == OtherAllele || a.Reason == RefMismatch {
			return a
		}
		return b
	case a.Category == Unknown:
		return b
	case b.Category == Unknown:
		return a
	default:
		return unknown(Ambiguous)
	}
}
