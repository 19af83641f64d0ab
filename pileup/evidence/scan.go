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
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/varsupport/encoding/bamprovider"
	"github.com/grailbio/varsupport/variant"
)

// Problem:
// Given a coordinate-sorted, indexed BAM and a list of variant calls, count
// for each call how many reads show the reference allele, how many show the
// alternate allele (split by how much we trust the alignment), and how many
// show something else.
//
// Each variant is independent, so the variants are split across jobs.  Deep
// coverage around a single variant is common (e.g. targeted panels), so the
// reads fetched for one variant are split across jobs as well; each job fills
// its own Summary and the summaries are combined once all jobs return.

// ScanResult holds the read counts for one variant.
type ScanResult struct {
	Variant variant.Variant
	Summary Summary
	// Reads is the number of reads fetched around the variant.
	Reads int
	// Filtered is the number of reads dropped by the flag/MAPQ filter.
	Filtered int
	// Inconsistent is the number of reads skipped because their CIGAR and MD
	// disagree.
	Inconsistent int
}

// keep returns true if rec passes the flag and mapping quality filters.
func (o *Opts) keep(rec *sam.Record) bool {
	return int(rec.Flags)&o.FlagExclude == 0 && int(rec.MapQ) >= o.MinMapq && len(rec.Cigar) > 0
}

// Scan classifies the reads overlapping each variant.  The i'th result
// corresponds to variants[i].  It returns an error of kind errors.NotExist if
// a variant's contig is not in the BAM header, and fails on any fetch error;
// partial results are never returned.
func Scan(ctx context.Context, provider bamprovider.Provider, variants []variant.Variant, opts Opts) ([]ScanResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		log.Printf("evidence.Scan: no variants, nothing to do")
		return nil, nil
	}
	header, err := provider.GetHeader()
	if err != nil {
		return nil, errors.E(err, "evidence.Scan: reading BAM header")
	}
	for i := range variants {
		if bamprovider.RefByName(header, variants[i].Chrom) == nil {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("evidence.Scan: contig %s of variant %s not in BAM header", variants[i].Chrom, variants[i].String()))
		}
	}

	parallelism := opts.parallelism()
	nVarJobs := parallelism
	if nVarJobs > len(variants) {
		nVarJobs = len(variants)
	}
	nReadJobs := parallelism / nVarJobs
	if nReadJobs < 1 {
		nReadJobs = 1
	}
	cl := NewClassifier(opts)
	results := make([]ScanResult, len(variants))
	err = traverse.Each(nVarJobs, func(jobIdx int) error {
		startIdx := (jobIdx * len(variants)) / nVarJobs
		endIdx := ((jobIdx + 1) * len(variants)) / nVarJobs
		for i := startIdx; i < endIdx; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			if results[i], err = scanVariant(ctx, provider, cl, &variants[i], nReadJobs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// fetch reads the records overlapping v and applies the read filters.
func fetch(provider bamprovider.Provider, opts *Opts, v *variant.Variant, res *ScanResult) ([]*sam.Record, error) {
	start, end := v.FetchRange()
	if start < 0 {
		start = 0
	}
	iter := bamprovider.NewRefIterator(provider, v.Chrom, start, end)
	var recs []*sam.Record
	for iter.Scan() {
		rec := iter.Record()
		res.Reads++
		if !opts.keep(rec) {
			res.Filtered++
			sam.PutInFreePool(rec)
			continue
		}
		recs = append(recs, rec)
	}
	if err := iter.Close(); err != nil {
		for _, rec := range recs {
			sam.PutInFreePool(rec)
		}
		return nil, errors.E(err, fmt.Sprintf("evidence.Scan: fetching reads for %s", v.String()))
	}
	return recs, nil
}

func scanVariant(ctx context.Context, provider bamprovider.Provider, cl *Classifier, v *variant.Variant, parallelism int) (ScanResult, error) {
	res := ScanResult{Variant: *v}
	recs, err := fetch(provider, &cl.opts, v, &res)
	if err != nil {
		return res, err
	}
	defer func() {
		for _, rec := range recs {
			sam.PutInFreePool(rec)
		}
	}()

	nJobs := parallelism
	if nJobs > len(recs) {
		nJobs = len(recs)
	}
	var mates *mateTable
	if cl.opts.CountFragments {
		mates = newMateTable()
	}
	summaries := make([]Summary, nJobs)
	inconsistent := make([]int, nJobs)
	err = traverse.Each(nJobs, func(jobIdx int) error {
		startIdx := (jobIdx * len(recs)) / nJobs
		endIdx := ((jobIdx + 1) * len(recs)) / nJobs
		s := &summaries[jobIdx]
		for _, rec := range recs[startIdx:endIdx] {
			if err := ctx.Err(); err != nil {
				return err
			}
			ev, err := cl.ClassifyRecord(v, rec)
			if err != nil {
				log.Error.Printf("%s: skipping read: %v", v.String(), err)
				inconsistent[jobIdx]++
				continue
			}
			if ev.Reason == RefMismatch {
				log.Error.Printf("%s: read %s reference bases (from MD) don't match the variant's reference allele", v.String(), rec.Name)
			}
			if mates != nil && rec.Flags&sam.Paired != 0 {
				if mate, ok := mates.lookupAndDelete(rec.Name, ev); ok {
					s.Add(mergeMates(mate, ev))
				}
				continue
			}
			s.Add(ev)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	for i := range summaries {
		res.Summary.Combine(summaries[i])
		res.Inconsistent += inconsistent[i]
	}
	if mates != nil {
		mates.drain(&res.Summary)
	}
	if log.At(log.Debug) {
		log.Debug.Printf("%s: %d reads, %d filtered, %d inconsistent: %+v",
			v.String(), res.Reads, res.Filtered, res.Inconsistent, res.Summary)
	}
	return res, nil
}
