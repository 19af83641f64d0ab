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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/varsupport/encoding/bamprovider"
	"github.com/grailbio/varsupport/pileup/evidence"
	"github.com/grailbio/varsupport/variant"
)

// collectVariants parses the -var strings and the contents of the -vars file,
// in that order, dropping repeats.
func collectVariants(ctx context.Context, varStrs []string, varsPath string) ([]variant.Variant, error) {
	vars, err := variant.ParseList(varStrs)
	if err != nil {
		return nil, err
	}
	if varsPath == "" {
		return vars, nil
	}
	fromFile, err := variant.ReadList(ctx, varsPath)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(vars)+len(fromFile))
	for _, v := range vars {
		seen[v.String()] = true
	}
	for _, v := range fromFile {
		if key := v.String(); !seen[key] {
			seen[key] = true
			vars = append(vars, v)
		}
	}
	return vars, nil
}

// renderSummaries writes the summaries of results to w as JSON: the summary
// itself for one result, else an object keyed by variant.
func renderSummaries(w io.Writer, results []evidence.ScanResult) error {
	var v interface{}
	if len(results) == 1 {
		v = results[0].Summary
	} else {
		m := make(map[string]evidence.Summary, len(results))
		for _, r := range results {
			m[r.Variant.String()] = r.Summary
		}
		v = m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// resultLine summarizes r for the log: counts, then each bucket's share of
// all counted reads.
func resultLine(r evidence.ScanResult) string {
	s := r.Summary
	return fmt.Sprintf("%s: total %d (%d fetched, %d filtered, %d inconsistent), "+
		"ref %d (%v), proper %d (%v), margin %d (%v), lowq %d (%v), excessive %d (%v), alleles %d (%v), unknown %d (%v)",
		r.Variant.String(), s.Total(), r.Reads, r.Filtered, r.Inconsistent,
		s.Reference, s.Freq(s.Reference), s.Proper, s.Freq(s.Proper), s.Margin, s.Freq(s.Margin),
		s.Lowq, s.Freq(s.Lowq), s.Excessive, s.Freq(s.Excessive), s.Alleles, s.Freq(s.Alleles),
		s.Unknown, s.Freq(s.Unknown))
}

func logResults(results []evidence.ScanResult) {
	sorted := make([]evidence.ScanResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Variant.String() < sorted[j].Variant.String()
	})
	for _, r := range sorted {
		log.Printf("%s", resultLine(r))
	}
}

// varSupport scans bamPath for the given variants and writes the JSON summary
// to outPath, or to stdout if outPath is empty.
func varSupport(ctx context.Context, bamPath string, vars []variant.Variant, opts evidence.Opts, outPath string, stdout io.Writer) (err error) {
	var results []evidence.ScanResult
	if len(vars) == 0 {
		log.Printf("no variants given, nothing to do")
	} else {
		provider := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: opts.BamIndexPath})
		results, err = evidence.Scan(ctx, provider, vars, opts)
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return errors.E(err, "scan", bamPath)
		}
		logResults(results)
	}
	if outPath == "" {
		return renderSummaries(stdout, results)
	}
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return renderSummaries(out.Writer(ctx), results)
}
