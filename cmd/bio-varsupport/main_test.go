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
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/varsupport/encoding/bamprovider"
	"github.com/grailbio/varsupport/pileup/evidence"
	"github.com/grailbio/varsupport/variant"
)

// genomeBase returns the base at 0-based position p of the test genome,
// "ACGTACGT...".
func genomeBase(p int) byte {
	return "ACGT"[p%4]
}

// newRead returns a 31M read at pos matching the test genome, except at the
// query offsets in subs.
func newRead(t *testing.T, name string, ref *sam.Reference, pos int, subs map[int]byte) *sam.Record {
	const n = 31
	cigar, err := sam.ParseCigar([]byte("31M"))
	assert.NoError(t, err)
	seq := make([]byte, n)
	qual := make([]byte, n)
	var md bytes.Buffer
	run := 0
	for i := range seq {
		seq[i] = genomeBase(pos + i)
		qual[i] = 30
		if b, ok := subs[i]; ok {
			seq[i] = b
			md.WriteString(strconv.Itoa(run))
			md.WriteByte(genomeBase(pos + i))
			run = 0
			continue
		}
		run++
	}
	md.WriteString(strconv.Itoa(run))
	aux, err := sam.NewAux(sam.NewTag("MD"), md.String())
	assert.NoError(t, err)
	return &sam.Record{
		Name:      name,
		Ref:       ref,
		Pos:       pos,
		MapQ:      60,
		Cigar:     cigar,
		Seq:       sam.NewSeq(seq),
		Qual:      qual,
		AuxFields: sam.AuxFields{aux},
	}
}

func writeTestBAM(t *testing.T, dir string) string {
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	assert.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	assert.NoError(t, err)
	recs := []*sam.Record{
		newRead(t, "ref0", ref, 100, nil),
		newRead(t, "ref1", ref, 100, nil),
		newRead(t, "alt0", ref, 100, map[int]byte{15: 'G'}),
		newRead(t, "alt1", ref, 100, map[int]byte{15: 'G'}),
		newRead(t, "ref2", ref, 100, nil),
		newRead(t, "far", ref, 600, nil),
	}
	path := filepath.Join(dir, "test.bam")
	assert.NoError(t, bamprovider.WriteIndexedBAM(vcontext.Background(), path, h, recs))
	return path
}

func TestRenderSummaries(t *testing.T) {
	snp := evidence.ScanResult{
		Variant: variant.MustParse("chr1:116T>G"),
		Summary: evidence.Summary{Reference: 3, Proper: 2},
	}
	del := evidence.ScanResult{
		Variant: variant.MustParse("chr1:10AC>-"),
		Summary: evidence.Summary{Unknown: 1},
	}
	tests := []struct {
		name    string
		results []evidence.ScanResult
		want    string
	}{
		{"none", nil, "{}\n"},
		{"one", []evidence.ScanResult{snp},
			`{"reference":3,"proper":2,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":0}` + "\n"},
		{"two", []evidence.ScanResult{snp, del},
			`{"chr1:10AC>-":{"reference":0,"proper":0,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":1},` +
				`"chr1:116T>G":{"reference":3,"proper":2,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":0}}` + "\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.NoError(t, renderSummaries(&buf, test.results))
			expect.EQ(t, buf.String(), test.want)
		})
	}
}

func TestCollectVariants(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpDir)
	ctx := vcontext.Background()
	listPath := filepath.Join(tmpDir, "vars.txt")
	assert.NoError(t, ioutil.WriteFile(listPath, []byte("# comment\nchr1:116T>G\nchr2:5->AC\n\nchr1:116T>G\n"), 0644))

	vars, err := collectVariants(ctx, []string{"chr1:116T>G", "chr1:801A>C"}, listPath)
	assert.NoError(t, err)
	var got []string
	for _, v := range vars {
		got = append(got, v.String())
	}
	expect.EQ(t, got, []string{"chr1:116T>G", "chr1:801A>C", "chr2:5->AC"})

	vars, err = collectVariants(ctx, nil, "")
	assert.NoError(t, err)
	expect.EQ(t, len(vars), 0)

	_, err = collectVariants(ctx, []string{"chr1:116T"}, "")
	_, ok := err.(*variant.MalformedError)
	expect.True(t, ok, "%v", err)

	_, err = collectVariants(ctx, nil, filepath.Join(tmpDir, "missing.txt"))
	expect.NotNil(t, err)
}

func TestVarSupport(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpDir)
	ctx := vcontext.Background()
	bamPath := writeTestBAM(t, tmpDir)

	var stdout bytes.Buffer
	vars := []variant.Variant{variant.MustParse("chr1:116T>G")}
	assert.NoError(t, varSupport(ctx, bamPath, vars, evidence.DefaultOpts, "", &stdout))
	expect.EQ(t, stdout.String(),
		`{"reference":3,"proper":2,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":0}`+"\n")

	outPath := filepath.Join(tmpDir, "out.json")
	vars = append(vars, variant.MustParse("chr1:801A>C"))
	opts := evidence.DefaultOpts
	opts.Parallelism = 2
	assert.NoError(t, varSupport(ctx, bamPath, vars, opts, outPath, &stdout))
	data, err := ioutil.ReadFile(outPath)
	assert.NoError(t, err)
	expect.EQ(t, string(data),
		`{"chr1:116T>G":{"reference":3,"proper":2,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":0},`+
			`"chr1:801A>C":{"reference":0,"proper":0,"margin":0,"lowq":0,"excessive":0,"alleles":0,"unknown":0}}`+"\n")

	stdout.Reset()
	assert.NoError(t, varSupport(ctx, filepath.Join(tmpDir, "never-opened.bam"), nil, opts, "", &stdout))
	expect.EQ(t, stdout.String(), "{}\n")
}

func TestVarSupportErrors(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpDir)
	ctx := vcontext.Background()
	bamPath := writeTestBAM(t, tmpDir)

	var stdout bytes.Buffer
	err := varSupport(ctx, bamPath, []variant.Variant{variant.MustParse("chr9:116T>G")}, evidence.DefaultOpts, "", &stdout)
	expect.True(t, errors.Is(errors.NotExist, err), "%v", err)
	expect.EQ(t, stdout.Len(), 0)

	opts := evidence.DefaultOpts
	opts.BamIndexPath = filepath.Join(tmpDir, "missing.bai")
	err = varSupport(ctx, bamPath, []variant.Variant{variant.MustParse("chr1:116T>G")}, opts, "", &stdout)
	expect.HasSubstr(t, err.Error(), "missing.bai")
	expect.EQ(t, stdout.Len(), 0)
}

func TestStringList(t *testing.T) {
	var l stringList
	assert.NoError(t, l.Set("chr1:116T>G"))
	assert.NoError(t, l.Set("chr1:801A>C"))
	expect.EQ(t, []string(l), []string{"chr1:116T>G", "chr1:801A>C"})
	expect.EQ(t, l.String(), "chr1:116T>G,chr1:801A>C")
}

func TestResultLine(t *testing.T) {
	r := evidence.ScanResult{
		Variant:      variant.MustParse("chr1:116T>G"),
		Summary:      evidence.Summary{Reference: 4, Proper: 2, Margin: 1, Lowq: 1, Unknown: 2},
		Reads:        13,
		Filtered:     2,
		Inconsistent: 1,
	}
	expect.EQ(t, resultLine(r), "chr1:116T>G: total 10 (13 fetched, 2 filtered, 1 inconsistent), "+
		"ref 4 (0.4), proper 2 (0.2), margin 1 (0.1), lowq 1 (0.1), excessive 0 (0), alleles 0 (0), unknown 2 (0.2)")
}
