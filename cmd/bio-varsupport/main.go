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
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/varsupport/pileup/evidence"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

var varStrs stringList

var (
	varsPath        = flag.String("vars", "", "Variant list path, one chrom:posREF>ALT per line; may be gzipped")
	bamIndexPath    = flag.String("index", evidence.DefaultOpts.BamIndexPath, "Input BAM index path. Defaults to bampath + .bai")
	mapq            = flag.Int("mapq", evidence.DefaultOpts.MinMapq, "Reads with MAPQ below this level are skipped")
	margin          = flag.Int("margin", evidence.DefaultOpts.MinMargin, "Alt calls with fewer aligned bases than this between the variant and the read end are counted as margin")
	minBaseQual     = flag.Int("min-base-qual", evidence.DefaultOpts.MinBaseQual, "Alt calls with a supporting base quality below this are counted as lowq")
	excessiveWindow = flag.Int("excessive-window", evidence.DefaultOpts.ExcessiveWindow, "Distance from the variant within which other alignment events are counted")
	maxNearbyEvents = flag.Int("max-nearby-events", evidence.DefaultOpts.MaxNearbyEvents, "Alt calls with more nearby events than this are counted as excessive")
	flagExclude     = flag.Int("flag-exclude", evidence.DefaultOpts.FlagExclude, "Reads with a FLAG bit intersecting this value are skipped")
	countFragments  = flag.Bool("count-fragments", evidence.DefaultOpts.CountFragments, "Count overlapping mates of a pair once")
	parallelism     = flag.Int("parallelism", evidence.DefaultOpts.Parallelism, "Maximum number of simultaneous jobs; 0 = runtime.NumCPU()")
	outPath         = flag.String("out", "", "Output JSON path; defaults to stdout")
)

func init() {
	flag.Var(&varStrs, "var", "Variant as chrom:posREF>ALT, e.g. chr1:1000A>G; may be repeated")
}

func bioVarSupportUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioVarSupportUsage
	shutdown := grail.Init()
	defer shutdown()
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})

	if flag.NArg() != 1 {
		log.Fatalf("Exactly one positional argument (bampath) expected; please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	ctx := vcontext.Background()
	vars, err := collectVariants(ctx, varStrs, *varsPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := evidence.Opts{
		BamIndexPath:    *bamIndexPath,
		FlagExclude:     *flagExclude,
		MinMapq:         *mapq,
		MinMargin:       *margin,
		MinBaseQual:     *minBaseQual,
		ExcessiveWindow: *excessiveWindow,
		MaxNearbyEvents: *maxNearbyEvents,
		CountFragments:  *countFragments,
		Parallelism:     *parallelism,
	}
	if err := varSupport(ctx, flag.Arg(0), vars, opts, *outPath, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
