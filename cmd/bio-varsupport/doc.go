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

/*
Given a BAM and a list of variants, bio-varsupport counts the reads supporting
the reference and the alternate allele of each variant.  Reads carrying the
alternate allele are further split by how trustworthy the call is: too close
to the end of the aligned part of the read ("margin"), low base quality
("lowq"), or surrounded by other mismatches and indels ("excessive").  Reads
that show neither allele are counted as "alleles" if they show a different
well-defined allele, and as "unknown" otherwise.

The BAM must carry MD tags and be indexed.  Variants are written as
chrom:posREF>ALT, where pos is 1-based and "-" stands for an empty allele, e.g.
chr1:1000A>G, chr1:1000->TT, chr1:1000AC>-.

Output is JSON.  For a single variant it is one summary object:

  {"reference":40,"proper":12,"margin":1,"lowq":0,"excessive":0,"alleles":0,"unknown":1}

For several variants it is an object keyed by the canonical variant string.

Sample usage:
bio-varsupport \
    --var chr1:1000A>G \
    --vars more-variants.txt.gz \
    --out support.json \
    my.bam
*/
package main
