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
package variant

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ParseList parses each string in strs.  Variants with the same canonical form
// are only returned once, in first-seen order.
func ParseList(strs []string) ([]Variant, error) {
	seen := make(map[string]struct{}, len(strs))
	vars := make([]Variant, 0, len(strs))
	for _, s := range strs {
		v, err := Parse(s)
		if err != nil {
			return nil, err
		}
		key := v.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		vars = append(vars, v)
	}
	return vars, nil
}

// ScanList reads one variant string per line from r.  Blank lines and lines
// starting with '#' are skipped.
func ScanList(r io.Reader) ([]string, error) {
	var strs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		strs = append(strs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read variant list")
	}
	return strs, nil
}

// ReadList reads and parses a variant list from path, which may be local or
// an S3 URL.  Paths ending in ".gz" are decompressed.
func ReadList(ctx context.Context, path string) (vars []Variant, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "variant list %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, e := gzip.NewReader(r)
		if e != nil {
			return nil, errors.Wrapf(e, "variant list %s", path)
		}
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		r = gz
	}
	strs, err := ScanList(r)
	if err != nil {
		return nil, errors.Wrapf(err, "variant list %s", path)
	}
	return ParseList(strs)
}
