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
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// Opts holds the classification thresholds and scan parameters.
type Opts struct {
	// BamIndexPath overrides the default "<bampath>.bai" index location.
	BamIndexPath string
	// FlagExclude drops reads with any of these SAM flags set.
	FlagExclude int
	// MinMapq drops reads with a lower mapping quality.
	MinMapq int
	// MinMargin is the minimum number of aligned bases between the variant and
	// the nearer end of the aligned part of the read.
	MinMargin int
	// MinBaseQual is the quality floor for the bases supporting an alt call.
	MinBaseQual int
	// ExcessiveWindow is the distance, in reference bases, within which other
	// alignment events are counted against an alt call.
	ExcessiveWindow int
	// MaxNearbyEvents is the number of events within ExcessiveWindow tolerated
	// before an alt call is marked excessive.
	MaxNearbyEvents int
	// CountFragments merges the evidence of overlapping mates so each fragment
	// is counted once.
	CountFragments bool
	// Parallelism is the number of concurrent jobs; <= 0 means runtime.NumCPU().
	Parallelism int
}

// DefaultOpts holds the default option values.
var DefaultOpts = Opts{
	FlagExclude:     int(sam.Secondary | sam.QCFail | sam.Duplicate | sam.Supplementary | sam.Unmapped),
	MinMapq:         30,
	MinMargin:       10,
	MinBaseQual:     20,
	ExcessiveWindow: 10,
	MaxNearbyEvents: 2,
	Parallelism:     0,
}

func (o *Opts) validate() error {
	switch {
	case o.FlagExclude < 0:
		return errors.E(errors.Invalid, "flag-exclude must be nonnegative")
	case o.MinMapq < 0 || o.MinMapq > 255:
		return errors.E(errors.Invalid, "mapq must be in [0, 255]")
	case o.MinMargin < 0:
		return errors.E(errors.Invalid, "margin must be nonnegative")
	case o.MinBaseQual < 0:
		return errors.E(errors.Invalid, "min-base-qual must be nonnegative")
	case o.ExcessiveWindow < 0:
		return errors.E(errors.Invalid, "excessive-window must be nonnegative")
	case o.MaxNearbyEvents < 0:
		return errors.E(errors.Invalid, "max-nearby-events must be nonnegative")
	}
	return nil
}

func (o *Opts) parallelism() int {
	if o.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return o.Parallelism
}
