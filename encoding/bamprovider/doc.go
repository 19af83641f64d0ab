// Package bamprovider provides utilities for reading the alignments of an
// indexed BAM file that overlap a genomic region, from many goroutines at once.
//
// The Provider is an interface for the BAM file. NewFakeProvider serves
// in-memory records for tests.
package bamprovider
