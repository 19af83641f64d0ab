package bamprovider

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// WriteIndexedBAM writes recs to path as a BAM file, then builds its index at
// path+".bai".  recs must be sorted by coordinate.
func WriteIndexedBAM(ctx context.Context, path string, header *sam.Header, recs []*sam.Record) error {
	if err := writeBAM(ctx, path, header, recs); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := writeIndex(ctx, path, path+".bai"); err != nil {
		return errors.Wrapf(err, "index %s", path)
	}
	return nil
}

func writeBAM(ctx context.Context, path string, header *sam.Header, recs []*sam.Record) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			w.Close() // nolint: errcheck
			return err
		}
	}
	return w.Close()
}

func writeIndex(ctx context.Context, bamPath, indexPath string) (err error) {
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return err
	}
	var idx bam.Index
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			reader.Close() // nolint: errcheck
			return err
		}
		if err := idx.Add(rec, reader.LastChunk()); err != nil {
			reader.Close() // nolint: errcheck
			return err
		}
	}
	if err := reader.Close(); err != nil {
		return err
	}
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return bam.WriteIndex(out.Writer(ctx), &idx)
}
