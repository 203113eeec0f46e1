// Package recordio reads and writes record files. A file is either a JSON
// array or JSON lines of encoded records, optionally gzip compressed.
package recordio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/blob"
	"github.com/sells-group/survey-cli/internal/model"
)

// Format is the container layout of a record file.
type Format string

const (
	FormatJSONLines Format = "jsonl"
	FormatJSONArray Format = "json"
)

// Layout describes how a key is encoded.
type Layout struct {
	Format Format
	Gzip   bool
}

// LayoutOf derives the layout from a key's extensions, e.g.
// "out/records.jsonl.gz".
func LayoutOf(key string) (Layout, error) {
	name := path.Base(key)
	var l Layout
	if strings.HasSuffix(name, ".gz") {
		l.Gzip = true
		name = strings.TrimSuffix(name, ".gz")
	}
	switch path.Ext(name) {
	case ".jsonl", ".ndjson":
		l.Format = FormatJSONLines
	case ".json":
		l.Format = FormatJSONArray
	default:
		return Layout{}, eris.Errorf("recordio: cannot infer format of %q", key)
	}
	return l, nil
}

// Decode reads every record in r. The array form is decoded element by
// element so large files are never held twice.
func Decode(ctx context.Context, r io.Reader, f Format) ([]*model.Record, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	switch f {
	case FormatJSONArray:
		return decodeArray(ctx, dec)
	case FormatJSONLines:
		return decodeLines(ctx, dec)
	default:
		return nil, eris.Errorf("recordio: unknown format %q", f)
	}
}

func decodeArray(ctx context.Context, dec *json.Decoder) ([]*model.Record, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "recordio: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("recordio: expected '[', got %v", tok)
	}

	var out []*model.Record
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "recordio: decode cancelled")
		}
		rec := new(model.Record)
		if err := dec.Decode(rec); err != nil {
			return nil, eris.Wrapf(err, "recordio: decode element %d", len(out))
		}
		out = append(out, rec)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "recordio: read closing token")
	}
	return out, nil
}

func decodeLines(ctx context.Context, dec *json.Decoder) ([]*model.Record, error) {
	var out []*model.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "recordio: decode cancelled")
		}
		rec := new(model.Record)
		err := dec.Decode(rec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "recordio: decode line %d", len(out)+1)
		}
		out = append(out, rec)
	}
}

// Encode writes records to w in the given format.
func Encode(w io.Writer, f Format, records []*model.Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	switch f {
	case FormatJSONLines:
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return eris.Wrapf(err, "recordio: encode %s", r.Identity())
			}
		}
	case FormatJSONArray:
		if _, err := bw.WriteString("["); err != nil {
			return eris.Wrap(err, "recordio: write")
		}
		for i, r := range records {
			if i > 0 {
				if _, err := bw.WriteString(","); err != nil {
					return eris.Wrap(err, "recordio: write")
				}
			}
			if err := enc.Encode(r); err != nil {
				return eris.Wrapf(err, "recordio: encode %s", r.Identity())
			}
		}
		if _, err := bw.WriteString("]\n"); err != nil {
			return eris.Wrap(err, "recordio: write")
		}
	default:
		return eris.Errorf("recordio: unknown format %q", f)
	}
	return eris.Wrap(bw.Flush(), "recordio: flush")
}

// Load reads the records stored under key. When schema is non-nil every
// record is validated against it.
func Load(ctx context.Context, store blob.Store, key string, schema *model.Schema) ([]*model.Record, error) {
	layout, err := LayoutOf(key)
	if err != nil {
		return nil, err
	}
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, eris.Wrapf(err, "recordio: open %s", key)
	}
	defer rc.Close() //nolint:errcheck

	var r io.Reader = rc
	if layout.Gzip {
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, eris.Wrapf(err, "recordio: gunzip %s", key)
		}
		defer zr.Close() //nolint:errcheck
		r = zr
	}

	records, err := Decode(ctx, r, layout.Format)
	if err != nil {
		return nil, eris.Wrapf(err, "recordio: load %s", key)
	}
	if schema != nil {
		for _, rec := range records {
			if err := schema.Validate(rec); err != nil {
				return nil, eris.Wrapf(err, "recordio: load %s", key)
			}
		}
	}
	zap.L().Debug("recordio: loaded records", zap.String("key", key), zap.Int("records", len(records)))
	return records, nil
}

// Save encodes records and stores them under key, replacing any existing
// object.
func Save(ctx context.Context, store blob.Store, key string, records []*model.Record) (blob.Info, error) {
	layout, err := LayoutOf(key)
	if err != nil {
		return blob.Info{}, err
	}

	var buf bytes.Buffer
	if layout.Gzip {
		zw := gzip.NewWriter(&buf)
		if err := Encode(zw, layout.Format, records); err != nil {
			return blob.Info{}, err
		}
		if err := zw.Close(); err != nil {
			return blob.Info{}, eris.Wrapf(err, "recordio: gzip %s", key)
		}
	} else if err := Encode(&buf, layout.Format, records); err != nil {
		return blob.Info{}, err
	}

	info, err := store.Put(ctx, key, &buf)
	if err != nil {
		return blob.Info{}, eris.Wrapf(err, "recordio: save %s", key)
	}
	zap.L().Info("recordio: saved records",
		zap.String("key", key),
		zap.Int("records", len(records)),
		zap.Int64("bytes", info.Size),
	)
	return info, nil
}
