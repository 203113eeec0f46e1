package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/blob"
)

// Dataset is the content of one annotation file, indexed by message id.
type Dataset struct {
	messages []Message
	byID     map[string]int
}

// NewDataset indexes messages. A later message with a repeated id replaces
// the earlier one in place.
func NewDataset(messages ...Message) *Dataset {
	d := &Dataset{byID: make(map[string]int, len(messages))}
	for _, m := range messages {
		d.Add(m)
	}
	return d
}

// Add inserts or replaces m.
func (d *Dataset) Add(m Message) {
	if i, ok := d.byID[m.MessageID]; ok {
		d.messages[i] = m
		return
	}
	d.byID[m.MessageID] = len(d.messages)
	d.messages = append(d.messages, m)
}

// Get returns the message with the given id.
func (d *Dataset) Get(id string) (Message, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Message{}, false
	}
	return d.messages[i], true
}

// Len returns the number of messages.
func (d *Dataset) Len() int { return len(d.messages) }

// Messages returns the messages in file order.
func (d *Dataset) Messages() []Message {
	out := make([]Message, len(d.messages))
	copy(out, d.messages)
	return out
}

// Merge adds every message of o whose id d does not hold yet and returns the
// number added. Existing messages keep their labels.
func (d *Dataset) Merge(o *Dataset) int {
	n := 0
	for _, m := range o.messages {
		if _, ok := d.byID[m.MessageID]; ok {
			continue
		}
		d.Add(m)
		n++
	}
	return n
}

// DecodeDataset reads a JSON array of messages.
func DecodeDataset(r io.Reader) (*Dataset, error) {
	var msgs []Message
	if err := json.NewDecoder(r).Decode(&msgs); err != nil {
		if errors.Is(err, io.EOF) {
			return NewDataset(), nil
		}
		return nil, eris.Wrap(err, "annotation: decode dataset")
	}
	for i, m := range msgs {
		if m.MessageID == "" {
			return nil, eris.Errorf("annotation: message %d has no id", i)
		}
	}
	return NewDataset(msgs...), nil
}

// Encode writes d as an indented JSON array.
func (d *Dataset) Encode(w io.Writer) error {
	msgs := d.messages
	if msgs == nil {
		msgs = []Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(msgs), "annotation: encode dataset")
}

// ReadDataset loads the annotation file at key. A missing file yields an
// empty dataset: nothing has been reviewed yet.
func ReadDataset(ctx context.Context, store blob.Store, key string) (*Dataset, error) {
	rc, err := store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		zap.L().Warn("annotation: file not found, treating as unreviewed", zap.String("key", key))
		return NewDataset(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "annotation: open %s", key)
	}
	defer rc.Close() //nolint:errcheck

	d, err := DecodeDataset(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "annotation: read %s", key)
	}
	return d, nil
}

// WriteDataset stores d at key, replacing any existing file.
func WriteDataset(ctx context.Context, store blob.Store, key string, d *Dataset) error {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return err
	}
	if _, err := store.Put(ctx, key, &buf); err != nil {
		return eris.Wrapf(err, "annotation: write %s", key)
	}
	return nil
}
