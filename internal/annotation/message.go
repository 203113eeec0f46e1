// Package annotation exchanges messages and labels with the manual coding
// tool. Files are JSON arrays of messages, one file per coding plan.
package annotation

import (
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/survey-cli/internal/model"
)

// Message is one distinct response text as the coding tool sees it. Labels
// are ordered newest first.
type Message struct {
	MessageID           string        `json:"MessageID"`
	Text                string        `json:"Text"`
	CreationDateTimeUTC string        `json:"CreationDateTimeUTC"`
	Labels              []model.Label `json:"Labels"`
}

var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("survey-cli/annotation/message"))

// MessageID derives the stable id of a response text. Texts equal after NFC
// normalization share an id.
func MessageID(text string) string {
	return uuid.NewSHA1(messageNamespace, []byte(norm.NFC.String(text))).String()
}

// AssignIDs writes the message id of rawField into idField on every record
// carrying rawField. Records already holding the right id are untouched. It
// returns the number of records changed.
func AssignIDs(records []*model.Record, rawField, idField model.FieldKey, user string) int {
	n := 0
	for _, r := range records {
		raw, ok := r.Text(rawField)
		if !ok {
			continue
		}
		id := MessageID(raw)
		if cur, ok := r.Text(idField); ok && cur == id {
			continue
		}
		r.Append(map[model.FieldKey]model.Value{idField: model.Text(id)}, model.NewMetadata(user))
		n++
	}
	return n
}
