package model

import (
	"runtime"
	"strings"
	"time"
)

// Metadata is the provenance attached to every delta.
type Metadata struct {
	Author    string    `json:"author"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMetadata stamps author with the caller's location and the current time.
func NewMetadata(author string) Metadata {
	return Metadata{Author: author, Location: callLocation(2), Timestamp: time.Now().UTC()}
}

// CallLocation returns the "package.Func" tag of its caller.
func CallLocation() string {
	return callLocation(2)
}

func callLocation(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
