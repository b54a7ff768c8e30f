package ics

import (
	"time"

	"github.com/google/uuid"
)

// uidNamespace seeds the name-based UUIDs so that the same duty always
// yields the same UID, letting calendar clients deduplicate re-imports.
var uidNamespace = uuid.MustParse("5ba7c09c-91f1-4713-a54f-8e49dd15ff2b")

// EventUID derives a stable calendar UID from a duty key (flight number,
// or a tag like "RES-WAW") and the duty's calendar day.
func EventUID(key string, date time.Time) string {
	name := key + ":" + date.Format("20060102")
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@rostercal"
}
