// Package id generates the identifiers the file service writes into logs,
// response headers and upload temp file names.
//
// Every id is a ULID behind a short kind prefix ("req_", "span_", "upl_").
// ULIDs sort by creation time and use Crockford base32, so an upload id is
// always safe inside a file name and its temp files list in arrival order.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an API request and doubles as its trace id.
type RequestID string

// SpanID identifies one traced operation inside a request.
type SpanID string

// UploadID identifies one received file and names its temp file.
type UploadID string

// Kind prefixes.
const (
	RequestPrefix = "req"
	SpanPrefix    = "span"
	UploadPrefix  = "upl"
)

// Source hands out monotonic ULIDs. It is safe for concurrent use.
type Source struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewSource returns a Source drawing from crypto/rand.
func NewSource() *Source {
	return &Source{entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}
}

// NewSourceWith returns a Source with fixed entropy and clock, for tests.
func NewSourceWith(entropy io.Reader, now func() time.Time) *Source {
	return &Source{entropy: entropy, now: now}
}

// Next returns a fresh ULID.
func (s *Source) Next() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
}

// Prefixed returns "<prefix>_<ULID>".
func (s *Source) Prefixed(prefix string) string {
	return prefix + "_" + s.Next().String()
}

var shared = sync.OnceValue(NewSource)

func NewRequestID() RequestID { return RequestID(shared().Prefixed(RequestPrefix)) }
func NewSpanID() SpanID       { return SpanID(shared().Prefixed(SpanPrefix)) }
func NewUploadID() UploadID   { return UploadID(shared().Prefixed(UploadPrefix)) }

func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }
func (id UploadID) String() string  { return string(id) }

// Created returns the time the upload id was generated.
func (id UploadID) Created() (time.Time, error) {
	return Timestamp(string(id))
}

// IsValidPrefixed checks a "prefix_ULID" string against the expected prefix.
func IsValidPrefixed(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

// Timestamp extracts the creation time of a possibly prefixed ULID.
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// UploadFromTempName finds the upload id embedded in a temp file name of the
// form "<name>.<upload id>.<suffix>".
func UploadFromTempName(name string) (UploadID, bool) {
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if IsValidPrefixed(parts[i], UploadPrefix) {
			return UploadID(parts[i]), true
		}
	}
	return "", false
}
