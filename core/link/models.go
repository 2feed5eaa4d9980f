package link

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("table link not found")
	ErrExists   = errors.New("a table link for this stream and subject already exists")
)

type (
	// TableLink records the spreadsheet generated for a (stream, subject) pair.
	TableLink struct {
		ID          int       `json:"-"`
		StreamName  string    `json:"stream"`
		Subject     string    `json:"subject"`
		TeacherName string    `json:"teacher"`
		Link        string    `json:"link"`
		CreatedAt   time.Time `json:"-"`
	}

	// Filter holds case-insensitive substrings; empty fields are not applied.
	Filter struct {
		Stream  string `query:"stream"`
		Subject string `query:"subject"`
		Teacher string `query:"teacher"`
	}
)

// Match reports whether l satisfies every non-empty field of f.
func (f Filter) Match(l TableLink) bool {
	return containsFold(l.StreamName, f.Stream) &&
		containsFold(l.Subject, f.Subject) &&
		containsFold(l.TeacherName, f.Teacher)
}

// cacheKey scopes the key to a cache generation so entries written after a purge are unreachable.
func (f Filter) cacheKey(gen uint64) string {
	return fmt.Sprintf("links:%d:%s|%s|%s", gen, strings.ToLower(f.Stream), strings.ToLower(f.Subject), strings.ToLower(f.Teacher))
}

func containsFold(s, substr string) bool {
	return substr == "" || strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
