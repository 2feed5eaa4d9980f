package teacher

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	// errors
	ErrNotFound = errors.New("teacher not found")
)

// similarityThreshold above which two distinct teacher names are reported as a possible typo.
const similarityThreshold = 0.85

type (
	Teacher struct {
		ID       int    `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}

	// Entry is one object of an uploaded teachers JSON file.
	Entry struct {
		FullName string `json:"full_name" validate:"notblank"`
		Email    string `json:"email" validate:"omitempty,email"`
	}
)

func (e Entry) teacher() Teacher {
	return Teacher{FullName: e.FullName, Email: strings.ToLower(e.Email)}
}

// nameSimilarity returns the ratio of matching characters between two names, case-insensitively.
func nameSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}

// similarName returns the first of teachers whose name looks like a misspelling of name.
func similarName(name string, teachers []Teacher) (string, bool) {
	for _, t := range teachers {
		if t.FullName == name {
			continue
		}
		if nameSimilarity(name, t.FullName) >= similarityThreshold {
			return t.FullName, true
		}
	}
	return "", false
}
