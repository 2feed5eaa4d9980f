package roster

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrGroupStreamNotFound = errors.New("group stream not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrStudentExists       = errors.New("a student with this name, email and group already exists")
)

type (
	// GroupStream is a class group and the stream it belongs to.
	GroupStream struct {
		ID         int    `json:"id"`
		GroupName  string `json:"group"`
		StreamName string `json:"stream"`
		HeadmanID  *int   `json:"headman_id"`
	}

	Student struct {
		ID            int    `json:"id"`
		Surname       string `json:"surname"`
		Name          string `json:"name"`
		Patronymic    string `json:"patronymic,omitempty"`
		Email         string `json:"email,omitempty"`
		GroupStreamID int    `json:"group_stream_id"`
	}

	// Row is one roster line read from a workbook.
	Row struct {
		Sheet      string `json:"-"`
		Index      int    `json:"-"` // 1-based row number within Sheet
		Surname    string `json:"surname" validate:"notblank"`
		Name       string `json:"name" validate:"notblank"`
		Patronymic string `json:"patronymic"`
		Stream     string `json:"stream" validate:"notblank"`
		Group      string `json:"group" validate:"notblank"`
		Email      string `json:"email" validate:"omitempty,email"`
		Headman    bool   `json:"headman"`
	}
)

// FullName returns "Surname Name Patronymic" without trailing blanks.
func (s Student) FullName() string {
	parts := []string{s.Surname, s.Name}
	if s.Patronymic != "" {
		parts = append(parts, s.Patronymic)
	}
	return strings.Join(parts, " ")
}

// SameAs compares students by their natural key.
func (s Student) SameAs(other Student) bool {
	return s.Surname == other.Surname &&
		s.Name == other.Name &&
		s.Patronymic == other.Patronymic &&
		strings.EqualFold(s.Email, other.Email) &&
		s.GroupStreamID == other.GroupStreamID
}

func (gs GroupStream) IsHeadman(studentID int) bool {
	return gs.HeadmanID != nil && *gs.HeadmanID == studentID
}

func (r Row) groupStreamKey() string {
	return r.Group + "-" + r.Stream
}

func (r Row) student(groupStreamID int) Student {
	return Student{
		Surname:       r.Surname,
		Name:          r.Name,
		Patronymic:    r.Patronymic,
		Email:         strings.ToLower(r.Email),
		GroupStreamID: groupStreamID,
	}
}
