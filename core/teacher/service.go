package teacher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
)

type (
	Repository interface {
		QueryAllTeachers(ctx context.Context, exec ...core.DBExecutor) ([]Teacher, error)
		GetTeacherByName(ctx context.Context, fullName string, exec ...core.DBExecutor) (Teacher, error)
		CreateTeachers(ctx context.Context, teachers []Teacher, exec ...core.DBExecutor) ([]Teacher, error)
		DeleteAllTeachers(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}

	Service struct {
		db               core.DB
		repo             Repository
		validate         *validator.Validate
		translator       ut.Translator
		logger           core.Logger
		identity         string
		placeholderEmail string
	}
)

func NewService(
	db core.DB,
	repo Repository,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:               db,
		repo:             repo,
		validate:         validate,
		translator:       translator,
		logger:           logger,
		identity:         conf.Import.TeacherIdentity,
		placeholderEmail: conf.Import.PlaceholderTeacherEmail,
	}
}

// IsPlaceholder reports whether t was created on demand and has no real contact email.
func (svc *Service) IsPlaceholder(t Teacher) bool {
	return t.Email == "" || strings.EqualFold(t.Email, svc.placeholderEmail)
}

// Import parses a teachers JSON array and inserts the teachers that are not stored yet.
// Returns the number of inserted teachers.
func (svc *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, core.NewParseError("teachers json", err)
	}
	for i := range entries {
		entries[i].FullName = core.CollapseSpaces(entries[i].FullName)
		entries[i].Email = core.CleanString(entries[i].Email, true /* lower */)
		if err := svc.validateEntry(i+1, entries[i]); err != nil {
			return 0, err
		}
	}

	var inserted []Teacher
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		existing, err := svc.repo.QueryAllTeachers(ctx, tx)
		if err != nil {
			return core.NewDatabaseError("querying teachers", err)
		}

		seenNames := make(map[string]bool, len(existing)+len(entries))
		seenKeys := make(map[string]bool, len(existing)+len(entries))
		for _, t := range existing {
			seenNames[t.FullName] = true
			seenKeys[svc.identityKey(t)] = true
		}

		var fresh []Teacher
		for _, e := range entries {
			t := e.teacher()
			key := svc.identityKey(t)
			if seenKeys[key] {
				continue
			}
			if seenNames[t.FullName] {
				svc.logger.Warn(fmt.Sprintf("teacher %q already stored with another email; skipping %q", t.FullName, t.Email))
				continue
			}
			seenKeys[key] = true
			seenNames[t.FullName] = true
			fresh = append(fresh, t)
		}
		if len(fresh) == 0 {
			return nil
		}

		if inserted, err = svc.repo.CreateTeachers(ctx, fresh, tx); err != nil {
			return core.NewDatabaseError("creating teachers", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	svc.logger.Info(fmt.Sprintf("teachers imported: %d entries, %d new", len(entries), len(inserted)))
	return len(inserted), nil
}

func (svc *Service) validateEntry(idx int, e Entry) error {
	if err := svc.validate.Struct(e); err != nil {
		flds := core.FieldErrors(err, svc.translator)
		if flds == nil {
			return errors.Wrap(err, "validating teacher entry")
		}
		return core.NewRowValidationError(idx, errors.New("invalid teacher entry"), flds...)
	}
	if svc.identity == core.TeacherIdentityEmail && e.Email == "" {
		return core.NewRowValidationError(idx, errors.New("invalid teacher entry"),
			core.FieldError{Field: "email", Error: "email is required"})
	}
	return nil
}

func (svc *Service) identityKey(t Teacher) string {
	if svc.identity == core.TeacherIdentityEmail {
		return "email:" + strings.ToLower(t.Email)
	}
	return "name:" + t.FullName
}

// Resolve returns the teacher named fullName, creating a placeholder with the default email
// when none is stored. Runs on exec when it is given.
func (svc *Service) Resolve(ctx context.Context, fullName string, exec ...core.DBExecutor) (Teacher, error) {
	t, err := svc.repo.GetTeacherByName(ctx, fullName, exec...)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Teacher{}, errors.Wrap(err, "getting teacher")
	}

	if all, qErr := svc.repo.QueryAllTeachers(ctx, exec...); qErr == nil {
		if similar, ok := similarName(fullName, all); ok {
			svc.logger.Warn(fmt.Sprintf("creating teacher %q while %q exists; possible typo", fullName, similar))
		}
	}

	created, err := svc.repo.CreateTeachers(ctx, []Teacher{{FullName: fullName, Email: svc.placeholderEmail}}, exec...)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "creating placeholder teacher")
	}
	svc.logger.Info(fmt.Sprintf("placeholder teacher created: %q", fullName))
	return created[0], nil
}
