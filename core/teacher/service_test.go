package teacher_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/teacher"
	dummydb "github.com/studenttracker/tracker/storage/database/dummy"
	testutil "github.com/studenttracker/tracker/tests"
)

func setup(identity string) (teacher.Repository, *teacher.Service) {
	conf := testutil.NewConfig()
	conf.Import.TeacherIdentity = identity
	translator := core.NewTranslator()
	db := dummydb.Open()
	repo := dummydb.NewTeacherRepository(db)
	return repo, teacher.NewService(db, repo, core.NewValidate(translator), translator, core.NopLogger{}, conf)
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		identity  string
		body      string
		want      int
		wantNames []string
	}{
		{
			name:     "by name",
			identity: core.TeacherIdentityName,
			body: `[
				{"full_name": "Смирнов  Сергей Петрович", "email": "Smirnov@Test.ru"},
				{"full_name": "Смирнов Сергей Петрович", "email": "other@test.ru"},
				{"full_name": "Кузнецов Кирилл Кириллович"}
			]`,
			want:      2,
			wantNames: []string{"Кузнецов Кирилл Кириллович", "Смирнов Сергей Петрович"},
		},
		{
			name:     "by email",
			identity: core.TeacherIdentityEmail,
			body: `[
				{"full_name": "Смирнов Сергей Петрович", "email": "smirnov@test.ru"},
				{"full_name": "Смирнов С. П.", "email": "SMIRNOV@test.ru"},
				{"full_name": "Кузнецов Кирилл Кириллович", "email": "kuznetsov@test.ru"}
			]`,
			want:      2,
			wantNames: []string{"Кузнецов Кирилл Кириллович", "Смирнов Сергей Петрович"},
		},
		{
			name:     "empty array",
			identity: core.TeacherIdentityName,
			body:     `[]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := setup(tt.identity)

			n, err := svc.Import(ctx, strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			// a second upload of the same file inserts nothing
			n, err = svc.Import(ctx, strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Zero(t, n)

			teachers, err := repo.QueryAllTeachers(ctx)
			require.NoError(t, err)
			var names []string
			for _, tchr := range teachers {
				names = append(names, tchr.FullName)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestService_ImportInvalid(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		identity string
		body     string
		wantRow  int
		wantErr  string
	}{
		{name: "broken json", identity: core.TeacherIdentityName, body: `[{"full_name": `, wantErr: "parsing teachers json: unexpected EOF"},
		{name: "not an array", identity: core.TeacherIdentityName, body: `{"full_name": "Смирнов"}`},
		{name: "blank name", identity: core.TeacherIdentityName, body: `[{"full_name": "Смирнов"}, {"full_name": "  "}]`, wantRow: 2, wantErr: "row 2: invalid teacher entry: full_name must not be blank"},
		{name: "bad email", identity: core.TeacherIdentityName, body: `[{"full_name": "Смирнов", "email": "lol"}]`, wantRow: 1, wantErr: "row 1: invalid teacher entry: email must be a valid email address"},
		{name: "email required", identity: core.TeacherIdentityEmail, body: `[{"full_name": "Смирнов"}]`, wantRow: 1, wantErr: "row 1: invalid teacher entry: email is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := setup(tt.identity)

			n, err := svc.Import(ctx, strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Zero(t, n)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, err.Error())
			}
			if tt.wantRow > 0 {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantRow, vErr.Row)
			} else {
				var pErr *core.ParseError
				assert.ErrorAs(t, err, &pErr)
			}

			teachers, err := repo.QueryAllTeachers(ctx)
			require.NoError(t, err)
			assert.Empty(t, teachers)
		})
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(core.TeacherIdentityName)
	stored := testutil.CreateTeacher(t, repo, "Смирнов Сергей Петрович", "smirnov@test.ru")

	got, err := svc.Resolve(ctx, "Смирнов Сергей Петрович")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.False(t, svc.IsPlaceholder(got))

	placeholder, err := svc.Resolve(ctx, "Смирнов Сергей Петровичь")
	require.NoError(t, err)
	assert.NotEqual(t, stored.ID, placeholder.ID)
	assert.Equal(t, "studenttrackerteachertest@gmail.com", placeholder.Email)
	assert.True(t, svc.IsPlaceholder(placeholder))

	again, err := svc.Resolve(ctx, "Смирнов Сергей Петровичь")
	require.NoError(t, err)
	assert.Equal(t, placeholder, again)

	teachers, err := repo.QueryAllTeachers(ctx)
	require.NoError(t, err)
	assert.Len(t, teachers, 2)
}
