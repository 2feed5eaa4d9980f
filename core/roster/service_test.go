package roster_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/roster"
	dummydb "github.com/studenttracker/tracker/storage/database/dummy"
	testutil "github.com/studenttracker/tracker/tests"
)

func setup() (*dummydb.DB, roster.Repository, *roster.Service) {
	translator := core.NewTranslator()
	db := dummydb.Open()
	repo := dummydb.NewRosterRepository(db)
	return db, repo, roster.NewService(db, repo, core.NewValidate(translator), translator, core.NopLogger{})
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	_, repo, svc := setup()

	data := testutil.RosterWorkbook(t,
		[]string{"Иванов", "Иван", "Иванович", "ИУ7-1", "ИУ7-11Б", "Ivanov@Test.ru", "+"},
		[]string{"Петров", "Пётр", "", "ИУ7-1", "ИУ7-11Б"},
		[]string{"Сидоров", "Сидор", "", "ИУ7-1", "ИУ7-12Б", "", "да"},
	)

	created, err := svc.Import(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "ivanov@test.ru", created[0].Email)

	groupStreams, err := repo.QueryAllGroupStreams(ctx)
	require.NoError(t, err)
	require.Len(t, groupStreams, 2)
	headmen := make(map[string]int)
	for _, gs := range groupStreams {
		assert.Equal(t, "ИУ7-1", gs.StreamName)
		require.NotNil(t, gs.HeadmanID, gs.GroupName)
		headmen[gs.GroupName] = *gs.HeadmanID
	}
	assert.Equal(t, created[0].ID, headmen["ИУ7-11Б"])
	assert.Equal(t, created[2].ID, headmen["ИУ7-12Б"])

	t.Run("reimport creates nothing", func(t *testing.T) {
		created, err := svc.Import(ctx, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Empty(t, created)

		students, err := repo.QueryAllStudents(ctx)
		require.NoError(t, err)
		assert.Len(t, students, 3)
	})

	t.Run("new headman replaces the old one", func(t *testing.T) {
		data := testutil.RosterWorkbook(t,
			[]string{"Петров", "Пётр", "", "ИУ7-1", "ИУ7-11Б", "", "+"},
		)
		created, err := svc.Import(ctx, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Empty(t, created)

		gs, err := repo.GetGroupStreamByGroup(ctx, "ИУ7-11Б")
		require.NoError(t, err)
		require.NotNil(t, gs.HeadmanID)
		students, err := repo.QueryStudentsByGroupStream(ctx, gs.ID)
		require.NoError(t, err)
		require.Len(t, students, 2)
		assert.Equal(t, "Петров", students[1].Surname)
		assert.Equal(t, students[1].ID, *gs.HeadmanID)
	})
}

func TestService_ImportInvalid(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		data    func(t *testing.T) []byte
		fault   string
		wantErr string
		wantRow int
	}{
		{
			name: "missing name",
			data: func(t *testing.T) []byte {
				return testutil.RosterWorkbook(t,
					[]string{"Иванов", "Иван", "", "ИУ7-1", "ИУ7-11Б"},
					[]string{"Петров", "", "", "ИУ7-1", "ИУ7-11Б"},
				)
			},
			wantErr: `row 3: sheet "Лист1": invalid roster row: name must not be blank`,
			wantRow: 3,
		},
		{
			name: "bad email",
			data: func(t *testing.T) []byte {
				return testutil.RosterWorkbook(t,
					[]string{"Иванов", "Иван", "", "ИУ7-1", "ИУ7-11Б", "lol"},
				)
			},
			wantErr: `row 2: sheet "Лист1": invalid roster row: email must be a valid email address`,
			wantRow: 2,
		},
		{
			name: "store failure",
			data: func(t *testing.T) []byte {
				return testutil.RosterWorkbook(t,
					[]string{"Иванов", "Иван", "", "ИУ7-1", "ИУ7-11Б"},
					[]string{"Петров", "Пётр", "", "ИУ7-1", "ИУ7-11Б"},
				)
			},
			fault:   "CreateStudent",
			wantErr: `database importing sheet "Лист1" row 2: creating student: boom`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, repo, svc := setup()
			if tt.fault != "" {
				db.FailOn(tt.fault, errors.New("boom"))
			}

			created, err := svc.Import(ctx, bytes.NewReader(tt.data(t)))
			require.Error(t, err)
			assert.Nil(t, created)
			assert.Equal(t, tt.wantErr, err.Error())

			if tt.wantRow > 0 {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantRow, vErr.Row)
				assert.NotEmpty(t, vErr.Fields)
			}

			// nothing is kept from a failed import
			db.FailOn(tt.fault, nil)
			students, err := repo.QueryAllStudents(ctx)
			require.NoError(t, err)
			assert.Empty(t, students)
			groupStreams, err := repo.QueryAllGroupStreams(ctx)
			require.NoError(t, err)
			assert.Empty(t, groupStreams)
		})
	}
}
