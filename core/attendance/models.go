package attendance

import "context"

type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
)

type GranteeType string

const (
	GranteeAnyone GranteeType = "anyone"
	GranteeUser   GranteeType = "user"
)

type (
	// Permission grants access to a spreadsheet. Email is only set for GranteeUser.
	Permission struct {
		Type  GranteeType
		Role  Role
		Email string
	}

	Spreadsheet struct {
		ID  string
		URL string
	}

	SheetStudent struct {
		Name    string
		Headman bool
	}

	// GroupSheet is the attendance sheet of one group.
	GroupSheet struct {
		Title    string
		Students []SheetStudent
	}

	// Provider is the spreadsheet service the generator drives.
	Provider interface {
		CreateSpreadsheet(ctx context.Context, title string) (Spreadsheet, error)
		Share(ctx context.Context, spreadsheetID string, perms ...Permission) error
		// PopulateSheets lays out one sheet per group: the first sheet is renamed, the others are added.
		PopulateSheets(ctx context.Context, spreadsheetID string, sheets []GroupSheet, lessons int) error
		DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error
	}

	// Result maps a spreadsheet title ("{subject}{stream}") to its URLs.
	Result map[string][]string
)

// Title names the spreadsheet of a (stream, subject) pair.
func Title(stream, subject string) string {
	return subject + stream
}
