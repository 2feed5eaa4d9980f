package sheetsvc

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/attendance"
)

const spreadsheetURL = "https://docs.google.com/spreadsheets/d/%s"

// Client drives Google Sheets and Drive. Calls are spaced by the configured interval.
type Client struct {
	sheets  *sheets.Service
	drive   *drive.Service
	limiter *rate.Limiter
	logger  core.Logger
}

var _ attendance.Provider = (*Client)(nil)

// NewClient builds both API clients once from the service account credentials file.
func NewClient(ctx context.Context, conf *core.Config, logger core.Logger) (*Client, error) {
	opts := []option.ClientOption{
		option.WithCredentialsFile(conf.Sheets.CredentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveScope),
		option.WithUserAgent(conf.Sheets.ApplicationName),
	}

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, core.NewExternalAPIError("creating sheets client", err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, core.NewExternalAPIError("creating drive client", err)
	}
	return &Client{
		sheets:  sheetsSvc,
		drive:   driveSvc,
		limiter: NewLimiter(conf.Sheets.CallInterval),
		logger:  logger,
	}, nil
}

// NewLimiter allows one call per interval; a non-positive interval disables throttling.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return core.NewExternalAPIError(op, err)
	}
	return nil
}

func (c *Client) CreateSpreadsheet(ctx context.Context, title string) (attendance.Spreadsheet, error) {
	const op = "creating spreadsheet"
	if err := c.wait(ctx, op); err != nil {
		return attendance.Spreadsheet{}, err
	}

	ss, err := c.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return attendance.Spreadsheet{}, core.NewExternalAPIError(op, err)
	}
	c.logger.Debug(fmt.Sprintf("spreadsheet %q created: %s", title, ss.SpreadsheetId))
	return attendance.Spreadsheet{
		ID:  ss.SpreadsheetId,
		URL: fmt.Sprintf(spreadsheetURL, ss.SpreadsheetId),
	}, nil
}

func (c *Client) Share(ctx context.Context, spreadsheetID string, perms ...attendance.Permission) error {
	const op = "sharing spreadsheet"
	for _, perm := range perms {
		if err := c.wait(ctx, op); err != nil {
			return err
		}

		p := &drive.Permission{Type: string(perm.Type), Role: string(perm.Role)}
		call := c.drive.Permissions.Create(spreadsheetID, p)
		switch perm.Type {
		case attendance.GranteeAnyone:
			// link-only access
			p.AllowFileDiscovery = false
			p.ForceSendFields = []string{"AllowFileDiscovery"}
		case attendance.GranteeUser:
			p.EmailAddress = perm.Email
			call = call.SendNotificationEmail(true)
		}

		if _, err := call.Context(ctx).Do(); err != nil {
			return core.NewExternalAPIError(fmt.Sprintf("%s with %s %s", op, perm.Type, perm.Email), err)
		}
	}
	return nil
}

func (c *Client) PopulateSheets(ctx context.Context, spreadsheetID string, groups []attendance.GroupSheet, lessons int) error {
	const op = "populating sheets"
	reqs, err := buildRequests(groups, lessons)
	if err != nil {
		return core.NewExternalAPIError(op, err)
	}
	if len(reqs) == 0 {
		return nil
	}
	if err = c.wait(ctx, op); err != nil {
		return err
	}

	_, err = c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return core.NewExternalAPIError(op, err)
	}
	return nil
}

func (c *Client) DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error {
	const op = "deleting spreadsheet"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.drive.Files.Delete(spreadsheetID).Context(ctx).Do(); err != nil {
		return core.NewExternalAPIError(op, err)
	}
	c.logger.Info(fmt.Sprintf("spreadsheet %s deleted", spreadsheetID))
	return nil
}
