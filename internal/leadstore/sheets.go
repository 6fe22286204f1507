package leadstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/equestrolabs/leadgen-cli/internal/resilience"
)

// SheetsBackend implements Backend on the Google Sheets v4 API.
type SheetsBackend struct {
	svc           *sheets.Service
	spreadsheetID string
}

// CredentialsOption loads a service-account or authorized-user JSON file and
// returns a client option scoped for spreadsheet access.
func CredentialsOption(ctx context.Context, path string) (option.ClientOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: read credentials")
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: parse credentials")
	}
	return option.WithCredentials(creds), nil
}

// NewSheetsBackend creates a backend for one spreadsheet.
func NewSheetsBackend(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsBackend, error) {
	if spreadsheetID == "" {
		return nil, eris.New("sheets: spreadsheet id is required")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}
	return &SheetsBackend{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ListTabs implements Backend.
func (b *SheetsBackend) ListTabs(ctx context.Context) ([]string, error) {
	ss, err := b.svc.Spreadsheets.Get(b.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "sheets: get spreadsheet")
	}
	tabs := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			tabs = append(tabs, sh.Properties.Title)
		}
	}
	return tabs, nil
}

// AddTab implements Backend.
func (b *SheetsBackend) AddTab(ctx context.Context, tab string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab},
			},
		}},
	}
	_, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do()
	return classify(err, "sheets: add tab")
}

// Get implements Backend.
func (b *SheetsBackend) Get(ctx context.Context, rng string) ([][]string, error) {
	resp, err := b.svc.Spreadsheets.Values.Get(b.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "sheets: get values")
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// Append implements Backend.
func (b *SheetsBackend) Append(ctx context.Context, rng string, row []string) (string, error) {
	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	resp, err := b.svc.Spreadsheets.Values.Append(b.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", classify(err, "sheets: append")
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

// BatchUpdate implements Backend.
func (b *SheetsBackend) BatchUpdate(ctx context.Context, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		vals := make([][]interface{}, len(u.Values))
		for i, row := range u.Values {
			vals[i] = toInterfaces(row)
		}
		data = append(data, &sheets.ValueRange{Range: u.Range, Values: vals})
	}
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: data}
	_, err := b.svc.Spreadsheets.Values.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do()
	return classify(err, "sheets: batch update")
}

// Close implements Backend.
func (b *SheetsBackend) Close() error { return nil }

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// classify maps Google API errors onto the store's error classes.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range") {
			return ErrTabNotFound
		}
		return resilience.ClassifyHTTPStatus(eris.Wrap(err, msg), gerr.Code)
	}
	return eris.Wrap(err, msg)
}
