package googlesheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	GoogleSheetsOption_Spreadsheets = "spreadsheets"
	GoogleSheetsOption_Sheets       = "sheets"
	GoogleSheetsOption_Columns      = "columns"
)

type GoogleSheetsOptionLoaderCreator struct {
	credentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewGoogleSheetsOptionLoaderCreator(deps domain.ProviderDeps) domain.OptionLoaderCreator {
	return &GoogleSheetsOptionLoaderCreator{
		credentialGetter: managers.NewHubCredentialGetter[domain.OAuthTokenData](deps.HubCredentialManager),
	}
}

func (c *GoogleSheetsOptionLoaderCreator) CreateOptionLoader(ctx context.Context, p domain.CreateOptionLoaderParams) (domain.ProviderOptionLoader, error) {
	return NewGoogleSheetsOptionLoader(ctx, GoogleSheetsOptionLoaderDependencies{
		CredentialID:     p.CredentialID,
		WorkspaceID:      p.WorkspaceID,
		CredentialGetter: c.credentialGetter,
	})
}

type GoogleSheetsOptionLoader struct {
	sheetsService *sheets.Service
	driveService  *drive.Service

	optionFuncs map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error)
}

type GoogleSheetsOptionLoaderDependencies struct {
	CredentialID string
	WorkspaceID  string

	CredentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewGoogleSheetsOptionLoader(ctx context.Context, deps GoogleSheetsOptionLoaderDependencies) (*GoogleSheetsOptionLoader, error) {
	tokens, err := deps.CredentialGetter.GetDecryptedCredential(ctx, deps.WorkspaceID, deps.CredentialID)
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       tokens.Expiry,
	}))

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	driveService, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	loader := &GoogleSheetsOptionLoader{
		sheetsService: sheetsService,
		driveService:  driveService,
	}
	loader.optionFuncs = map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error){
		GoogleSheetsOption_Spreadsheets: loader.LoadSpreadsheets,
		GoogleSheetsOption_Sheets:       loader.LoadSheets,
		GoogleSheetsOption_Columns:      loader.LoadColumns,
	}

	return loader, nil
}

func (g *GoogleSheetsOptionLoader) LoadOptions(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	optionFunc, ok := g.optionFuncs[query.OptionType]
	if !ok {
		return domain.OptionPage{}, fmt.Errorf("option function not found")
	}

	return optionFunc(ctx, query)
}

func (g *GoogleSheetsOptionLoader) LoadSpreadsheets(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	limit := query.GetLimitWithMax(20, 100)

	call := g.driveService.Files.List().
		Q("mimeType='application/vnd.google-apps.spreadsheet'").
		Fields("nextPageToken, files(id, name)").
		PageSize(int64(limit)).
		Context(ctx)

	if cursor := query.Pagination.Cursor; cursor != "" {
		call = call.PageToken(cursor)
	}

	page, err := call.Do()
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to list spreadsheets: %w", err)
	}

	options := make([]domain.ConnectionOption, 0, len(page.Files))
	for _, file := range page.Files {
		options = append(options, domain.ConnectionOption{
			Key:     file.Name,
			Value:   file.Id,
			Content: file.Name,
		})
	}

	return domain.OptionPage{
		Options: options,
		Pagination: domain.PaginationMetadata{
			NextCursor: page.NextPageToken,
			HasMore:    page.NextPageToken != "",
		},
	}, nil
}

func (g *GoogleSheetsOptionLoader) LoadSheets(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	spreadsheetID, err := payloadField(query.PayloadJSON, "spreadsheet_id")
	if err != nil {
		return domain.OptionPage{}, err
	}
	if spreadsheetID == "" {
		return domain.OptionPage{Options: []domain.ConnectionOption{}}, nil
	}

	spreadsheet, err := g.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	options := make([]domain.ConnectionOption, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		// Titles are what users recognize, the numeric ID is what later
		// API calls need.
		options = append(options, domain.ConnectionOption{
			Key:     sheet.Properties.Title,
			Value:   strconv.FormatInt(sheet.Properties.SheetId, 10),
			Content: sheet.Properties.Title,
		})
	}

	return domain.OptionPage{Options: options}, nil
}

func (g *GoogleSheetsOptionLoader) LoadColumns(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	spreadsheetID, err := payloadField(query.PayloadJSON, "spreadsheet_id")
	if err != nil {
		return domain.OptionPage{}, err
	}

	worksheetID, err := payloadField(query.PayloadJSON, "worksheet_id")
	if err != nil {
		return domain.OptionPage{}, err
	}

	if spreadsheetID == "" || worksheetID == "" {
		return domain.OptionPage{Options: []domain.ConnectionOption{}}, nil
	}

	spreadsheet, err := g.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	// The panel sends either the numeric sheet ID or the title, depending on
	// how the worksheet field was filled.
	sheetTitle, found := resolveSheetTitle(spreadsheet, worksheetID)
	if !found {
		return domain.OptionPage{}, fmt.Errorf("no worksheet matches %q", worksheetID)
	}

	header, err := g.headerRow(ctx, spreadsheetID, sheetTitle)
	if err != nil {
		return domain.OptionPage{}, err
	}

	options := make([]domain.ConnectionOption, 0, len(header))
	for _, cell := range header {
		label := fmt.Sprint(cell)
		options = append(options, domain.ConnectionOption{
			Key:     label,
			Value:   label,
			Content: label,
		})
	}

	return domain.OptionPage{Options: options}, nil
}

func resolveSheetTitle(spreadsheet *sheets.Spreadsheet, ref string) (string, bool) {
	if numericID, err := strconv.Atoi(ref); err == nil {
		for _, sheet := range spreadsheet.Sheets {
			if int(sheet.Properties.SheetId) == numericID {
				return sheet.Properties.Title, true
			}
		}
		return "", false
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == ref {
			return ref, true
		}
	}

	return "", false
}

// headerRow fetches the first row of the named sheet.
func (g *GoogleSheetsOptionLoader) headerRow(ctx context.Context, spreadsheetID, sheetTitle string) ([]interface{}, error) {
	readRange := sheetTitle + "!1:1"

	resp, err := g.sheetsService.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, fmt.Errorf("worksheet %s has no header row", sheetTitle)
	}

	return resp.Values[0], nil
}

func payloadField(payloadJSON []byte, field string) (string, error) {
	if len(payloadJSON) == 0 {
		return "", nil
	}

	var payload map[string]any
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return "", fmt.Errorf("failed to parse payload JSON: %w", err)
	}

	value, _ := payload[field].(string)

	return value, nil
}
