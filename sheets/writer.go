package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"quota-scraper/render"
	"quota-scraper/session"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const maxSheetNameLen = 100

// Writer handles writing session views to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	log           *zap.SugaredLogger
}

// NewWriter creates a new Google Sheets writer.
// Credentials come from credentialsPath, or from GOOGLE_SHEETS_CREDENTIALS when the path is empty.
func NewWriter(ctx context.Context, spreadsheetID string, credentialsPath string, log *zap.SugaredLogger) (*Writer, error) {
	credsJSON, err := readCredentials(credentialsPath, log)
	if err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

func readCredentials(credentialsPath string, log *zap.SugaredLogger) ([]byte, error) {
	var credsJSON []byte

	if credentialsPath != "" {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		log.Debugf("Reading credentials from GOOGLE_SHEETS_CREDENTIALS environment variable (%d bytes)", len(credsEnv))
		credsJSON = []byte(credsEnv)
	}

	if err := validateCredentials(credsJSON); err != nil {
		return nil, err
	}
	return credsJSON, nil
}

// validateCredentials checks that the JSON is a service account key
func validateCredentials(credsJSON []byte) error {
	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}
	return nil
}

// CreateSheetAndWriteView creates a new sheet and writes the view to it.
// The sheet is inserted at the beginning (index 0) of the spreadsheet.
// Returns the sheet name and sheet ID (gid) that was created.
func (w *Writer) CreateSheetAndWriteView(ctx context.Context, sheetName string, v session.View, source string) (string, int64, error) {
	sheetName = truncateSheetName(sanitizeSheetName(sheetName))

	insertIndex := int64(0)
	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: insertIndex,
					},
				},
			},
		},
	}

	batchUpdateResp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batchUpdateRequest).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(batchUpdateResp.Replies) > 0 && batchUpdateResp.Replies[0].AddSheet != nil {
		sheetID = batchUpdateResp.Replies[0].AddSheet.Properties.SheetId
	}

	w.log.Infof("Created sheet '%s' with ID %d at index %d", sheetName, sheetID, insertIndex)

	values := BuildValues(v, source)
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, a1Range(sheetName, "A1"), valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.log.Infof("Successfully wrote %d rows to sheet '%s'", len(values), sheetName)
	return sheetName, sheetID, nil
}

// SheetURL returns a link that opens the given sheet
func (w *Writer) SheetURL(sheetID int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", w.spreadsheetID, sheetID)
}

// BuildValues lays out the view as rows: a metadata row, the header, then the data rows.
// source is optional and is added to the metadata row when set.
func BuildValues(v session.View, source string) [][]interface{} {
	var values [][]interface{}

	metadataRow := []interface{}{"View", render.Title(v)}
	for _, line := range render.Timing(v.Session) {
		if label, value, ok := strings.Cut(line, ":"); ok {
			metadataRow = append(metadataRow, label, strings.TrimSpace(value))
		}
	}
	if source != "" {
		metadataRow = append(metadataRow, "Source", source)
	}
	values = append(values, metadataRow)

	headers := render.Headers(v.Kind)
	if len(headers) == 0 {
		return values
	}
	values = append(values, toRow(headers))

	for _, row := range render.Rows(v) {
		values = append(values, toRow(row))
	}
	return values
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ]
	invalidChars := []string{"/", "\\", "?", "*", "[", "]"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	return result
}

// truncateSheetName cuts name to the sheet title limit without splitting a character
func truncateSheetName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxSheetNameLen {
		return name
	}
	return strings.TrimSpace(string(runes[:maxSheetNameLen]))
}

// a1Range builds an A1 range with the sheet name quoted, so names with spaces or quotes resolve
func a1Range(sheetName, cell string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheetName, "'", "''"), cell)
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.IndexAny(idPart, "/?#"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
