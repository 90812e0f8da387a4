package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"campusrun/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	lastColumn = "R"
)

var missionHeaders = []interface{}{
	"ID", "Status", "Version", "Student ID", "Runner ID", "Type", "Pickup", "Dropoff",
	"Item Cost", "Service Fee", "Additional Cost", "Price Estimate", "Payment Method",
	"Payment Ref", "Student Rating", "Runner Rating", "Created At", "Updated At",
}

var errRowNotFound = errors.New("mission row not found")

// MissionSheets mirrors missions into one sheet, one row per mission keyed by
// the id in column A.
type MissionSheets struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

// NewMissionSheets authenticates with a service account key file.
func NewMissionSheets(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*MissionSheets, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newMissionSheets(srv, spreadsheetID, sheetName), nil
}

func newMissionSheets(srv *sheets.Service, spreadsheetID, sheetName string) *MissionSheets {
	return &MissionSheets{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
	}
}

func (s *MissionSheets) rangeOf(a1 string) string {
	return s.sheetName + "!" + a1
}

// TestConnection reads the header cell.
func (s *MissionSheets) TestConnection(ctx context.Context) error {
	if _, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A1")).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email of a key file, which is the
// address the spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache rebuilds the id to row index from column A.
func (s *MissionSheets) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if id := cellID(row); id != "" && i > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// UpsertMission rewrites the mission's row or appends one when it has none.
func (s *MissionSheets) UpsertMission(ctx context.Context, mission *models.Mission) error {
	if mission == nil {
		return errors.New("mission is nil")
	}

	rowIdx, err := s.FindMissionRow(ctx, mission.ID)
	if errors.Is(err, errRowNotFound) {
		return s.AppendMission(ctx, mission)
	}
	if err != nil {
		return err
	}

	rangeData := s.rangeOf(fmt.Sprintf("A%d:%s%d", rowIdx, lastColumn, rowIdx))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{missionRowValues(mission)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *MissionSheets) AppendMission(ctx context.Context, mission *models.Mission) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeOf("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{missionRowValues(mission)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(mission.ID, row)
		}
	}
	return nil
}

// FindMissionRow returns the 1-based row holding missionID.
func (s *MissionSheets) FindMissionRow(ctx context.Context, missionID string) (int, error) {
	if missionID == "" {
		return 0, errors.New("mission id is required")
	}
	if row, ok := s.getCachedRow(missionID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellID(row) == missionID {
			s.setCachedRow(missionID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

// ReplaceMissionsSheet rewrites the whole sheet from missions.
func (s *MissionSheets) ReplaceMissionsSheet(ctx context.Context, missions []*models.Mission) error {
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rangeOf("A1:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear missions sheet: %w", err)
	}
	s.ClearCache()

	values := make([][]interface{}, 0, len(missions)+1)
	values = append(values, missionHeaders)
	for _, m := range missions {
		values = append(values, missionRowValues(m))
	}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update missions sheet: %w", err)
	}

	for i, m := range missions {
		s.setCachedRow(m.ID, i+2)
	}
	return nil
}

func (s *MissionSheets) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *MissionSheets) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache forgets every known mission row.
func (s *MissionSheets) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func cellID(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	if v, ok := row[0].(string); ok {
		return v
	}
	return fmt.Sprint(row[0])
}

var rangeRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

func rowFromRange(a1 string) (int, bool) {
	m := rangeRowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	return row, err == nil
}

func missionRowValues(m *models.Mission) []interface{} {
	return []interface{}{
		m.ID,
		m.Status,
		m.Version,
		m.StudentID,
		m.Runner(),
		m.Type,
		m.PickupAddress,
		m.DropoffAddress,
		m.ItemCost,
		m.ServiceFee,
		m.AdditionalCost,
		m.PriceEstimate,
		m.PaymentMethod,
		stringOrEmpty(m.PaymentRef),
		intOrEmpty(m.StudentRating),
		intOrEmpty(m.RunnerRating),
		m.CreatedAt.Format(timeLayout),
		m.UpdatedAt.Format(timeLayout),
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(i *int) interface{} {
	if i == nil {
		return ""
	}
	return *i
}
