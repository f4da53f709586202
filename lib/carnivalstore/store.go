package carnivalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrDuplicateSourceId is returned by Create and ApplyImport when the
// active-row unique index on source_id rejects a write.
var ErrDuplicateSourceId = errors.New("an active carnival with this source id already exists")

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type Carnival struct {
	Id       int64
	SourceId string // "" when the row was never linked to a MySideline record
	Title    string
	Date     string // YYYY-MM-DD, "" when unknown
	State    string
	LocationAddress       string
	RegistrationLink      string
	OrganiserContactName  string
	OrganiserContactEmail string
	OrganiserContactPhone string
	LogoUrl               string
	Description           string
	IsManuallyEntered     bool
	ManualOverrideFields  []string
	LastImportedAt        time.Time // zero when never imported
	IsActive              bool
}

// HasOverride reports whether the website has marked the given field
// as hand-edited. The import pipeline treats the set as read-only.
func (c Carnival) HasOverride(field string) bool {
	for _, f := range c.ManualOverrideFields {
		if f == field {
			return true
		}
	}
	return false
}

// Patch maps pipeline-owned field names (see schema.go) to their new
// values. Dates are ISO YYYY-MM-DD strings.
type Patch map[string]string

const carnivalColumns = `id, source_id, title, date, state, location_address,
	registration_link, organiser_contact_name, organiser_contact_email,
	organiser_contact_phone, logo_url, description, is_manually_entered,
	manual_override_fields, last_imported_at, is_active`

func scanCarnival(row interface{ Scan(...any) error }) (Carnival, error) {
	var c Carnival
	var sourceId, date, state sql.NullString
	var overrides string
	var lastImported int64
	err := row.Scan(
		&c.Id, &sourceId, &c.Title, &date, &state, &c.LocationAddress,
		&c.RegistrationLink, &c.OrganiserContactName, &c.OrganiserContactEmail,
		&c.OrganiserContactPhone, &c.LogoUrl, &c.Description,
		&c.IsManuallyEntered, &overrides, &lastImported, &c.IsActive,
	)
	if err != nil {
		return Carnival{}, err
	}
	c.SourceId = sourceId.String
	c.Date = date.String
	c.State = state.String
	if lastImported > 0 {
		c.LastImportedAt = time.Unix(lastImported, 0)
	}
	err = json.Unmarshal([]byte(overrides), &c.ManualOverrideFields)
	if err != nil {
		return Carnival{}, fmt.Errorf("carnival %d: bad manual_override_fields: %w", c.Id, err)
	}
	return c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Snapshot returns every active carnival, ordered by id. The import
// pipeline classifies a whole run against one snapshot so that writes
// within the run cannot influence later candidates.
func (s Store) Snapshot(ctx context.Context) ([]Carnival, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+carnivalColumns+` FROM carnival WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Carnival
	for rows.Next() {
		c, err := scanCarnival(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s Store) GetById(ctx context.Context, id int64) (Carnival, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+carnivalColumns+` FROM carnival WHERE id = ?`, id)
	c, err := scanCarnival(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Carnival{}, false, nil
	}
	if err != nil {
		return Carnival{}, false, err
	}
	return c, true, nil
}

func (s Store) GetBySourceId(ctx context.Context, sourceId string) (Carnival, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+carnivalColumns+` FROM carnival WHERE source_id = ? AND is_active = 1`,
		sourceId)
	c, err := scanCarnival(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Carnival{}, false, nil
	}
	if err != nil {
		return Carnival{}, false, err
	}
	return c, true, nil
}

// Create inserts a new carnival and returns its id.
func (s Store) Create(ctx context.Context, c Carnival) (int64, error) {
	overrides, err := json.Marshal(emptyIfNil(c.ManualOverrideFields))
	if err != nil {
		return 0, err
	}
	var lastImported int64
	if !c.LastImportedAt.IsZero() {
		lastImported = c.LastImportedAt.Unix()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO carnival (
			source_id, title, date, state, location_address,
			registration_link, organiser_contact_name, organiser_contact_email,
			organiser_contact_phone, logo_url, description,
			is_manually_entered, manual_override_fields, last_imported_at, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		nullable(c.SourceId), c.Title, nullable(c.Date), nullable(c.State),
		c.LocationAddress, c.RegistrationLink, c.OrganiserContactName,
		c.OrganiserContactEmail, c.OrganiserContactPhone, c.LogoUrl,
		c.Description, c.IsManuallyEntered, string(overrides), lastImported,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateSourceId, c.SourceId)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// ApplyImport applies an import patch to one row in a single
// transaction. Only whitelisted pipeline-owned fields may appear in the
// patch; is_manually_entered and manual_override_fields are never
// touched. adoptSourceId, when non-empty, links a previously unlinked
// row to its MySideline record.
func (s Store) ApplyImport(ctx context.Context, id int64, patch Patch, adoptSourceId string, importedAt time.Time) error {
	assigns := []string{"last_imported_at = ?"}
	args := []any{importedAt.Unix()}

	// deterministic statement text for a given patch shape
	fields := make([]string, 0, len(patch))
	for f := range patch {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		col, ok := fieldColumns[f]
		if !ok {
			return fmt.Errorf("field %q is not importable", f)
		}
		assigns = append(assigns, col+" = ?")
		args = append(args, nullableField(f, patch[f]))
	}
	if adoptSourceId != "" {
		assigns = append(assigns, "source_id = ?")
		args = append(args, adoptSourceId)
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE carnival SET `+strings.Join(assigns, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSourceId, adoptSourceId)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("carnival %d does not exist", id)
	}
	return tx.Commit()
}

// SetManualOverrides replaces the hand-edited field set on a row. This
// is the website's side of the contract; the import pipeline only ever
// reads the set.
func (s Store) SetManualOverrides(ctx context.Context, id int64, fields []string) error {
	for _, f := range fields {
		if _, ok := fieldColumns[f]; !ok {
			return fmt.Errorf("field %q cannot be overridden", f)
		}
	}
	encoded, err := json.Marshal(emptyIfNil(fields))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE carnival SET manual_override_fields = ? WHERE id = ?`,
		string(encoded), id)
	return err
}

// ListUpcoming returns active carnivals on or after the given ISO date,
// optionally filtered by state, soonest first. This is the read the
// website's carnival listings are built on.
func (s Store) ListUpcoming(ctx context.Context, state string, fromDate string, limit int) ([]Carnival, error) {
	query := `SELECT ` + carnivalColumns + ` FROM carnival
		WHERE is_active = 1 AND date IS NOT NULL AND date >= ?`
	args := []any{fromDate}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY date, title LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Carnival
	for rows.Next() {
		c, err := scanCarnival(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableField(field, value string) any {
	switch field {
	case FieldDate, FieldState:
		return nullable(value)
	}
	return value
}

func emptyIfNil(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return fields
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
