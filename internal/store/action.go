package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// EventType names the detector event an action is bound to.
type EventType string

// EventBlink fires once per counted blink.
const EventBlink EventType = "blink"

// ValidEvent reports whether e is a known event type.
func ValidEvent(e EventType) bool {
	return e == EventBlink
}

// Action represents an event-to-plugin binding stored in the database.
type Action struct {
	ID         string
	Event      EventType
	PluginName string
	ActionName string
	Config     json.RawMessage
	Params     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// ActionRepository provides CRUD operations for actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

const actionColumns = `id, event, plugin_name, action_name, config, params, enabled, created_at`

// Create inserts a new action into the database.
func (r *ActionRepository) Create(a *Action) error {
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Event), a.PluginName, a.ActionName,
		string(orEmptyObject(a.Config)), string(orEmptyObject(a.Params)),
		boolToInt(a.Enabled), a.CreatedAt,
	)
	return err
}

// GetByID retrieves an action by its ID.
func (r *ActionRepository) GetByID(id string) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(
		`SELECT `+actionColumns+` FROM actions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List retrieves all actions from the database.
func (r *ActionRepository) List() ([]*Action, error) {
	return r.query(`SELECT ` + actionColumns + ` FROM actions ORDER BY created_at DESC`)
}

// ListEnabled retrieves the enabled actions bound to an event, oldest first.
func (r *ActionRepository) ListEnabled(event EventType) ([]*Action, error) {
	return r.query(
		`SELECT `+actionColumns+` FROM actions WHERE event = ? AND enabled = 1 ORDER BY created_at`,
		string(event),
	)
}

func (r *ActionRepository) query(q string, args ...any) ([]*Action, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return actions, nil
}

// Update updates an existing action in the database.
func (r *ActionRepository) Update(a *Action) error {
	result, err := r.db.Exec(
		`UPDATE actions SET event = ?, plugin_name = ?, action_name = ?, config = ?, params = ?, enabled = ?
		 WHERE id = ?`,
		string(a.Event), a.PluginName, a.ActionName,
		string(orEmptyObject(a.Config)), string(orEmptyObject(a.Params)),
		boolToInt(a.Enabled), a.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an action from the database by its ID.
func (r *ActionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*Action, error) {
	a := &Action{}
	var event, config, params string
	var enabled int

	err := row.Scan(&a.ID, &event, &a.PluginName, &a.ActionName, &config, &params, &enabled, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Event = EventType(event)
	a.Config = json.RawMessage(config)
	a.Params = json.RawMessage(params)
	a.Enabled = enabled != 0
	return a, nil
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
