package validation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"zenithmaint/internal/domain"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Issue struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Table    string   `json:"table"`
	RecordID string   `json:"record_id"`
	Message  string   `json:"message"`
}

type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r Report) Valid() bool { return len(r.Errors) == 0 }

type Fix struct {
	Check    string `json:"check"`
	Affected int    `json:"affected"`
}

type FixReport struct {
	Fixed  []Fix    `json:"fixed"`
	Failed []string `json:"failed"`
}

// Total is the number of records changed across all checks.
func (r FixReport) Total() int {
	n := 0
	for _, f := range r.Fixed {
		n += f.Affected
	}
	return n
}

// check detects offending record ids with detect and repairs them with fix.
type check struct {
	name     string
	severity Severity
	table    string
	message  string
	detect   string
	fix      string
}

var knownTypes = "'" + strings.Join(domain.ItemTypes, "','") + "'"

var checks = []check{
	{
		name:     "orphaned_subtasks",
		severity: SeverityError,
		table:    "subtasks",
		message:  "subtask references a missing parent item",
		detect:   `SELECT id FROM subtasks WHERE parent_item_id NOT IN (SELECT id FROM items) ORDER BY id`,
		fix:      `DELETE FROM subtasks WHERE parent_item_id NOT IN (SELECT id FROM items)`,
	},
	{
		name:     "empty_title",
		severity: SeverityError,
		table:    "items",
		message:  "item has an empty title",
		detect:   `SELECT id FROM items WHERE TRIM(title) = '' ORDER BY id`,
		fix:      `UPDATE items SET title = 'Untitled' WHERE TRIM(title) = ''`,
	},
	{
		name:     "unknown_item_type",
		severity: SeverityWarning,
		table:    "items",
		message:  "item has an unknown type",
		detect:   `SELECT id FROM items WHERE item_type NOT IN (` + knownTypes + `) ORDER BY id`,
		fix:      `UPDATE items SET item_type = '` + domain.ItemTypeTask + `' WHERE item_type NOT IN (` + knownTypes + `)`,
	},
	{
		name:     "updated_before_created",
		severity: SeverityWarning,
		table:    "items",
		message:  "item was updated before it was created",
		detect:   `SELECT id FROM items WHERE updated_at < created_at ORDER BY id`,
		fix:      `UPDATE items SET updated_at = created_at WHERE updated_at < created_at`,
	},
}

type Validator struct{ db *sql.DB }

func New(db *sql.DB) *Validator { return &Validator{db: db} }

// ValidateAll runs every check and reports what it found. A failing query
// aborts validation.
func (v *Validator) ValidateAll(ctx context.Context) (Report, error) {
	var rep Report
	for _, c := range checks {
		ids, err := v.detect(ctx, c)
		if err != nil {
			return Report{}, fmt.Errorf("check %s: %w", c.name, err)
		}
		for _, id := range ids {
			is := Issue{Check: c.name, Severity: c.severity, Table: c.table, RecordID: id, Message: c.message}
			if c.severity == SeverityError {
				rep.Errors = append(rep.Errors, is)
			} else {
				rep.Warnings = append(rep.Warnings, is)
			}
		}
	}
	return rep, nil
}

// FixAll applies every repair. A failing check is recorded and the rest
// still run.
func (v *Validator) FixAll(ctx context.Context) (FixReport, error) {
	var rep FixReport
	for _, c := range checks {
		res, err := v.db.ExecContext(ctx, c.fix)
		if err != nil {
			log.Error().Err(err).Str("check", c.name).Msg("fix failed")
			rep.Failed = append(rep.Failed, fmt.Sprintf("%s: %v", c.name, err))
			continue
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			rep.Fixed = append(rep.Fixed, Fix{Check: c.name, Affected: int(n)})
		}
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

func (v *Validator) detect(ctx context.Context, c check) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, c.detect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
