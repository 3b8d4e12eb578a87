package runs

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		statusStr   string
		triggerStr  string
		errorMsg    sql.NullString
		createdRaw  string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&statusStr,
		&run.Attempt,
		&triggerStr,
		&run.RawCount,
		&run.RecordCount,
		&run.LoadedCount,
		&errorMsg,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run.Status = Status(statusStr)
	run.Trigger = Trigger(triggerStr)
	run.ErrorMessage = errorMsg.String
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	run.StartedAt = parseNullableTime(startedRaw)
	run.FinishedAt = parseNullableTime(finishedRaw)
	return &run, nil
}

// storedTimeLayout is fixed width so stored timestamps sort lexically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
