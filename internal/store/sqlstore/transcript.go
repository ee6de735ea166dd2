package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

func (s *Store) SaveMessage(ctx context.Context, uid, sessionID string, msg models.AIMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	args, err := encodeJSON(msg.ToolArgs)
	if err != nil {
		return errs.NewDatabaseError("create", "failed to encode tool arguments", err)
	}
	result, err := encodeJSON(msg.ToolResult)
	if err != nil {
		return errs.NewDatabaseError("create", "failed to encode tool result", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO ai_messages (uid, session_id, role, content, tool_name, tool_args, tool_result, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, sessionID, msg.Role, msg.Content, msg.ToolName, args, result,
		formatTime(msg.CreatedAt), nullTime(msg.ExpiresAt))
	if err != nil {
		return errs.NewDatabaseError("create", "failed to save assistant message", err)
	}
	return nil
}

// ListMessages returns the latest limit unexpired messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, uid, sessionID string, limit int) ([]models.AIMessage, error) {
	query := `
SELECT role, content, tool_name, tool_args, tool_result, created_at, expires_at
FROM ai_messages
WHERE uid = ? AND session_id = ? AND (expires_at IS NULL OR expires_at > ?)
ORDER BY created_at DESC, id DESC`
	args := []any{uid, sessionID, formatTime(time.Now())}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list assistant messages", err)
	}
	defer rows.Close()

	var out []models.AIMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse assistant message", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list assistant messages", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessage(row rowScanner) (models.AIMessage, error) {
	var (
		msg                  models.AIMessage
		toolArgs, toolResult sql.NullString
		created              string
		expires              sql.NullString
	)
	if err := row.Scan(&msg.Role, &msg.Content, &msg.ToolName, &toolArgs, &toolResult, &created, &expires); err != nil {
		return msg, err
	}
	var err error
	if msg.CreatedAt, err = parseTime(created); err != nil {
		return msg, err
	}
	if expires.Valid {
		if msg.ExpiresAt, err = parseTime(expires.String); err != nil {
			return msg, err
		}
	}
	if toolArgs.Valid {
		if err := json.Unmarshal([]byte(toolArgs.String), &msg.ToolArgs); err != nil {
			return msg, err
		}
	}
	if toolResult.Valid {
		if err := json.Unmarshal([]byte(toolResult.String), &msg.ToolResult); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

func encodeJSON(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
