package store

import (
	"context"
	"fmt"

	"github.com/linkgate/linkgate/internal/model"
)

// Append stores a click event. Events for a link deleted in the meantime
// violate the foreign key and are dropped.
func (p *Postgres) Append(ctx context.Context, event *model.ClickEvent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO click_events (id, link_id, short_code, client_ip, country, city, device_type, browser, os, referrer, user_agent, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.LinkID, event.ShortCode, event.ClientIP, event.Country, event.City,
		event.DeviceType, event.Browser, event.OS, event.Referrer, event.UserAgent, event.Timestamp,
	)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return nil
		}
		return fmt.Errorf("failed to insert click event: %w", err)
	}
	return nil
}

// Events returns a link's click events in timestamp order.
func (p *Postgres) Events(ctx context.Context, linkID string) ([]model.ClickEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, link_id, short_code, client_ip, country, city, device_type, browser, os, referrer, user_agent, clicked_at
		FROM click_events
		WHERE link_id = $1
		ORDER BY clicked_at, id`, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query click events: %w", err)
	}
	defer rows.Close()

	events := make([]model.ClickEvent, 0)
	for rows.Next() {
		var e model.ClickEvent
		if err := rows.Scan(
			&e.ID, &e.LinkID, &e.ShortCode, &e.ClientIP, &e.Country, &e.City,
			&e.DeviceType, &e.Browser, &e.OS, &e.Referrer, &e.UserAgent, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate click events: %w", err)
	}
	return events, nil
}

// Purge deletes a link's click events. Deleting the link cascades already;
// this serves callers that clear analytics without removing the link.
func (p *Postgres) Purge(ctx context.Context, linkID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM click_events WHERE link_id = $1`, linkID); err != nil {
		return fmt.Errorf("failed to purge click events: %w", err)
	}
	return nil
}
