package repository

import (
	"context"
	"time"

	"contactbook/internal/database"
	"contactbook/internal/models"
)

type ContactRepository struct {
	db      database.DBTX
	timeout time.Duration
}

func NewContactRepository(db database.DBTX, opTimeout time.Duration) *ContactRepository {
	return &ContactRepository{db: db, timeout: opTimeout}
}

// ListBirthdaysBetween returns the owner's contacts whose birthday falls on a
// day of the year in [startDay, endDay]. When endDay < startDay the range
// wraps across the end of the year. Rows come back in calendar order starting
// at startDay.
func (r *ContactRepository) ListBirthdaysBetween(ctx context.Context, userID string, startDay, endDay int) ([]models.Contact, error) {
	const within = `
		SELECT id, user_id, name, surname, email, phone_number, birthday, notes, created_at
		FROM contacts
		WHERE user_id = $1
		  AND EXTRACT(DOY FROM birthday) BETWEEN $2 AND $3
		ORDER BY (EXTRACT(DOY FROM birthday)::int - $2 + 366) % 366, surname, name
	`
	const wrapped = `
		SELECT id, user_id, name, surname, email, phone_number, birthday, notes, created_at
		FROM contacts
		WHERE user_id = $1
		  AND (EXTRACT(DOY FROM birthday) >= $2 OR EXTRACT(DOY FROM birthday) <= $3)
		ORDER BY (EXTRACT(DOY FROM birthday)::int - $2 + 366) % 366, surname, name
	`

	query := within
	if endDay < startDay {
		query = wrapped
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, query, userID, startDay, endDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]models.Contact, 0)
	for rows.Next() {
		var contact models.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.UserID,
			&contact.Name,
			&contact.Surname,
			&contact.Email,
			&contact.PhoneNumber,
			&contact.Birthday,
			&contact.Notes,
			&contact.CreatedAt,
		); err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}
