package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contactCols = []string{"id", "user_id", "name", "surname", "email", "phone_number", "birthday", "notes", "created_at"}

func TestContactRepository_ListBirthdaysBetween(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewContactRepository(mock, time.Second)

	notes := "Some note"
	birthday := time.Date(1990, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`EXTRACT\(DOY FROM birthday\) BETWEEN \$2 AND \$3`).
		WithArgs("u1", 60, 67).
		WillReturnRows(mock.NewRows(contactCols).
			AddRow("c1", "u1", "John", "Doe", "john@example.com", "+1234567890", birthday, &notes, time.Now()))

	contacts, err := repo.ListBirthdaysBetween(context.Background(), "u1", 60, 67)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "John", contacts[0].Name)
	assert.Equal(t, birthday, contacts[0].Birthday)
	require.NotNil(t, contacts[0].Notes)
	assert.Equal(t, "Some note", *contacts[0].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_ListBirthdaysBetween_Wraps(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewContactRepository(mock, time.Second)

	mock.ExpectQuery(`EXTRACT\(DOY FROM birthday\) >= \$2 OR EXTRACT\(DOY FROM birthday\) <= \$3`).
		WithArgs("u1", 362, 4).
		WillReturnRows(mock.NewRows(contactCols))

	contacts, err := repo.ListBirthdaysBetween(context.Background(), "u1", 362, 4)
	require.NoError(t, err)
	assert.Empty(t, contacts)
	assert.NotNil(t, contacts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
