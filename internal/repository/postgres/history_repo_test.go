package postgres

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepo_Add_CountsOnlyNewIDs(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO download_history \(domain_uuid, fax_id\) VALUES \(\$1, \$2\) ON CONFLICT \(domain_uuid, fax_id\) DO NOTHING`).
		WithArgs(id, "fax-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO download_history \(domain_uuid, fax_id\) VALUES \(\$1, \$2\) ON CONFLICT \(domain_uuid, fax_id\) DO NOTHING`).
		WithArgs(id, "fax-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 0)) // already known
	mock.ExpectQuery(`SELECT count\(\*\) FROM download_history WHERE domain_uuid=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectCommit()

	inserted, total, err := r.Add(context.Background(), id, []string{"fax-1", "fax-2"})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Equal(t, 7, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT fax_id FROM download_history WHERE domain_uuid=\$1 ORDER BY created_at, fax_id OFFSET \$2 LIMIT \$3`).
		WithArgs(id, 0, 2).
		WillReturnRows(pgxmock.NewRows([]string{"fax_id"}).AddRow("a").AddRow("b"))

	ids, err := r.List(context.Background(), id, 0, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)
}

func TestHistoryRepo_Count(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT count\(\*\) FROM download_history WHERE domain_uuid=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	total, err := r.Count(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 42, total)
}
