package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage/models"
)

func newMockStore(t *testing.T) (storage.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStoreWithConn(db, zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func TestSaveExecution(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO "execution_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := store.SaveExecution(context.Background(), &models.ExecutionRecord{
		PacketID:        "opp-1",
		Success:         true,
		EstimatedProfit: 50,
		ActualProfit:    48.5,
		TokenIn:         "SOL",
		TokenOut:        "SOL",
		Hops:            3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveExecutionDatabaseError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO "execution_records"`).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	err := store.SaveExecution(context.Background(), &models.ExecutionRecord{PacketID: "opp-1"})
	assert.Error(t, err)
}

func TestGetExecution(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "packet_id", "success", "actual_profit", "token_in"}).
		AddRow(1, "opp-1", true, 48.5, "SOL")
	mock.ExpectQuery(`SELECT (.+) FROM "execution_records"`).
		WillReturnRows(rows)

	rec, err := store.GetExecution(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, "opp-1", rec.PacketID)
	assert.True(t, rec.Success)
	assert.Equal(t, 48.5, rec.ActualProfit)
}

func TestGetExecutionNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "execution_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListExecutions(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "packet_id"}).
		AddRow(2, "opp-2").
		AddRow(1, "opp-1")
	mock.ExpectQuery(`SELECT (.+) FROM "execution_records"`).
		WillReturnRows(rows)

	recs, err := store.ListExecutions(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "opp-2", recs[0].PacketID)
}

func TestSaveDiscrepancy(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO "discrepancy_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := store.SaveDiscrepancy(context.Background(), &models.DiscrepancyRecord{
		PacketID:         "opp-1",
		ProductionProfit: 50,
		ShadowProfit:     30,
		Discrepancy:      20,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentDiscrepancies(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "packet_id", "discrepancy"}).
		AddRow(1, "opp-1", 20.0)
	mock.ExpectQuery(`SELECT (.+) FROM "discrepancy_records"`).
		WillReturnRows(rows)

	recs, err := store.RecentDiscrepancies(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 20.0, recs[0].Discrepancy)
}
