package trading

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
)

// mockedService builds a Service over a sqlmock database. The executor
// only contributes the lock registry here; no orders run through it.
func mockedService(db *sql.DB) *Service {
	log := testLogger()
	portfolios := portfolio.NewPortfolioRepository(db, log)
	cashFlows := portfolio.NewCashFlowRepository(db, log)
	manager := events.NewManager(events.NewBus(log), log)
	executor := NewExecutor(db, portfolios, nil, nil, nil, nil, nil, manager, log)
	return NewService(db, executor, portfolios, cashFlows, nil, manager, log)
}

// A write failure mid-transaction must roll back the whole cash
// movement and surface as a PersistenceError.
func TestService_DepositRollsBackOnWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := mockedService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, base_currency, cash, created_at").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "base_currency", "cash", "created_at"}).
			AddRow("p1", "Main", "USD", "1000", time.Now().Unix()))
	mock.ExpectExec("INSERT INTO cash_flows").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = svc.Deposit("p1", d("500"), "")
	require.Error(t, err)

	var persistence *domain.PersistenceError
	require.True(t, errors.As(err, &persistence))
	assert.Equal(t, "record cash flow", persistence.Op)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_WithdrawRollsBackOnCashUpdateFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := mockedService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, base_currency, cash, created_at").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "base_currency", "cash", "created_at"}).
			AddRow("p1", "Main", "USD", "1000", time.Now().Unix()))
	mock.ExpectExec("INSERT INTO cash_flows").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE portfolios SET cash").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err = svc.Withdraw("p1", d("100"), "")
	require.Error(t, err)

	var persistence *domain.PersistenceError
	require.True(t, errors.As(err, &persistence))

	require.NoError(t, mock.ExpectationsWereMet())
}
