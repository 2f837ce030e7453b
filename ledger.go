package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"boostify-backend/payments"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/daos"
	"github.com/pocketbase/pocketbase/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCurrencyMismatch = errors.New("deposit currency does not match balance currency")
)

type LedgerStore interface {
	// CreditDeposit adds the deposit to the user's balance once per payment
	// intent and reports whether this call did the crediting.
	CreditDeposit(deposit payments.Deposit) (bool, error)
	// PinCurrency sets the balance currency on first use and rejects any other
	// currency afterwards.
	PinCurrency(userID string, currency string) error
	Balance(userID string) (Balance, error)
}

type daoLedgerStore struct {
	app core.App
}

func newDaoLedgerStore(app core.App) *daoLedgerStore {
	return &daoLedgerStore{app: app}
}

func (s *daoLedgerStore) CreditDeposit(deposit payments.Deposit) (bool, error) {
	credited := false

	err := s.app.Dao().RunInTransaction(func(txDao *daos.Dao) error {
		_, err := txDao.FindFirstRecordByData("balance_deposits", "payment_intent_id", deposit.PaymentIntentID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		user, err := txDao.FindRecordById("users", deposit.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		currency := user.GetString("currency")
		if currency != "" && currency != deposit.Currency {
			return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, deposit.Currency, currency)
		}

		collection, err := txDao.FindCollectionByNameOrId("balance_deposits")
		if err != nil {
			return err
		}

		record := models.NewRecord(collection)
		record.Set("user_id", deposit.UserID)
		record.Set("payment_intent_id", deposit.PaymentIntentID)
		record.Set("amount", deposit.Amount)
		record.Set("currency", deposit.Currency)
		if err := txDao.SaveRecord(record); err != nil {
			return err
		}

		user.Set("balance", int64(user.GetFloat("balance"))+deposit.Amount)
		user.Set("currency", deposit.Currency)
		if err := txDao.SaveRecord(user); err != nil {
			return err
		}

		credited = true
		return nil
	})

	return credited, err
}

func (s *daoLedgerStore) PinCurrency(userID string, currency string) error {
	return s.app.Dao().RunInTransaction(func(txDao *daos.Dao) error {
		user, err := txDao.FindRecordById("users", userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		switch user.GetString("currency") {
		case currency:
			return nil
		case "":
			user.Set("currency", currency)
			return txDao.SaveRecord(user)
		default:
			return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, currency, user.GetString("currency"))
		}
	})
}

func (s *daoLedgerStore) Balance(userID string) (Balance, error) {
	user, err := s.app.Dao().FindRecordById("users", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrUserNotFound
		}
		return Balance{}, err
	}

	return Balance{
		Amount:   int64(user.GetFloat("balance")),
		Currency: user.GetString("currency"),
	}, nil
}

func balanceHandler(ledger LedgerStore) func(c echo.Context) error {
	return func(c echo.Context) error {
		record, ok := c.Get(apis.ContextAuthRecordKey).(*models.Record)
		if !ok || record == nil {
			return apis.NewUnauthorizedError("unauthorized", nil)
		}

		balance, err := ledger.Balance(record.Id)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return apis.NewNotFoundError("user not found", nil)
			}
			return apis.NewApiError(http.StatusInternalServerError, "failed to load balance", err)
		}

		return c.JSON(http.StatusOK, balance)
	}
}
