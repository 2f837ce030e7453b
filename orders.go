package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/daos"
	"github.com/pocketbase/pocketbase/models"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotPayable  = errors.New("order is not awaiting payment")
	ErrOrderAlreadyPaid = errors.New("order already paid by another payment intent")
)

type OrderStore interface {
	FindOrder(id string) (Order, error)
	AttachPaymentIntent(orderID string, paymentIntentID string) error
	// MarkPaid reports false when the order was already settled by the same intent.
	MarkPaid(orderID string, paymentIntentID string) (Order, bool, error)
	SetChatChannel(orderID string, channelID string) error
}

type daoOrderStore struct {
	app core.App
}

func newDaoOrderStore(app core.App) *daoOrderStore {
	return &daoOrderStore{app: app}
}

func (s *daoOrderStore) FindOrder(id string) (Order, error) {
	record, err := s.app.Dao().FindRecordById("orders", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}

	return orderFromRecord(record), nil
}

func (s *daoOrderStore) AttachPaymentIntent(orderID string, paymentIntentID string) error {
	record, err := s.app.Dao().FindRecordById("orders", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}

	record.Set("payment_intent_id", paymentIntentID)
	return s.app.Dao().SaveRecord(record)
}

func (s *daoOrderStore) MarkPaid(orderID string, paymentIntentID string) (Order, bool, error) {
	var (
		order   Order
		changed bool
	)

	err := s.app.Dao().RunInTransaction(func(txDao *daos.Dao) error {
		record, err := txDao.FindRecordById("orders", orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return err
		}

		switch record.GetString("status") {
		case orderStatusPendingPayment:
		case orderStatusPaid:
			order = orderFromRecord(record)
			if order.PaymentIntentID == paymentIntentID {
				return nil
			}
			return ErrOrderAlreadyPaid
		default:
			return fmt.Errorf("%w: status %s", ErrOrderNotPayable, record.GetString("status"))
		}

		record.Set("status", orderStatusPaid)
		record.Set("payment_intent_id", paymentIntentID)
		if err := txDao.SaveRecord(record); err != nil {
			return err
		}

		order = orderFromRecord(record)
		changed = true
		return nil
	})

	return order, changed, err
}

func (s *daoOrderStore) SetChatChannel(orderID string, channelID string) error {
	record, err := s.app.Dao().FindRecordById("orders", orderID)
	if err != nil {
		return err
	}

	record.Set("stream_channel_id", channelID)
	return s.app.Dao().SaveRecord(record)
}

func orderFromRecord(record *models.Record) Order {
	return Order{
		ID:              record.Id,
		ServiceID:       record.GetString("service_id"),
		ClientID:        record.GetString("client_id"),
		BoosterID:       record.GetString("booster_id"),
		Amount:          int64(record.GetFloat("amount")),
		Currency:        record.GetString("currency"),
		Status:          record.GetString("status"),
		PaymentIntentID: record.GetString("payment_intent_id"),
		StreamChannelID: record.GetString("stream_channel_id"),
	}
}

func registerOrderHooks(app core.App) {
	app.OnRecordBeforeCreateRequest("orders").Add(func(e *core.RecordCreateEvent) error {
		return priceOrder(app.Dao(), e.HttpContext, e.Record)
	})
}

// priceOrder fills the server-owned fields of an order created through the
// records API, so clients cannot choose their own price or booster.
func priceOrder(dao *daos.Dao, c echo.Context, order *models.Record) error {
	client, ok := c.Get(apis.ContextAuthRecordKey).(*models.Record)
	if !ok || client == nil {
		return apis.NewUnauthorizedError("unauthorized", nil)
	}

	service, err := dao.FindFirstRecordByFilter(
		"services",
		"id = {:id} && is_deleted = false",
		dbx.Params{"id": order.GetString("service_id")},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apis.NewBadRequestError("unknown service", nil)
		}
		return apis.NewApiError(http.StatusInternalServerError, "failed to load service", err)
	}

	boosterID := service.GetString("booster_id")
	if boosterID == client.Id {
		return apis.NewBadRequestError("cannot order your own service", nil)
	}

	order.Set("client_id", client.Id)
	order.Set("booster_id", boosterID)
	order.Set("amount", int64(service.GetFloat("price")))
	order.Set("currency", service.GetString("currency"))
	order.Set("status", orderStatusPendingPayment)
	order.Set("payment_intent_id", "")
	order.Set("stream_channel_id", "")

	return nil
}
