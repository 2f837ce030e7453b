package main

import (
	"context"
	"net/http"
	"time"

	stream "github.com/GetStream/stream-chat-go/v5"
	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/models"
)

type ChatService interface {
	CreateToken(userID string) (string, error)
	// OpenOrderChannel creates the messaging channel shared by the order's
	// client and booster and returns its id.
	OpenOrderChannel(ctx context.Context, order Order) (string, error)
}

type streamChat struct {
	client *stream.Client
}

func newStreamChat(cfg streamConfig) (*streamChat, error) {
	client, err := stream.NewClient(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, err
	}

	return &streamChat{client: client}, nil
}

func (s *streamChat) CreateToken(userID string) (string, error) {
	return s.client.CreateToken(userID, time.Time{})
}

func (s *streamChat) OpenOrderChannel(ctx context.Context, order Order) (string, error) {
	channelID := orderChannelID(order.ID)

	_, err := s.client.UpsertUsers(ctx,
		&stream.User{ID: order.ClientID},
		&stream.User{ID: order.BoosterID},
	)
	if err != nil {
		return "", err
	}

	_, err = s.client.CreateChannelWithMembers(ctx, "messaging", channelID, order.ClientID, order.BoosterID)
	if err != nil {
		return "", err
	}

	return channelID, nil
}

func orderChannelID(orderID string) string {
	return "order_" + orderID
}

func chatTokenHandler(chat ChatService) func(c echo.Context) error {
	return func(c echo.Context) error {
		record, ok := c.Get(apis.ContextAuthRecordKey).(*models.Record)
		if !ok || record == nil {
			return apis.NewUnauthorizedError("unauthorized", nil)
		}

		token, err := chat.CreateToken(record.Id)
		if err != nil {
			return apis.NewApiError(http.StatusInternalServerError, "failed to generate token", err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"user_id": record.Id,
			"token":   token,
		})
	}
}
