package main

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileStore interface {
	FindProfile(id string) (Profile, error)
}

type daoProfileStore struct {
	app core.App
}

func newDaoProfileStore(app core.App) *daoProfileStore {
	return &daoProfileStore{app: app}
}

func (s *daoProfileStore) FindProfile(id string) (Profile, error) {
	record, err := s.app.Dao().FindFirstRecordByFilter(
		"users",
		"id = {:id} && is_deleted = false",
		dbx.Params{"id": id},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}

	return Profile{
		ID:          record.Id,
		DisplayName: record.GetString("display_name"),
		Role:        record.GetString("role"),
		Bio:         record.GetString("bio"),
		AvatarURL:   record.GetString("avatar_url"),
	}, nil
}

func profileHandler(profiles ProfileStore) func(c echo.Context) error {
	return func(c echo.Context) error {
		id := c.PathParam("id")
		if id == "" {
			return apis.NewBadRequestError("id is required", nil)
		}

		profile, err := profiles.FindProfile(id)
		if err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return apis.NewNotFoundError("profile not found", nil)
			}
			return apis.NewApiError(http.StatusInternalServerError, "failed to load profile", err)
		}

		return c.JSON(http.StatusOK, profile)
	}
}
