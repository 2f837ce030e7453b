package migrations

import (
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/daos"
	"github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/models"
	"github.com/pocketbase/pocketbase/models/schema"
)

const lockedBalanceFields = "@request.data.balance:isset = false && @request.data.currency:isset = false"

func init() {
	migrations.Register(func(db dbx.Builder) error {
		dao := daos.New(db)

		usersCol, err := dao.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		// balance is only written by the Stripe webhook, never by the records API.
		usersCol.Schema.AddField(&schema.SchemaField{
			Name: "balance",
			Type: schema.FieldTypeNumber,
			Options: &schema.NumberOptions{
				Min: &zeroAmount,
			},
		})
		usersCol.Schema.AddField(&schema.SchemaField{
			Name: "currency",
			Type: schema.FieldTypeText,
		})
		usersCol.CreateRule = strPtr(lockedBalanceFields)
		usersCol.UpdateRule = strPtr("@request.auth.id = id && is_deleted = false && " + lockedBalanceFields)

		if err := dao.SaveCollection(usersCol); err != nil {
			return err
		}

		deposits := &models.Collection{
			Name:       "balance_deposits",
			Type:       models.CollectionTypeBase,
			System:     false,
			CreateRule: strPtr("false"),
			ListRule:   strPtr("@request.auth.id != '' && user_id = @request.auth.id"),
			ViewRule:   strPtr("@request.auth.id != '' && user_id = @request.auth.id"),
			UpdateRule: strPtr("false"),
			DeleteRule: strPtr("false"),
			Indexes: []string{
				"CREATE UNIQUE INDEX idx_balance_deposits_intent ON balance_deposits (payment_intent_id)",
			},
			Schema: schema.NewSchema(
				&schema.SchemaField{
					Name:     "user_id",
					Type:     schema.FieldTypeRelation,
					Required: true,
					Options: &schema.RelationOptions{
						CollectionId: usersCol.Id,
						MaxSelect:    &maxSelectOption,
					},
				},
				&schema.SchemaField{
					Name:     "payment_intent_id",
					Type:     schema.FieldTypeText,
					Required: true,
				},
				&schema.SchemaField{
					Name:     "amount",
					Type:     schema.FieldTypeNumber,
					Required: true,
					Options: &schema.NumberOptions{
						Min: &zeroAmount,
					},
				},
				&schema.SchemaField{
					Name:     "currency",
					Type:     schema.FieldTypeText,
					Required: true,
				},
			),
		}

		return dao.SaveCollection(deposits)
	}, func(db dbx.Builder) error {
		dao := daos.New(db)

		deposits, err := dao.FindCollectionByNameOrId("balance_deposits")
		if err != nil {
			return err
		}
		if err := dao.DeleteCollection(deposits); err != nil {
			return err
		}

		usersCol, err := dao.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		removeFields(usersCol, "balance", "currency")
		usersCol.CreateRule = strPtr("")
		usersCol.UpdateRule = strPtr("@request.auth.id = id && is_deleted = false")

		return dao.SaveCollection(usersCol)
	})
}
