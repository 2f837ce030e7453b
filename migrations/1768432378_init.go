package migrations

import (
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/daos"
	"github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/models"
	"github.com/pocketbase/pocketbase/models/schema"
)

var (
	maxSelectOption = 1
	zeroAmount      = 0.0
)

func init() {
	migrations.Register(func(db dbx.Builder) error {
		dao := daos.New(db)

		// -----------------------------
		// USERS (auth)
		// -----------------------------
		usersCol, err := dao.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		usersCol.Schema.AddField(&schema.SchemaField{
			Name:     "role",
			Type:     schema.FieldTypeSelect,
			Required: true,
			Options: &schema.SelectOptions{
				Values:    []string{"client", "booster"},
				MaxSelect: maxSelectOption,
			},
		})
		usersCol.Schema.AddField(&schema.SchemaField{
			Name: "display_name",
			Type: schema.FieldTypeText,
		})
		usersCol.Schema.AddField(&schema.SchemaField{
			Name: "bio",
			Type: schema.FieldTypeText,
		})
		usersCol.Schema.AddField(&schema.SchemaField{
			Name: "avatar_url",
			Type: schema.FieldTypeUrl,
		})
		usersCol.Schema.AddField(&schema.SchemaField{
			Name: "is_deleted",
			Type: schema.FieldTypeBool,
		})

		usersCol.ListRule = strPtr("@request.auth.id = id && is_deleted = false")
		usersCol.ViewRule = strPtr("@request.auth.id = id && is_deleted = false")
		usersCol.UpdateRule = strPtr("@request.auth.id = id && is_deleted = false")

		if err := dao.SaveCollection(usersCol); err != nil {
			return err
		}

		// -----------------------------
		// SERVICES
		// -----------------------------
		services := &models.Collection{
			Name:       "services",
			Type:       models.CollectionTypeBase,
			System:     false,
			CreateRule: strPtr("@request.auth.role = 'booster' && @request.auth.is_deleted = false && @request.data.booster_id = @request.auth.id"),
			ListRule:   strPtr("is_deleted = false"),
			ViewRule:   strPtr("is_deleted = false"),
			UpdateRule: strPtr("is_deleted = false && booster_id = @request.auth.id"),
			DeleteRule: strPtr("false"),
			Schema: schema.NewSchema(
				&schema.SchemaField{
					Name:     "title",
					Type:     schema.FieldTypeText,
					Required: true,
				},
				&schema.SchemaField{
					Name:     "description",
					Type:     schema.FieldTypeText,
					Required: true,
				},
				&schema.SchemaField{
					Name:     "booster_id",
					Type:     schema.FieldTypeRelation,
					Required: true,
					Options: &schema.RelationOptions{
						CollectionId: usersCol.Id,
						MaxSelect:    &maxSelectOption,
					},
				},
				&schema.SchemaField{
					Name:     "price",
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
				&schema.SchemaField{
					Name: "is_deleted",
					Type: schema.FieldTypeBool,
				},
			),
		}

		if err := dao.SaveCollection(services); err != nil {
			return err
		}

		servicesCol, err := dao.FindCollectionByNameOrId("services")
		if err != nil {
			return err
		}

		// -----------------------------
		// ORDERS
		// -----------------------------
		// amount, currency, booster and status are filled server side on create.
		orders := &models.Collection{
			Name:       "orders",
			Type:       models.CollectionTypeBase,
			System:     false,
			CreateRule: strPtr("@request.auth.role = 'client' && @request.auth.is_deleted = false"),
			ListRule:   strPtr("@request.auth.id != '' && (client_id = @request.auth.id || booster_id = @request.auth.id)"),
			ViewRule:   strPtr("@request.auth.id != '' && (client_id = @request.auth.id || booster_id = @request.auth.id)"),
			UpdateRule: strPtr("false"),
			DeleteRule: strPtr("false"),
			Indexes: []string{
				"CREATE INDEX idx_orders_payment_intent ON orders (payment_intent_id)",
			},
			Schema: schema.NewSchema(
				&schema.SchemaField{
					Name:     "service_id",
					Type:     schema.FieldTypeRelation,
					Required: true,
					Options: &schema.RelationOptions{
						CollectionId: servicesCol.Id,
						MaxSelect:    &maxSelectOption,
					},
				},
				&schema.SchemaField{
					Name: "client_id",
					Type: schema.FieldTypeRelation,
					Options: &schema.RelationOptions{
						CollectionId: usersCol.Id,
						MaxSelect:    &maxSelectOption,
					},
				},
				&schema.SchemaField{
					Name: "booster_id",
					Type: schema.FieldTypeRelation,
					Options: &schema.RelationOptions{
						CollectionId: usersCol.Id,
						MaxSelect:    &maxSelectOption,
					},
				},
				&schema.SchemaField{
					Name: "amount",
					Type: schema.FieldTypeNumber,
					Options: &schema.NumberOptions{
						Min: &zeroAmount,
					},
				},
				&schema.SchemaField{
					Name: "currency",
					Type: schema.FieldTypeText,
				},
				&schema.SchemaField{
					Name: "status",
					Type: schema.FieldTypeSelect,
					Options: &schema.SelectOptions{
						Values:    []string{"pending_payment", "paid", "in_progress", "completed", "cancelled"},
						MaxSelect: maxSelectOption,
					},
				},
				&schema.SchemaField{
					Name: "payment_intent_id",
					Type: schema.FieldTypeText,
				},
				&schema.SchemaField{
					Name: "stream_channel_id",
					Type: schema.FieldTypeText,
				},
			),
		}

		return dao.SaveCollection(orders)
	}, func(db dbx.Builder) error {
		dao := daos.New(db)

		for _, name := range []string{"orders", "services"} {
			col, err := dao.FindCollectionByNameOrId(name)
			if err != nil {
				return err
			}

			if err := dao.DeleteCollection(col); err != nil {
				return err
			}
		}

		usersCol, err := dao.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		removeFields(usersCol, "role", "display_name", "bio", "avatar_url", "is_deleted")

		return dao.SaveCollection(usersCol)
	})
}

func strPtr(value string) *string {
	return &value
}

func removeFields(collection *models.Collection, names ...string) {
	for _, name := range names {
		if field := collection.Schema.GetFieldByName(name); field != nil {
			collection.Schema.RemoveField(field.Id)
		}
	}
}
