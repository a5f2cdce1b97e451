// Package schema is the read-only GraphQL view of the shop directory.
package schema

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/app/services"
	gql "github.com/campusbite/canteen/pkg/graphql"
)

var shopType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Shop",
	Fields: graphql.Fields{
		"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: shopField(func(s models.Shop) interface{} { return s.ID })},
		"name":          &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: shopField(func(s models.Shop) interface{} { return s.Name })},
		"category":      &graphql.Field{Type: graphql.String, Resolve: shopField(func(s models.Shop) interface{} { return s.Category })},
		"closed":        &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Resolve: shopField(func(s models.Shop) interface{} { return s.Closed })},
		"estimatedWait": &graphql.Field{Type: graphql.Int, Resolve: shopField(func(s models.Shop) interface{} { return s.EstimatedWait })},
		"imageUrl":      &graphql.Field{Type: graphql.String, Resolve: shopField(func(s models.Shop) interface{} { return s.ImageURL })},
		"activeTokens":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: shopField(func(s models.Shop) interface{} { return s.ActiveTokens })},
		"currentOrders": &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: shopField(func(s models.Shop) interface{} { return s.CurrentOrders })},
	},
})

func shopField(get func(models.Shop) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		shop, ok := p.Source.(models.Shop)
		if !ok {
			return nil, errors.New("schema: source is not a shop")
		}
		return get(shop), nil
	}
}

// Shops builds the schema:
//
//	shops(open: Boolean, category: String): [Shop!]!
//	shop(id: ID!): Shop
func Shops(shops *services.ShopService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"shops": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(shopType))),
				Args: graphql.FieldConfigArgument{
					"open":     &graphql.ArgumentConfig{Type: graphql.Boolean},
					"category": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					list, err := shops.List(p.Context)
					if err != nil {
						return nil, err
					}
					open, byOpen := p.Args["open"].(bool)
					category, byCategory := p.Args["category"].(string)
					out := make([]models.Shop, 0, len(list))
					for _, s := range list {
						if byOpen && s.Closed == open {
							continue
						}
						if byCategory && s.Category != category {
							continue
						}
						out = append(out, s)
					}
					return out, nil
				},
			},
			"shop": &graphql.Field{
				Type: shopType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					shop, err := shops.Get(p.Context, id)
					if errors.Is(err, services.ErrShopNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return shop, nil
				},
			},
		},
	})
	return gql.NewSchema(query)
}
