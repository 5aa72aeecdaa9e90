package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/toiletmap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	toiletType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Toilet",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"type":           &graphql.Field{Type: graphql.String},
			"horaire":        &graphql.Field{Type: graphql.String},
			"accessible":     &graphql.Field{Type: graphql.Boolean},
			"lat":            &graphql.Field{Type: graphql.Float},
			"lng":            &graphql.Field{Type: graphql.Float},
			"arrondissement": &graphql.Field{Type: graphql.String},
			"directions": &graphql.Field{
				Type:        graphql.String,
				Description: "Walking directions link to the restroom",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if d, ok := p.Source.(domain.ToiletDetail); ok {
						return d.DirectionsURL(), nil
					}
					return nil, nil
				},
			},
		},
	})

	nearbyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyToilet",
		Fields: graphql.Fields{
			"toilet": &graphql.Field{
				Type: toiletType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if n, ok := p.Source.(domain.NearbyToilet); ok {
						return n.ToiletDetail, nil
					}
					return nil, nil
				},
			},
			"distance": &graphql.Field{Type: graphql.Float, Description: "Distance in meters"},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"toilets": &graphql.Field{
				Type:        graphql.NewList(toiletType),
				Description: "Public restrooms inside a bounding box",
				Args: graphql.FieldConfigArgument{
					"west":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"south": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"east":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"north": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					region := domain.GeoRegion{
						West:  p.Args["west"].(float64),
						South: p.Args["south"].(float64),
						East:  p.Args["east"].(float64),
						North: p.Args["north"].(float64),
					}
					limit := p.Args["limit"].(int)
					return deps.Toilets.InRegion(p.Context, region, limit)
				},
			},
			"toiletsNearby": &graphql.Field{
				Type:        graphql.NewList(nearbyType),
				Description: "Public restrooms closest to a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Toilets.Nearby(p.Context, center, radius, limit)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
