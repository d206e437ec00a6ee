// Package httpapi exposes the dashboard data over a JSON HTTP API.
package httpapi

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jmtatsch/virus-radar/internal/location"
	"github.com/jmtatsch/virus-radar/internal/surveillance"
	"github.com/jmtatsch/virus-radar/internal/timeseries"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *surveillance.Service, locator *location.Resolver) {
	v1 := app.Group("/api/v1")

	v1.Get("/regions", func(c *fiber.Ctx) error {
		regions, err := service.Regions()
		if err != nil {
			return datasetError(err)
		}
		return c.JSON(fiber.Map{"regions": regions})
	})

	v1.Get("/incidence", func(c *fiber.Ctx) error {
		var req regionQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		view, err := service.RegionView(c.Context(), req.Region)
		if err != nil {
			return datasetError(err)
		}
		return c.JSON(viewPayload(view))
	})

	v1.Get("/incidence/age-groups", func(c *fiber.Ctx) error {
		var req ageGroupQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		view, err := service.AgeGroupView(c.Context(), req.Disease, req.Groups)
		if err != nil {
			return datasetError(err)
		}
		return c.JSON(viewPayload(view))
	})

	v1.Get("/wastewater/sites", func(c *fiber.Ctx) error {
		bundesland := c.Query("bundesland")
		if bundesland != "" {
			sites, err := service.SitesIn(bundesland)
			if err != nil {
				return datasetError(err)
			}
			return c.JSON(fiber.Map{"bundesland": bundesland, "sites": sites})
		}

		laender, err := service.Bundeslaender()
		if err != nil {
			return datasetError(err)
		}
		return c.JSON(fiber.Map{"bundeslaender": laender})
	})

	v1.Get("/wastewater", func(c *fiber.Ctx) error {
		site := c.Query("site")
		if site == "" {
			return fiber.NewError(fiber.StatusBadRequest, "site query parameter is required")
		}

		view, err := service.WastewaterView(site)
		if err != nil {
			return datasetError(err)
		}
		return c.JSON(viewPayload(view))
	})

	v1.Get("/location", func(c *fiber.Ctx) error {
		user, err := resolveUser(c, locator)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sel, selErr := service.SiteSelection(user.Coordinate(), user.Located)
		resp := fiber.Map{"location": user}
		if selErr == nil {
			resp["siteSelection"] = sel
		}
		return c.JSON(resp)
	})
}

// resolveUser prefers explicit browser coordinates over the request IP.
func resolveUser(c *fiber.Ctx, locator *location.Resolver) (location.UserLocation, error) {
	latStr := c.Query("lat")
	lngStr := c.Query("lng")

	if latStr != "" || lngStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return location.UserLocation{}, errors.New("invalid lat query parameter")
		}
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			return location.UserLocation{}, errors.New("invalid lng query parameter")
		}
		return locator.FromCoordinate(lat, lng), nil
	}

	return locator.FromRequestIP(c.Context(), c.Get("X-Forwarded-For")), nil
}

type regionQuery struct {
	Region string `validate:"required"`
}

func (r *regionQuery) bind(c *fiber.Ctx) error {
	r.Region = c.Query("region")
	return validate.Struct(r)
}

type ageGroupQuery struct {
	Disease string `validate:"required,oneof=ARE ILI"`
	Groups  []string
}

func (a *ageGroupQuery) bind(c *fiber.Ctx) error {
	a.Disease = c.Query("disease")
	if groups := c.Query("groups"); groups != "" {
		a.Groups = strings.Split(groups, ",")
	}
	return validate.Struct(a)
}

// datasetError maps dataset availability failures onto 503 so clients can
// distinguish a cold or broken backend from a bad request.
func datasetError(err error) error {
	if errors.Is(err, surveillance.ErrDatasetUnavailable) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// viewPayload renders a view for JSON transport. NaN gap values cannot be
// marshalled and are omitted per row.
func viewPayload(v *surveillance.View) fiber.Map {
	rows := make([]fiber.Map, 0, len(v.Rows))
	for _, r := range v.Rows {
		rows = append(rows, rowPayload(r))
	}

	payload := fiber.Map{
		"groupKey":    v.GroupKey,
		"valueColumn": v.ValueColumn,
		"rows":        rows,
		"updatedAt":   v.UpdatedAt,
	}
	if v.RunID != "" {
		payload["runId"] = v.RunID
	}
	if v.ForecastColumn != "" {
		payload["forecastColumn"] = v.ForecastColumn
	}
	if len(v.Skipped) > 0 {
		payload["skipped"] = v.Skipped
	}
	return payload
}

func rowPayload(r timeseries.Row) fiber.Map {
	values := make(map[string]float64, len(r.Values))
	for col, val := range r.Values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			continue
		}
		values[col] = val
	}
	return fiber.Map{
		"time":   r.Time,
		"group":  r.Group,
		"values": values,
	}
}
