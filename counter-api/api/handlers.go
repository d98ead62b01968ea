package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const serviceName = "counter-api"

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, counter Counter, logger *log.Logger) {
	e.GET("/counter", counterHandler("/counter", counter.Current, logger))
	e.POST("/counter/increment", counterHandler("/counter/increment", counter.Increment, logger))
	e.GET("/health", health(time.Now))
	e.GET("/healthz", health(time.Now))
}

// counterHandler serves both counter routes; only a counter store failure
// yields an error status.
func counterHandler(route string, op func(context.Context) (int64, error), logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newCounterRequestMetrics(logger, route)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		storeStart := time.Now()
		v, opErr := op(c.Request().Context())
		metrics.ObserveStore(time.Since(storeStart))
		if opErr != nil {
			metrics.SetErrorStage("store")
			c.Logger().Error(opErr)
			err = c.String(http.StatusInternalServerError, "counter unavailable")
			return err
		}
		metrics.SetValue(v)
		err = c.JSON(http.StatusOK, counterResponse{Value: v})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func health(now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{
			Status:    "UP",
			Service:   serviceName,
			Timestamp: strconv.FormatInt(now().UnixMilli(), 10),
		})
	}
}
