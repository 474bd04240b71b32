package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// Alert is an emitted alert event.
type Alert struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ServerName string    `json:"serverName"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
}

// AlertsRequest filters the alert history.
type AlertsRequest struct {
	Server   string `doc:"Only alerts for this server"                   example:"fraud-db-b" query:"server"`
	Severity string `doc:"Minimum severity" default:"INFO" enum:"INFO,WARNING,CRITICAL"            query:"severity"`
	Limit    int    `doc:"Return at most this many of the newest alerts" minimum:"0"                query:"limit"`
}

// AlertsResponse is the response for GET /alerts
type AlertsResponse struct {
	Body struct {
		Alerts []Alert `doc:"Alerts, oldest first" json:"alerts"`
	}
}

// RegisterAlertRoutes sets up the alert history route.
func RegisterAlertRoutes(routerAPI huma.API, alerts AlertReader, apiPathPrefix string) {
	alertsAPI := huma.NewGroup(routerAPI, apiPathPrefix)

	huma.Register(
		alertsAPI,
		huma.Operation{
			OperationID: "listAlerts",
			Method:      http.MethodGet,
			Summary:     "List recently emitted alerts",
			Tags:        []string{"Alerts"},
		},
		func(ctx context.Context, input *AlertsRequest) (*AlertsResponse, error) {
			return handleAlerts(alerts, input)
		},
	)
}

func handleAlerts(alerts AlertReader, input *AlertsRequest) (*AlertsResponse, error) {
	severity := domain.SeverityInfo
	if input.Severity != "" {
		s, err := domain.ParseSeverity(input.Severity)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		severity = s
	}

	events := alerts.Filter(input.Server, severity)
	if input.Limit > 0 && len(events) > input.Limit {
		events = events[len(events)-input.Limit:]
	}

	out := make([]Alert, 0, len(events))
	for _, e := range events {
		out = append(out, Alert{
			ID:         e.ID,
			Timestamp:  e.Timestamp,
			ServerName: e.ServerName,
			Severity:   string(e.Severity),
			Message:    e.Message,
		})
	}

	resp := &AlertsResponse{}
	resp.Body.Alerts = out
	return resp, nil
}
