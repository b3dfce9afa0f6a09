package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/device"
	"carevoice-backend/internal/emergency"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/schedule"
	"carevoice-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	resolver  *schedule.Resolver
	devices   *device.Service
	emergency *emergency.Channel
	webpush   *webpush.Options
	clock     orgtime.Clock
	billing   config.BillingConfig
	log       *zap.Logger
}

// Deps groups the collaborators of a Handler.
type Deps struct {
	Store     store.Store
	Resolver  *schedule.Resolver
	Devices   *device.Service
	Emergency *emergency.Channel
	WebPush   *webpush.Options
	Clock     orgtime.Clock
	Billing   config.BillingConfig
	Log       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Clock == nil {
		d.Clock = orgtime.SystemClock{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{
		store:     d.Store,
		resolver:  d.Resolver,
		devices:   d.Devices,
		emergency: d.Emergency,
		webpush:   d.WebPush,
		clock:     d.Clock,
		billing:   d.Billing,
		log:       d.Log,
	}
}
