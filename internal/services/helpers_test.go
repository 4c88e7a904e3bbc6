package services

import (
	"context"
	"testing"
	"time"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/cache"
	"mototaxi-backend/internal/config"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/testutil"
	"mototaxi-backend/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var testFare = config.FareConfig{Base: 3.5, PerKm: 1.2, Commission: 0.2}

type env struct {
	db       *gorm.DB
	redis    *miniredis.Miniredis
	events   flushedRecorder
	jwt      *utils.JWTManager
	users    *UserService
	drivers  *MotoristaService
	trips    *TripService
	packages *PackageService
	admin    *AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	conn := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.Nop()
	rec := &broadcast.Recorder{}
	notifier := broadcast.NewNotifier(rec, log)
	t.Cleanup(notifier.Close)
	jwt := utils.NewJWTManager("test-secret", time.Hour)

	users := NewUserService(conn, jwt, utils.NewTokenRevoker(client), log)
	return &env{
		db:       conn,
		redis:    mr,
		events:   flushedRecorder{Recorder: rec, notifier: notifier},
		jwt:      jwt,
		users:    users,
		drivers:  NewMotoristaService(conn, notifier, log),
		trips:    NewTripService(conn, notifier, testFare, log),
		packages: NewPackageService(conn, cache.New(client, time.Minute), log),
		admin:    NewAdminService(conn, users, notifier, log),
	}
}

// flushedRecorder дожидается очереди Notifier перед чтением событий
type flushedRecorder struct {
	*broadcast.Recorder
	notifier *broadcast.Notifier
}

func (r flushedRecorder) Find(channel, event string) []broadcast.Event {
	_ = r.notifier.Flush(context.Background())
	return r.Recorder.Find(channel, event)
}

func (r flushedRecorder) Events() []broadcast.Event {
	_ = r.notifier.Flush(context.Background())
	return r.Recorder.Events()
}

func f64(v float64) *float64 { return &v }

func tripInput() RequestTripInput {
	return RequestTripInput{
		OriginLat:          f64(4.6097),
		OriginLng:          f64(-74.0817),
		OriginAddress:      "Plaza de Bolívar",
		DestinationLat:     f64(4.6486),
		DestinationLng:     f64(-74.0628),
		DestinationAddress: "Parque 93",
	}
}
