package services

import (
	"context"
	"testing"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/testutil"
)

func TestChannelAuthorizer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	auth := NewChannelAuthorizer(e.db)

	client := testutil.CreateUser(t, e.db, models.RoleClient)
	stranger := testutil.CreateUser(t, e.db, models.RoleClient)
	admin := testutil.CreateUser(t, e.db, models.RoleAdmin)
	driver, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 0)
	pending, _ := testutil.CreateDriver(t, e.db, models.ValidationPending, models.DriverOffline, 0)

	trip, _ := e.trips.Request(ctx, client.ID, tripInput())

	check := func(userID uint, role models.Role, channel string, want bool) {
		t.Helper()
		got, err := auth.CanSubscribe(ctx, userID, role, channel)
		if err != nil {
			t.Fatalf("CanSubscribe(%d, %s, %s): %v", userID, role, channel, err)
		}
		if got != want {
			t.Errorf("CanSubscribe(%d, %s, %s) = %v, want %v", userID, role, channel, got, want)
		}
	}

	check(stranger.ID, models.RoleClient, broadcast.ChannelDrivers, true)
	check(stranger.ID, models.RoleClient, "unknown", false)
	check(admin.ID, models.RoleAdmin, "unknown", false)

	check(driver.ID, models.RoleMotorista, broadcast.ChannelAvailableTrips, true)
	check(pending.ID, models.RoleMotorista, broadcast.ChannelAvailableTrips, false)
	check(client.ID, models.RoleClient, broadcast.ChannelAvailableTrips, false)

	check(client.ID, models.RoleClient, broadcast.TripChannel(trip.ID), true)
	check(stranger.ID, models.RoleClient, broadcast.TripChannel(trip.ID), false)
	check(admin.ID, models.RoleAdmin, broadcast.TripChannel(trip.ID), true)
	check(client.ID, models.RoleClient, broadcast.TripChannel(9999), false)

	// до принятия клиент не видит координаты мотористы
	check(client.ID, models.RoleClient, broadcast.DriverChannel(driver.ID), false)
	if _, err := e.trips.Accept(ctx, driver.ID, trip.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	check(client.ID, models.RoleClient, broadcast.DriverChannel(driver.ID), true)
	check(driver.ID, models.RoleMotorista, broadcast.TripChannel(trip.ID), true)
	check(driver.ID, models.RoleMotorista, broadcast.DriverChannel(driver.ID), true)
	check(stranger.ID, models.RoleClient, broadcast.DriverChannel(driver.ID), false)
}
