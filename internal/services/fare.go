package services

import "math"

const earthRadiusKm = 6371.0

// HaversineKm - расстояние по прямой между двумя точками в километрах
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// roundMoney округляет до копеек (сентаво)
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// quoteFare: base + per_km * distance
func quoteFare(base, perKm, distanceKm float64) float64 {
	return roundMoney(base + perKm*distanceKm)
}

// driverEarning - доля мотористы после комиссии платформы
func driverEarning(fare, commission float64) float64 {
	return roundMoney(fare * (1 - commission))
}
