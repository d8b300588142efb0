package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StockMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warehouse",
		Name:      "stock_movements_total",
		Help:      "Stock movements applied, by type.",
	}, []string{"type"})

	StockUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warehouse",
		Name:      "stock_units_total",
		Help:      "Units moved, by movement type.",
	}, []string{"type"})

	InsufficientStock = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warehouse",
		Name:      "insufficient_stock_total",
		Help:      "Rejected stock requests, by reason.",
	}, []string{"reason"})

	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warehouse",
		Name:      "login_attempts_total",
		Help:      "Login attempts, by method and result.",
	}, []string{"method", "result"})
)

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
