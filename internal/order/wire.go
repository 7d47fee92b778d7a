package order

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ordertrack/internal/config"
	"ordertrack/internal/infrastructure/metrics"
	"ordertrack/internal/order/controller"
	"ordertrack/internal/order/lifecycle"
	"ordertrack/internal/order/registry"
	"ordertrack/internal/order/usecase"
)

type Module struct {
	Controller *controller.OrderController
	Registry   *registry.Registry
	Driver     *lifecycle.Driver
}

// NewModule wires the order registry, the lifecycle driver and the HTTP
// controller. Committed status changes fan out to publishers.
func NewModule(cfg *config.Config, publishers []registry.Publisher, reg prometheus.Registerer, logger *zap.Logger) *Module {
	orders := registry.New(logger, publishers)

	driver := lifecycle.New(orders, lifecycle.Config{
		StepInterval: cfg.Lifecycle.StepInterval,
		ScanInterval: cfg.Lifecycle.ScanInterval,
	}, logger, metrics.NewLifecycleMetrics(reg))

	uc := usecase.NewOrderUseCase(orders, driver, logger)

	return &Module{
		Controller: controller.NewOrderController(uc, logger),
		Registry:   orders,
		Driver:     driver,
	}
}
