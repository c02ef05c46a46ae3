package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/metrics"
	"github.com/listenupapp/catalog-server/internal/notify"
	"github.com/listenupapp/catalog-server/internal/service"
)

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// BookBusHandle wraps the bookAdded broker with Shutdownable.
type BookBusHandle struct {
	*notify.Broker[*service.BookView]
}

// Shutdown implements do.Shutdownable. Closing the broker ends every open
// subscription.
func (h *BookBusHandle) Shutdown() error {
	return h.Close()
}

// ProvideBookBus provides the in-process bookAdded broker.
func ProvideBookBus(i do.Injector) (*BookBusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	broker := notify.NewBroker[*service.BookView](notify.TopicBookAdded, log.Logger, notify.WithObserver(m))
	return &BookBusHandle{Broker: broker}, nil
}
