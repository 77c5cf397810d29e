package observability

import (
	"log/slog"

	"github.com/aretw0/flowtalk/pkg/domain"
)

type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging every notification at Info.
func NewLogObserver(logger *slog.Logger) domain.Observer {
	return &logObserver{logger: logger}
}

func (o *logObserver) Notify(action string, step *domain.Step) {
	if step == nil {
		o.logger.Info("conversation event", "action", action)
		return
	}
	o.logger.Info("conversation event", "action", action, "step", step.ID, "kind", step.Vertex.Kind)
}
