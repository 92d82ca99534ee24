package controllers

import (
	"context"
	"net/http"

	"github.com/veridia-labs/veridia-backend/api/responses"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

const envHeader = "X-Veridia-Env"

// Pinger is the health-check surface shared by the backing services.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every wired dependency. Nil entries are skipped so the
// check adapts to whichever backends the deployment actually uses.
func HealthReady(env string, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set(envHeader, env)

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]any{"dependency": name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
