package server

import (
	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/handler"
	"github.com/qorlgns1/binbang-sub001/internal/settings"
	"github.com/qorlgns1/binbang-sub001/internal/store"
)

// Deps holds server dependencies.
type Deps struct {
	Admin     *handler.AdminHandler
	Heartbeat *handler.HeartbeatHandler
}

// NewDeps creates handler dependencies.
func NewDeps(rules *extract.Provider, resolver *settings.Resolver, st *store.Postgres, workerID string, log *zap.Logger) *Deps {
	return &Deps{
		Admin: &handler.AdminHandler{
			Rules:    rules,
			Settings: resolver,
			Log:      log,
		},
		Heartbeat: &handler.HeartbeatHandler{
			Store:    st,
			Settings: resolver,
			WorkerID: workerID,
		},
	}
}
