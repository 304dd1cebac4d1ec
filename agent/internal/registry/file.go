package registry

import (
	"context"
	"sync/atomic"

	"github.com/linkwatch/linkwatch/agent/internal/config"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// File serves a static service list. Replace swaps it atomically, so a
// config reload takes effect on the prober's next refresh.
type File struct {
	services atomic.Pointer[[]types.ServiceConfig]
}

// NewFile returns a File registry holding svcs.
func NewFile(svcs []types.ServiceConfig) *File {
	f := &File{}
	f.Replace(svcs)
	return f
}

// Replace swaps in a new service list.
func (f *File) Replace(svcs []types.ServiceConfig) {
	cp := make([]types.ServiceConfig, len(svcs))
	copy(cp, svcs)
	f.services.Store(&cp)
}

// OnConfig is a config.Watch callback that replaces the list with the
// reloaded agent.services.
func (f *File) OnConfig(cfg *config.Config) {
	f.Replace(cfg.Agent.Services)
}

func (f *File) Services(context.Context) ([]types.ServiceConfig, error) {
	cur := *f.services.Load()
	out := make([]types.ServiceConfig, len(cur))
	copy(out, cur)
	return out, nil
}
