package plugin

import (
	"context"
	"sync"

	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/store"
)

// BindingLister returns the enabled bindings for a gesture.
type BindingLister interface {
	ListByGesture(gesture string) ([]*store.Binding, error)
}

// Runner executes the plugin actions bound to each notified gesture.
// Actions run in the background so a slow plugin never stalls the caller.
type Runner struct {
	bindings BindingLister
	plugins  *Manager
	executor *Executor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(bindings BindingLister, plugins *Manager, executor *Executor) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		bindings: bindings,
		plugins:  plugins,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Notify starts every enabled binding for n.Gesture.
func (r *Runner) Notify(n gesture.Notification) {
	bindings, err := r.bindings.ListByGesture(n.Gesture.String())
	if err != nil {
		logger.Errorf("list bindings for %s: %v", n.Gesture, err)
		return
	}

	for _, b := range bindings {
		plug, err := r.plugins.Get(b.PluginName)
		if err != nil {
			logger.Warnf("binding %s: plugin %q: %v", b.ID, b.PluginName, err)
			continue
		}
		if !plug.Manifest.Supports(b.ActionName) {
			logger.Warnf("binding %s: plugin %q has no action %q", b.ID, b.PluginName, b.ActionName)
			continue
		}

		req := &Request{
			Action:    b.ActionName,
			Gesture:   n.Gesture.String(),
			Source:    n.Source.String(),
			Timestamp: n.Timestamp,
			Config:    b.Config,
		}

		r.wg.Add(1)
		go func(bindingID string) {
			defer r.wg.Done()
			r.run(bindingID, plug, req)
		}(b.ID)
	}
}

func (r *Runner) run(bindingID string, plug *Plugin, req *Request) {
	resp, err := r.executor.Execute(r.ctx, plug, req)
	if err != nil {
		logger.Errorf("binding %s: %v", bindingID, err)
		return
	}
	if !resp.Success {
		logger.Warnf("binding %s: plugin %s reported: %s", bindingID, plug.Manifest.Name, resp.Error)
		return
	}
	logger.Debugf("binding %s: %s/%s ran for %s", bindingID, plug.Manifest.Name, req.Action, req.Gesture)
}

// Wait blocks until all started actions have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running actions and waits for them to exit.
func (r *Runner) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
