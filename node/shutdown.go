package node

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// StopFunc releases a component. It should return once the component is
// fully stopped or ctx is done.
type StopFunc func(context.Context) error

type ShutdownHandler struct {
	Component string
	StopFunc  StopFunc
}

const shutdownTimeout = 30 * time.Second

// MonitorShutdown runs the handlers in order when a SIGINT or SIGTERM arrives
// or triggerCh is closed. The returned channel is closed after the last
// handler has returned.
func MonitorShutdown(triggerCh <-chan struct{}, handlers ...ShutdownHandler) <-chan struct{} {
	sigCh := make(chan os.Signal, 2)
	out := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-triggerCh:
			log.Warn("received shutdown")
		}
		signal.Stop(sigCh)

		log.Warn("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, h := range handlers {
			if err := h.StopFunc(ctx); err != nil {
				log.Errorf("shutting down %s failed: %s", h.Component, err)
				continue
			}
			log.Infof("%s shut down successfully ", h.Component)
		}

		log.Warn("graceful shutdown successful")
		close(out)
	}()

	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	return out
}
