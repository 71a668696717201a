package inspectapp

import (
	"fmt"
	"log/slog"
	"os"
)

// Start launches the inspector goroutine. It requires Init to have completed with the
// inspector enabled.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.srv == nil {
		return nil, fmt.Errorf("inspector is disabled")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop waits for either an OS signal or a server error.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}

	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}
	if stop == nil {
		return "server_error", serverFailure(<-serverErrors)
	}
	if serverErrors == nil {
		sig := <-stop
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		return "signal", nil
	}

	select {
	case err := <-serverErrors:
		return "server_error", serverFailure(err)
	case sig := <-stop:
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		return "signal", nil
	}
}

func serverFailure(err error) error {
	if err == nil {
		return fmt.Errorf("server stopped unexpectedly")
	}
	return fmt.Errorf("server failed: %w", err)
}
