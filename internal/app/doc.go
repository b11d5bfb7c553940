// Package app wires the results API together and manages its lifecycle.
//
// New opens the configured result store, initialises OpenTelemetry and
// builds the chi router. Run then serves until the context is cancelled:
//
//	application, err := app.New(ctx, cfg, logger, app.Options{})
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Shutdown drains in-flight requests within server.shutdown_timeout,
// flushes telemetry and closes the store. The package never calls
// os.Exit; errors go back to the caller.
package app
