package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/jrsteele09/go-sso-service/clients"
	"github.com/jrsteele09/go-sso-service/crosstab"
	"github.com/jrsteele09/go-sso-service/handshake"
	"github.com/jrsteele09/go-sso-service/handshake/authrequests"
	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/logout"
	"github.com/jrsteele09/go-sso-service/peers"
	"github.com/jrsteele09/go-sso-service/server"
	"github.com/jrsteele09/go-sso-service/sessions"
	"github.com/jrsteele09/go-sso-service/silentauth"
)

const (
	sweepInterval     = time.Minute
	discoveryAttempts = 10
	discoveryBackoff  = 2 * time.Second
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	displayAppname(c.GetAppName())

	deps, sweep, err := buildDeps(c)
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}

	srv, err := server.New(c, deps)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	stopSweep := make(chan struct{})
	go sweepLoop(sweep, stopSweep)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	close(stopSweep)
	returnError = shutdown(httpServer)
	return returnError
}

// sweeper evicts expired state from one component.
type sweeper func(now time.Time)

// buildDeps wires the role-appropriate collaborators and returns the sweep
// functions that keep the stores bounded.
func buildDeps(c config.Config) (server.Deps, []sweeper, error) {
	store, err := buildStore(c)
	if err != nil {
		return server.Deps{}, nil, err
	}

	descriptors, err := c.GetPeers()
	if err != nil {
		return server.Deps{}, nil, err
	}
	registry := peers.NewRegistry(descriptors)

	deps := server.Deps{
		Store:      store,
		Registry:   registry,
		Dispatcher: logout.NewDispatcher(c.GetServiceID(), registry, c.GetReconcilePolicy()),
		Hub:        crosstab.NewHub(c.GetMarkerTTL()),
	}
	sweeps := []sweeper{func(now time.Time) { store.Sweep(now) }}

	switch c.GetRole() {
	case config.RoleIdP:
		users, err := c.GetUsers()
		if err != nil {
			return server.Deps{}, nil, err
		}
		registered, err := c.GetClients()
		if err != nil {
			return server.Deps{}, nil, err
		}
		codes := handshake.NewCodeIssuer(c.GetAuthCodeTTL())
		deps.Authenticator = identity.NewStaticAuthenticator(users)
		deps.ClientRepo = clients.NewInMemoryRepo(registered)
		deps.Codes = codes
		sweeps = append(sweeps, func(now time.Time) { codes.Sweep(now) })

	case config.RoleRP:
		requests := authrequests.NewInMemoryRepo()
		flow, err := discoverFlow(c, requests)
		if err != nil {
			return server.Deps{}, nil, err
		}
		deps.Flow = flow
		deps.Bridge = silentauth.NewBridge(c.GetIdPIssuerURL(), c.GetReconcilePolicy())
		requestTTL := c.GetAuthRequestTTL()
		sweeps = append(sweeps, func(now time.Time) { requests.DeleteExpired(now.Add(-requestTTL)) })
	}

	return deps, sweeps, nil
}

func buildStore(c config.Config) (sessions.Store, error) {
	if c.GetSessionBackend() == "bolt" {
		if err := os.MkdirAll(filepath.Dir(c.GetSessionDBPath()), 0o700); err != nil {
			return nil, err
		}
		return sessions.NewBoltStore(c.GetSessionDBPath(), c.GetSessionTTL())
	}
	return sessions.NewInMemoryStore(c.GetSessionTTL()), nil
}

// discoverFlow resolves the IdP endpoints, retrying briefly in case the IdP
// node boots after this one.
func discoverFlow(c config.Config, requests *authrequests.InMemoryRepo) (*handshake.Flow, error) {
	var lastErr error
	for attempt := 0; attempt < discoveryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		flow, err := server.NewRPFlow(ctx, c, requests)
		cancel()
		if err == nil {
			return flow, nil
		}
		lastErr = err
		log.Printf("IdP discovery failed (attempt %d/%d): %v\n", attempt+1, discoveryAttempts, err)
		time.Sleep(discoveryBackoff)
	}
	return nil, lastErr
}

func sweepLoop(sweeps []sweeper, stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			for _, sweep := range sweeps {
				sweep(now)
			}
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
