// Package mdns provides mDNS/Zeroconf advertisement so reader apps on
// the local network can discover the server without manual configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

const (
	// ServiceType is the mDNS service type advertised for library servers.
	ServiceType = "_shiori._tcp"

	// APIVersion is the current API version advertised in TXT records.
	APIVersion = "v1"

	// ServerVersion is the current server version advertised in TXT records.
	ServerVersion = "1.0.0"
)

// Service manages mDNS advertisement through the Avahi daemon.
type Service struct {
	server *avahi.Server
	group  *avahi.EntryGroup
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new mDNS service.
func NewService(logger *slog.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Start begins advertising the server via Avahi. It should be called
// after the HTTP server is listening.
//
// Errors are typically non-fatal (no D-Bus system bus, no Avahi daemon,
// multicast not supported in containers) and callers are expected to log
// and continue.
func (s *Service) Start(name string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Restart scenarios tear down the previous registration first.
	s.shutdownLocked()

	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "shiori-server"
		}
		name = host
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}

	server, err := avahi.ServerNew(conn)
	if err != nil {
		return fmt.Errorf("connect avahi daemon: %w", err)
	}

	group, err := server.EntryGroupNew()
	if err != nil {
		server.Close()
		return fmt.Errorf("create avahi entry group: %w", err)
	}

	txt := [][]byte{
		fmt.Appendf(nil, "name=%s", name),
		fmt.Appendf(nil, "version=%s", ServerVersion),
		fmt.Appendf(nil, "api=%s", APIVersion),
	}

	err = group.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		name,
		ServiceType,
		"", // domain (empty = .local)
		"", // host (empty = this machine)
		uint16(port),
		txt,
	)
	if err != nil {
		server.Close()
		return fmt.Errorf("register mDNS service: %w", err)
	}

	if err := group.Commit(); err != nil {
		server.Close()
		return fmt.Errorf("commit mDNS registration: %w", err)
	}

	s.server = server
	s.group = group

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", name,
	)
	return nil
}

// Stop stops mDNS advertising. Safe to call multiple times or if not
// started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		s.shutdownLocked()
		s.logger.Info("mDNS advertisement stopped")
	}
}

func (s *Service) shutdownLocked() {
	if s.server == nil {
		return
	}
	if s.group != nil {
		s.server.EntryGroupFree(s.group)
		s.group = nil
	}
	s.server.Close()
	s.server = nil
}
