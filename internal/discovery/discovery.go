// Package discovery advertises the HTTP API on the local network over
// mDNS/DNS-SD so companion apps can find it without configuration.
package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/ayusman/bhangra/internal/logger"
)

const (
	// ServiceType is the DNS-SD service type.
	ServiceType = "_bhangra._tcp"
	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."
)

// ErrNoAddress is returned when no non-loopback IPv4 address is available.
var ErrNoAddress = errors.New("no non-loopback IPv4 address")

// registerFunc matches zeroconf.Register.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// Service registers and withdraws the mDNS advertisement.
type Service struct {
	mu       sync.Mutex
	instance string
	port     int
	version  string
	server   *zeroconf.Server
	running  bool
	register registerFunc
}

// New creates a Service for the API listening on port. An empty instance
// name defaults to "<hostname>-bhangra".
func New(instance string, port int, version string) *Service {
	if instance == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "localhost"
		}
		instance = host + "-bhangra"
	}
	return &Service{
		instance: instance,
		port:     port,
		version:  version,
		register: zeroconf.Register,
	}
}

// TXT returns the TXT records published with the service.
func (s *Service) TXT() []string {
	return []string{
		"version=" + s.version,
		"path=/api",
		"ws=/api/ws",
	}
}

// Start publishes the advertisement. Starting twice is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.port <= 0 {
		return fmt.Errorf("invalid port %d", s.port)
	}

	server, err := s.register(s.instance, ServiceType, ServiceDomain, s.port, s.TXT(), nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}

	s.server = server
	s.running = true
	if ip, err := LocalIPv4(); err == nil {
		logger.Infof("advertising %s.%s%s at %s:%d", s.instance, ServiceType, ServiceDomain, ip, s.port)
	} else {
		logger.Infof("advertising %s.%s%s on port %d", s.instance, ServiceType, ServiceDomain, s.port)
	}
	return nil
}

// Stop withdraws the advertisement.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.running = false
	logger.Info("mdns advertisement stopped")
}

// Running reports whether the advertisement is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Instance returns the advertised instance name.
func (s *Service) Instance() string {
	return s.instance
}

// LocalIPv4 returns the first non-loopback IPv4 address of this host.
func LocalIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", ErrNoAddress
}
