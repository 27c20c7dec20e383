// Package openvpn talks to the management interface of running OpenVPN
// server processes to list connected clients and to disconnect them.
package openvpn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClientConnection is one connected client as reported by an OpenVPN
// server process.
type ClientConnection struct {
	CommonName string `json:"common_name"`
	VirtualIP4 string `json:"virtual_address_4"`
	VirtualIP6 string `json:"virtual_address_6"`
}

// ServerManager queries and controls the OpenVPN server processes backing
// the configured profiles.
type ServerManager interface {
	// Connections returns the currently connected clients per profile ID.
	// Every configured profile appears in the result, with an empty list
	// when nothing is connected or the node is unreachable.
	Connections(ctx context.Context) (map[string][]ClientConnection, error)

	// Kill disconnects the client with the given common name on every
	// server process and returns the number of processes that had it.
	Kill(ctx context.Context, commonName string) (int, error)
}

// Manager implements ServerManager over the OpenVPN management socket
// protocol.
type Manager struct {
	// profile ID -> management interface addresses (host:port)
	profiles map[string][]string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewManager creates a Manager for the given profile management addresses.
func NewManager(profiles map[string][]string, logger *zap.Logger) *Manager {
	return &Manager{
		profiles: profiles,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Connections implements ServerManager. An unreachable server process is
// logged and treated as having no connections, the portal must keep
// working while a node is down.
func (m *Manager) Connections(ctx context.Context) (map[string][]ClientConnection, error) {
	connections := make(map[string][]ClientConnection, len(m.profiles))

	profileIDs := make([]string, 0, len(m.profiles))
	for profileID := range m.profiles {
		profileIDs = append(profileIDs, profileID)
	}
	sort.Strings(profileIDs)

	for _, profileID := range profileIDs {
		profileConnections := []ClientConnection{}
		for _, address := range m.profiles[profileID] {
			clientList, err := m.statusQuery(ctx, address)
			if err != nil {
				m.logger.Warn("OpenVPN management interface unreachable",
					zap.String("profile_id", profileID),
					zap.String("address", address),
					zap.Error(err))
				continue
			}
			profileConnections = append(profileConnections, clientList...)
		}
		connections[profileID] = profileConnections
	}

	return connections, nil
}

// Kill implements ServerManager.
func (m *Manager) Kill(ctx context.Context, commonName string) (int, error) {
	killCount := 0
	for profileID, addresses := range m.profiles {
		for _, address := range addresses {
			killed, err := m.killQuery(ctx, address, commonName)
			if err != nil {
				m.logger.Warn("OpenVPN management interface unreachable",
					zap.String("profile_id", profileID),
					zap.String("address", address),
					zap.Error(err))
				continue
			}
			if killed {
				killCount++
			}
		}
	}
	return killCount, nil
}

func (m *Manager) statusQuery(ctx context.Context, address string) ([]ClientConnection, error) {
	conn, reader, err := m.dial(ctx, address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "status 2\n"); err != nil {
		return nil, fmt.Errorf("failed to send status command: %w", err)
	}

	var clientList []ClientConnection
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read status response: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "END" {
			break
		}
		// status 2 format:
		// CLIENT_LIST,{CN},{Real Address},{Virtual IPv4},{Virtual IPv6},...
		if !strings.HasPrefix(line, "CLIENT_LIST,") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 5 {
			continue
		}
		clientList = append(clientList, ClientConnection{
			CommonName: fields[1],
			VirtualIP4: fields[3],
			VirtualIP6: fields[4],
		})
	}

	fmt.Fprintf(conn, "quit\n")

	return clientList, nil
}

func (m *Manager) killQuery(ctx context.Context, address, commonName string) (bool, error) {
	conn, reader, err := m.dial(ctx, address)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "kill %s\n", commonName); err != nil {
		return false, fmt.Errorf("failed to send kill command: %w", err)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("failed to read kill response: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "SUCCESS:"):
			fmt.Fprintf(conn, "quit\n")
			return true, nil
		case strings.HasPrefix(line, "ERROR:"):
			fmt.Fprintf(conn, "quit\n")
			return false, nil
		}
	}
}

func (m *Manager) dial(ctx context.Context, address string) (net.Conn, *bufio.Reader, error) {
	dialer := net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	return conn, bufio.NewReader(conn), nil
}
