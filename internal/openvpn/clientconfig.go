package openvpn

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
)

// BuildClientConfig renders an OpenVPN client configuration for a profile.
// The certificate and private key are not included, the client obtains a
// keypair separately and merges it in. With shuffleHosts the remote entries
// are shuffled to spread clients over the listening ports.
func BuildClientConfig(profile *config.ProfileConfig, caPEM, tlsCryptKey string, shuffleHosts bool) (string, error) {
	if len(profile.VPNProtoPorts) == 0 {
		return "", fmt.Errorf("profile has no vpn_proto_ports")
	}

	remoteLines := make([]string, 0, len(profile.VPNProtoPorts))
	for _, protoPort := range profile.VPNProtoPorts {
		proto, port, err := splitProtoPort(protoPort)
		if err != nil {
			return "", err
		}
		remoteLines = append(remoteLines, fmt.Sprintf("remote %s %s %s", profile.Hostname, port, proto))
	}
	if shuffleHosts {
		rand.Shuffle(len(remoteLines), func(i, j int) {
			remoteLines[i], remoteLines[j] = remoteLines[j], remoteLines[i]
		})
	}

	clientConfig := []string{
		"# OpenVPN Client Configuration",
		"dev tun",
		"client",
		"nobind",
		"",
		"# the server can also push these if needed",
		"persist-key",
		"persist-tun",
		"",
		"# wait this long before trying the next server in the list",
		"server-poll-timeout 10",
		"",
		"# only allow a server certificate signed for server use",
		"remote-cert-tls server",
		"",
		"verb 3",
		"",
		"# crypto (control channel)",
		"tls-version-min 1.2",
		"",
		"# crypto (data channel)",
		"auth SHA256",
		"cipher AES-256-GCM",
		"",
		"reneg-sec 0",
		"",
		strings.Join(remoteLines, "\n"),
		"",
		"<ca>",
		strings.TrimSpace(caPEM),
		"</ca>",
		"",
		"<tls-crypt>",
		strings.TrimSpace(tlsCryptKey),
		"</tls-crypt>",
	}

	return strings.Join(clientConfig, "\n") + "\n", nil
}

func splitProtoPort(protoPort string) (string, string, error) {
	parts := strings.Split(protoPort, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid proto/port %q", protoPort)
	}
	switch parts[0] {
	case "udp":
		return "udp", parts[1], nil
	case "tcp":
		// tcp-client makes OpenVPN retry instead of bailing out
		return "tcp-client", parts[1], nil
	default:
		return "", "", fmt.Errorf("invalid protocol %q", parts[0])
	}
}
