package cli

import (
	"fmt"
	"net"

	"github.com/tutu-network/tutu-gym/internal/api"
	"github.com/tutu-network/tutu-gym/internal/daemon"
)

// newClient returns a client for --addr, or the configured API address.
func newClient() (*api.Client, error) {
	addr := daemonAddr
	if addr == "" {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return nil, err
		}
		addr = net.JoinHostPort(cfg.API.Host, fmt.Sprint(cfg.API.Port))
	}
	return api.NewClient("http://" + addr), nil
}
