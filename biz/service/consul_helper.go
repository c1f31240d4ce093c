package service

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// ConsulHelper wraps consul registration and locking. Requires a running
// consul agent.
type ConsulHelper struct {
	client *api.Client
}

// NewConsulHelper creates a consul client for one address.
func NewConsulHelper(addr string) (*ConsulHelper, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr
	cli, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ConsulHelper{client: cli}, nil
}

// NewConsulHelperWithAddrs tries several consul addresses for availability.
func NewConsulHelperWithAddrs(addrs []string) (*ConsulHelper, error) {
	var lastErr error
	for _, addr := range addrs {
		cfg := api.DefaultConfig()
		cfg.Address = addr
		cli, err := api.NewClient(cfg)
		if err == nil {
			_, errPing := cli.Agent().Self()
			if errPing == nil {
				return &ConsulHelper{client: cli}, nil
			}
			lastErr = errPing
		} else {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("all consul addresses failed: %v", lastErr)
}

// RegisterLedger registers this ledger node, tagged with the currencies it
// serves, with a TCP health check on the service port.
func (c *ConsulHelper) RegisterLedger(nodeID string, currencies []string, port int) error {
	reg := &api.AgentServiceRegistration{
		ID:   nodeID,
		Name: "cex_ledger",
		Port: port,
		Tags: currencies,
		Check: &api.AgentServiceCheck{
			TCP:      fmt.Sprintf("127.0.0.1:%d", port),
			Interval: "10s",
			Timeout:  "2s",
		},
	}
	return c.client.Agent().ServiceRegister(reg)
}

// Client returns the underlying consul client.
func (c *ConsulHelper) Client() *api.Client {
	return c.client
}
