// Package portal implements the captive-portal provisioning flow: a DNS
// responder that resolves every name to the device, an HTTP server with the
// credential form, and the scannable join descriptor shown on the display.
package portal

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/config"
)

// Portal bundles the DNS and HTTP sub-services, which always run together.
type Portal struct {
	DNS  *DNSResponder
	HTTP *HTTPServer
}

// Start brings up both sub-services. restart is invoked (after the flush
// grace delay) once credentials have been saved.
func Start(cfg config.PortalConfig, saver CredentialSaver, restart func(), logger *logrus.Logger) (*Portal, error) {
	addr := net.ParseIP(cfg.Address)
	if addr == nil {
		return nil, fmt.Errorf("invalid portal address %q", cfg.Address)
	}

	dns, err := NewDNSResponder(cfg.DNSListen, addr, logger)
	if err != nil {
		return nil, fmt.Errorf("start dns responder: %w", err)
	}

	grace := time.Duration(cfg.RestartDelayMS) * time.Millisecond
	httpSrv, err := NewHTTPServer(cfg.HTTPListen, saver, grace, restart, logger)
	if err != nil {
		dns.Stop()
		return nil, fmt.Errorf("start portal http: %w", err)
	}

	dns.Start()
	httpSrv.Start()
	return &Portal{DNS: dns, HTTP: httpSrv}, nil
}

// Stop tears down both sub-services.
func (p *Portal) Stop() {
	p.DNS.Stop()
	p.HTTP.Stop()
}
