package portal

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// dnsHeaderSize is the fixed DNS header; anything shorter is dropped.
const dnsHeaderSize = 12

// DNSResponder answers every query with a single A record pointing at the
// provisioning address, so any hostname a joining client resolves lands on
// the portal. It runs until Stop closes the socket out from under the
// blocking read.
type DNSResponder struct {
	conn net.PacketConn
	addr [4]byte
	log  *logrus.Entry
	wg   sync.WaitGroup
}

func NewDNSResponder(listen string, addr net.IP, logger *logrus.Logger) (*DNSResponder, error) {
	ip4 := addr.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("portal address %v is not IPv4", addr)
	}
	conn, err := net.ListenPacket("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("bind dns listener: %w", err)
	}
	d := &DNSResponder{
		conn: conn,
		log:  logger.WithField("component", "portal-dns"),
	}
	copy(d.addr[:], ip4)
	return d, nil
}

// Start launches the receive loop on its own goroutine.
func (d *DNSResponder) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.serve()
	}()
	d.log.WithField("addr", d.conn.LocalAddr().String()).Info("dns responder started")
}

func (d *DNSResponder) serve() {
	buf := make([]byte, 512)
	for {
		n, from, err := d.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				d.log.WithError(err).Warn("dns receive failed")
			}
			return
		}
		resp, ok := buildDNSResponse(buf[:n], d.addr)
		if !ok {
			continue
		}
		if _, err := d.conn.WriteTo(resp, from); err != nil {
			d.log.WithError(err).Warn("dns send failed")
		}
	}
}

// Stop closes the socket and waits for the loop to exit.
func (d *DNSResponder) Stop() {
	d.conn.Close()
	d.wg.Wait()
	d.log.Info("dns responder stopped")
}

// Addr reports the bound listen address, useful when listening on port 0.
func (d *DNSResponder) Addr() net.Addr {
	return d.conn.LocalAddr()
}

// buildDNSResponse turns a raw query into a redirecting answer. The query
// section is reused byte-for-byte; the header gets the response and
// authoritative flags and an answer count of one; a single A record pointing
// at addr is appended with a name pointer back to the question at offset 12.
func buildDNSResponse(query []byte, addr [4]byte) ([]byte, bool) {
	if len(query) < dnsHeaderSize {
		return nil, false
	}

	resp := make([]byte, len(query), len(query)+16)
	copy(resp, query)

	// QR=1, AA=1, no error.
	resp[2] = 0x84
	resp[3] = 0x00
	// ANCOUNT = 1.
	resp[6] = 0x00
	resp[7] = 0x01

	answer := []byte{
		0xC0, 0x0C, // name: pointer to the question
		0x00, 0x01, // type A
		0x00, 0x01, // class IN
		0x00, 0x00, 0x00, 0x3C, // TTL 60s
		0x00, 0x04, // rdlength
		addr[0], addr[1], addr[2], addr[3],
	}
	return append(resp, answer...), true
}
