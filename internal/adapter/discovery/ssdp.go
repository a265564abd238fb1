package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
)

var ssdpGroup = &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: 1900}

// DefaultSearchTarget matches phones exposing their camera roll as a media server
const DefaultSearchTarget = "urn:schemas-upnp-org:device:MediaServer:1"

// SSDPProbe sends an M-SEARCH and collects unicast replies
type SSDPProbe struct {
	SearchTarget string
}

func (p *SSDPProbe) Name() string { return "ssdp" }

func (p *SSDPProbe) target() string {
	if p.SearchTarget == "" {
		return DefaultSearchTarget
	}
	return p.SearchTarget
}

// Run sends one M-SEARCH and reads replies until ctx is done
func (p *SSDPProbe) Run(ctx context.Context, emit func(domain.DeviceDescriptor)) error {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return fmt.Errorf("failed to open ssdp socket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.SetDeadline(time.Now())
	}()

	search := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"ST: " + p.target() + "\r\n" +
		"MX: 2\r\n\r\n"
	if _, err := conn.WriteTo([]byte(search), ssdpGroup); err != nil {
		return fmt.Errorf("failed to send M-SEARCH: %w", err)
	}

	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ssdp read: %w", err)
		}
		if d, ok := parseSSDPResponse(buf[:n]); ok {
			emit(d)
		}
	}
}

// parseSSDPResponse turns an HTTP-over-UDP search reply into a descriptor
func parseSSDPResponse(packet []byte) (domain.DeviceDescriptor, bool) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(packet)), nil)
	if err != nil {
		return domain.DeviceDescriptor{}, false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.DeviceDescriptor{}, false
	}

	location := resp.Header.Get("Location")
	usn := resp.Header.Get("Usn")
	if location == "" || usn == "" {
		return domain.DeviceDescriptor{}, false
	}
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return domain.DeviceDescriptor{}, false
	}

	// USN is "uuid:<device-uuid>::<type>"
	id, _, _ := strings.Cut(usn, "::")
	id = strings.TrimPrefix(id, "uuid:")

	name := resp.Header.Get("Server")
	if name == "" {
		name = u.Hostname()
	}

	return domain.DeviceDescriptor{
		ID:          id,
		DisplayName: name,
		Transport:   domain.TransportNetwork,
		Address:     u.Host,
	}, true
}
