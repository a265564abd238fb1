package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"golang.org/x/net/dns/dnsmessage"
)

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

// MDNSProbe browses a DNS-SD service type over multicast DNS
type MDNSProbe struct {
	Service string // e.g. "_apple-mobdev2._tcp"
}

func (p *MDNSProbe) Name() string { return "mdns" }

// Run sends one PTR query and reads answers until ctx is done
func (p *MDNSProbe) Run(ctx context.Context, emit func(domain.DeviceDescriptor)) error {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return fmt.Errorf("failed to open mdns socket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.SetDeadline(time.Now())
	}()

	query, err := buildQuery(p.Service)
	if err != nil {
		return err
	}
	if _, err := conn.WriteTo(query, mdnsGroup); err != nil {
		return fmt.Errorf("failed to send mdns query: %w", err)
	}

	state := newMDNSState(p.Service)
	buf := make([]byte, 9000)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mdns read: %w", err)
		}
		var fallback netip.Addr
		if ua, ok := from.(*net.UDPAddr); ok {
			fallback, _ = netip.AddrFromSlice(ua.IP.To4())
		}
		if err := state.ingest(buf[:n], fallback); err != nil {
			continue
		}
		for _, d := range state.descriptors() {
			emit(d)
		}
	}
}

// buildQuery returns a PTR question for service.local. asking for unicast replies
func buildQuery(service string) ([]byte, error) {
	name, err := dnsmessage.NewName(fqdn(service))
	if err != nil {
		return nil, fmt.Errorf("invalid service name %q: %w", service, err)
	}
	msg := dnsmessage.Message{
		Questions: []dnsmessage.Question{{
			Name:  name,
			Type:  dnsmessage.TypePTR,
			Class: dnsmessage.ClassINET | 1<<15, // QU bit
		}},
	}
	return msg.Pack()
}

func fqdn(service string) string {
	s := strings.TrimSuffix(service, ".")
	if !strings.HasSuffix(s, ".local") {
		s += ".local"
	}
	return s + "."
}

type srvTarget struct {
	host string
	port uint16
}

// mdnsState accumulates records across response packets
type mdnsState struct {
	service   string
	instances []string
	srv       map[string]srvTarget
	txt       map[string]map[string]string
	addrs     map[string]netip.Addr
	sources   map[string]netip.Addr
}

func newMDNSState(service string) *mdnsState {
	return &mdnsState{
		service: strings.ToLower(fqdn(service)),
		srv:     make(map[string]srvTarget),
		txt:     make(map[string]map[string]string),
		addrs:   make(map[string]netip.Addr),
		sources: make(map[string]netip.Addr),
	}
}

func (s *mdnsState) ingest(packet []byte, source netip.Addr) error {
	var p dnsmessage.Parser
	hdr, err := p.Start(packet)
	if err != nil {
		return err
	}
	if !hdr.Response {
		return nil
	}
	if err := p.SkipAllQuestions(); err != nil {
		return err
	}

	for _, section := range []func() (dnsmessage.ResourceHeader, error){p.AnswerHeader, p.AuthorityHeader, p.AdditionalHeader} {
		for {
			rh, err := section()
			if err == dnsmessage.ErrSectionDone {
				break
			}
			if err != nil {
				return err
			}
			if err := s.record(&p, rh, source); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *mdnsState) record(p *dnsmessage.Parser, rh dnsmessage.ResourceHeader, source netip.Addr) error {
	name := strings.ToLower(rh.Name.String())
	switch rh.Type {
	case dnsmessage.TypePTR:
		r, err := p.PTRResource()
		if err != nil {
			return err
		}
		if name == s.service {
			inst := strings.ToLower(r.PTR.String())
			if !slices.Contains(s.instances, inst) {
				s.instances = append(s.instances, inst)
			}
			if source.IsValid() {
				s.sources[inst] = source
			}
		}
	case dnsmessage.TypeSRV:
		r, err := p.SRVResource()
		if err != nil {
			return err
		}
		s.srv[name] = srvTarget{host: strings.ToLower(r.Target.String()), port: r.Port}
	case dnsmessage.TypeTXT:
		r, err := p.TXTResource()
		if err != nil {
			return err
		}
		kv := make(map[string]string)
		for _, entry := range r.TXT {
			k, v, _ := strings.Cut(entry, "=")
			kv[strings.ToLower(k)] = v
		}
		s.txt[name] = kv
	case dnsmessage.TypeA:
		r, err := p.AResource()
		if err != nil {
			return err
		}
		s.addrs[name] = netip.AddrFrom4(r.A)
	default:
		_, err := p.UnknownResource()
		return err
	}
	return nil
}

// descriptors returns every instance with a usable address
func (s *mdnsState) descriptors() []domain.DeviceDescriptor {
	var out []domain.DeviceDescriptor
	for _, inst := range s.instances {
		srv, ok := s.srv[inst]
		if !ok {
			continue
		}
		addr, ok := s.addrs[srv.host]
		if !ok {
			addr, ok = s.sources[inst]
		}
		if !ok {
			continue
		}

		label := strings.TrimSuffix(inst, "."+s.service)
		id := label
		name := label
		if txt := s.txt[inst]; txt != nil {
			if v := txt["deviceid"]; v != "" {
				id = v
			}
			if v := txt["name"]; v != "" {
				name = v
			}
		}
		// apple-mobdev2 instances are "<wifi-mac>@<pairing-id>"
		if at := strings.IndexByte(id, '@'); at >= 0 && id == label {
			id = id[at+1:]
		}

		out = append(out, domain.DeviceDescriptor{
			ID:          id,
			DisplayName: name,
			Transport:   domain.TransportNetwork,
			Address:     net.JoinHostPort(addr.String(), strconv.Itoa(int(srv.port))),
		})
	}
	return out
}
