// Package resolvertest runs an in-process authoritative DNS server for tests.
package resolvertest

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// Server answers from a fixed record set over UDP and TCP on the same port.
// Zone transfers are answered for zones listed in AllowTransfer.
type Server struct {
	// Addr is host:port for both transports
	Addr string

	mu            sync.Mutex
	records       []dns.RR
	allowTransfer map[string]bool
	refuse        map[string]bool
	udp           *dns.Server
	tcp           *dns.Server
}

// NewServer starts a server on 127.0.0.1 with the given records in zone-file
// syntax, e.g. "example.com. 300 IN MX 10 mail.example.com.".
func NewServer(t testing.TB, records ...string) *Server {
	t.Helper()

	s := &Server{
		allowTransfer: make(map[string]bool),
		refuse:        make(map[string]bool),
	}
	for _, r := range records {
		s.Add(t, r)
	}

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	port := pc.LocalAddr().(*net.UDPAddr).Port
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		pc.Close()
		t.Fatalf("listen tcp: %v", err)
	}
	s.Addr = pc.LocalAddr().String()

	started := make(chan struct{}, 2)
	notify := func() { started <- struct{}{} }
	s.udp = &dns.Server{PacketConn: pc, Handler: s, NotifyStartedFunc: notify}
	s.tcp = &dns.Server{Listener: ln, Handler: s, NotifyStartedFunc: notify}
	go s.udp.ActivateAndServe()
	go s.tcp.ActivateAndServe()
	<-started
	<-started

	t.Cleanup(func() {
		s.udp.Shutdown()
		s.tcp.Shutdown()
	})
	return s
}

// Add appends a record
func (s *Server) Add(t testing.TB, record string) {
	t.Helper()
	rr, err := dns.NewRR(record)
	if err != nil {
		t.Fatalf("bad record %q: %v", record, err)
	}
	s.mu.Lock()
	s.records = append(s.records, rr)
	s.mu.Unlock()
}

// AllowTransfer permits AXFR of zone
func (s *Server) AllowTransfer(zone string) {
	s.mu.Lock()
	s.allowTransfer[dns.Fqdn(zone)] = true
	s.mu.Unlock()
}

// Refuse makes every query for name return REFUSED
func (s *Server) Refuse(name string) {
	s.mu.Lock()
	s.refuse[dns.Fqdn(name)] = true
	s.mu.Unlock()
}

// ServeDNS implements dns.Handler
func (s *Server) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	q := req.Question[0]
	name := strings.ToLower(q.Name)

	s.mu.Lock()
	refused := s.refuse[name]
	transfer := s.allowTransfer[name]
	records := append([]dns.RR(nil), s.records...)
	s.mu.Unlock()

	if q.Qtype == dns.TypeAXFR {
		if !transfer {
			m := new(dns.Msg)
			m.SetRcode(req, dns.RcodeRefused)
			w.WriteMsg(m)
			return
		}
		s.transfer(w, req, name, records)
		return
	}

	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	if refused {
		m.SetRcode(req, dns.RcodeRefused)
		w.WriteMsg(m)
		return
	}

	known := false
	for _, rr := range records {
		if strings.ToLower(rr.Header().Name) != name {
			continue
		}
		known = true
		if rr.Header().Rrtype == q.Qtype {
			m.Answer = append(m.Answer, dns.Copy(rr))
		}
	}
	if !known {
		m.SetRcode(req, dns.RcodeNameError)
	}
	w.WriteMsg(m)
}

func (s *Server) transfer(w dns.ResponseWriter, req *dns.Msg, zone string, records []dns.RR) {
	soa, _ := dns.NewRR(zone + " 300 IN SOA ns." + zone + " admin." + zone + " 1 3600 600 86400 300")

	rrs := []dns.RR{soa}
	for _, rr := range records {
		if dns.IsSubDomain(zone, strings.ToLower(rr.Header().Name)) {
			rrs = append(rrs, dns.Copy(rr))
		}
	}
	rrs = append(rrs, soa)

	ch := make(chan *dns.Envelope)
	tr := new(dns.Transfer)
	done := make(chan struct{})
	go func() {
		tr.Out(w, req, ch)
		close(done)
	}()
	ch <- &dns.Envelope{RR: rrs}
	close(ch)
	<-done
	w.Hijack()
	w.Close()
}
