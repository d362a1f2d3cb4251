package discovery

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/go-peppol-as2/pkg/identifier"
)

// startDNSServer runs a miekg/dns server on a random local UDP port.
func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() {
		_ = server.ActivateAndServe()
	}()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func naptrHandler(records map[string][]dns.RR) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		name := strings.ToLower(r.Question[0].Name)
		rrs, ok := records[name]
		if !ok {
			m.Rcode = dns.RcodeNameError
		}
		m.Answer = rrs
		_ = w.WriteMsg(m)
	}
}

func TestCNAMEHostname(t *testing.T) {
	participant := identifier.NewParticipant("0010:5798000000001")
	got := CNAMEHostname(participant, SMLZoneTest)

	// B-<md5("0010:5798000000001")>
	if !strings.HasPrefix(got, "B-") {
		t.Fatalf("hostname %s should start with B-", got)
	}
	if !strings.HasSuffix(got, ".iso6523-actorid-upis."+SMLZoneTest) {
		t.Errorf("hostname %s should end with scheme and zone", got)
	}
	label := strings.Split(got, ".")[0]
	if len(label) != 2+32 {
		t.Errorf("label %s should hold a 32 char md5 hex digest", label)
	}

	upper := CNAMEHostname(identifier.New("iso6523-actorid-upis", "0010:ABC"), SMLZoneTest)
	lower := CNAMEHostname(identifier.New("iso6523-actorid-upis", "0010:abc"), SMLZoneTest)
	if upper != lower {
		t.Errorf("hostnames differ by case: %s vs %s", upper, lower)
	}
}

func TestNAPTRHostname(t *testing.T) {
	participant := identifier.NewParticipant("0088:123")
	got := NAPTRHostname(participant, SMLZoneProduction)

	label := strings.Split(got, ".")[0]
	// 32 byte digest -> 52 base32 characters without padding
	if len(label) != 52 {
		t.Errorf("label length = %d, want 52", len(label))
	}
	if strings.Contains(label, "=") {
		t.Error("label should not contain padding")
	}
	if !strings.HasSuffix(got, ".iso6523-actorid-upis."+SMLZoneProduction) {
		t.Errorf("hostname %s should end with scheme and zone", got)
	}
}

func TestSMLClientConfig(t *testing.T) {
	client := NewSMLClient("")
	if client.config.Zone != SMLZoneProduction {
		t.Errorf("default Zone = %s", client.config.Zone)
	}
	if client.config.Mode != SMLModeNAPTR {
		t.Errorf("default Mode = %s", client.config.Mode)
	}

	custom := NewSMLClientWithConfig(SMLClientConfig{Zone: "sml.example.com.", Mode: SMLModeCNAME})
	if custom.config.Zone != "sml.example.com" {
		t.Errorf("Zone = %s, want trailing dot trimmed", custom.config.Zone)
	}
}

func TestLocateSMPNAPTR(t *testing.T) {
	participant := identifier.NewParticipant("0088:123")
	host := dns.Fqdn(strings.ToLower(NAPTRHostname(participant, "sml.example.com")))

	addr := startDNSServer(t, naptrHandler(map[string][]dns.RR{
		host: {
			&dns.NAPTR{
				Hdr:   dns.RR_Header{Name: host, Rrtype: dns.TypeNAPTR, Class: dns.ClassINET, Ttl: 60},
				Order: 100, Preference: 20, Flags: "U", Service: ServiceTypeSMP,
				Regexp: "!^.*$!http://backup-smp.example.com!", Replacement: ".",
			},
			&dns.NAPTR{
				Hdr:   dns.RR_Header{Name: host, Rrtype: dns.TypeNAPTR, Class: dns.ClassINET, Ttl: 60},
				Order: 100, Preference: 10, Flags: "U", Service: ServiceTypeSMP,
				Regexp: "!^.*$!http://smp.example.com!", Replacement: ".",
			},
			&dns.NAPTR{
				Hdr:   dns.RR_Header{Name: host, Rrtype: dns.TypeNAPTR, Class: dns.ClassINET, Ttl: 60},
				Order: 10, Preference: 10, Flags: "U", Service: "other-service",
				Regexp: "!^.*$!http://ignored.example.com!", Replacement: ".",
			},
		},
	}))

	client := NewSMLClientWithConfig(SMLClientConfig{Zone: "sml.example.com", DNSServer: addr})
	smpURL, err := client.LocateSMP(context.Background(), participant)
	if err != nil {
		t.Fatalf("LocateSMP() error = %v", err)
	}
	if smpURL != "http://smp.example.com" {
		t.Errorf("LocateSMP() = %s, want http://smp.example.com", smpURL)
	}
}

func TestLocateSMPUnknownParticipant(t *testing.T) {
	addr := startDNSServer(t, naptrHandler(nil))

	for _, mode := range []SMLMode{SMLModeNAPTR, SMLModeCNAME} {
		t.Run(string(mode), func(t *testing.T) {
			client := NewSMLClientWithConfig(SMLClientConfig{Zone: "sml.example.com", DNSServer: addr, Mode: mode})
			_, err := client.LocateSMP(context.Background(), identifier.NewParticipant("0088:unknown"))
			if !errors.Is(err, ErrParticipantNotFound) {
				t.Errorf("expected ErrParticipantNotFound, got %v", err)
			}
			if !errors.Is(err, ErrNoRecordsFound) {
				t.Errorf("expected ErrNoRecordsFound, got %v", err)
			}
		})
	}
}

func TestLocateSMPCNAME(t *testing.T) {
	participant := identifier.NewParticipant("0088:123")
	host := CNAMEHostname(participant, "sml.example.com")
	fqdn := dns.Fqdn(strings.ToLower(host))

	addr := startDNSServer(t, naptrHandler(map[string][]dns.RR{
		fqdn: {
			&dns.A{
				Hdr: dns.RR_Header{Name: fqdn, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("192.0.2.10"),
			},
		},
	}))

	client := NewSMLClientWithConfig(SMLClientConfig{Zone: "sml.example.com", DNSServer: addr, Mode: SMLModeCNAME})
	smpURL, err := client.LocateSMP(context.Background(), participant)
	if err != nil {
		t.Fatalf("LocateSMP() error = %v", err)
	}
	if smpURL != "http://"+host {
		t.Errorf("LocateSMP() = %s, want http://%s", smpURL, host)
	}
}

func TestLocateSMPCNAMESkipDNSCheck(t *testing.T) {
	client := NewSMLClientWithConfig(SMLClientConfig{Zone: "sml.example.com", Mode: SMLModeCNAME, SkipDNSCheck: true, DNSServer: "127.0.0.1:1"})
	participant := identifier.NewParticipant("0088:123")
	smpURL, err := client.LocateSMP(context.Background(), participant)
	if err != nil {
		t.Fatalf("LocateSMP() error = %v", err)
	}
	if smpURL != "http://"+CNAMEHostname(participant, "sml.example.com") {
		t.Errorf("LocateSMP() = %s", smpURL)
	}
}

func TestLocateSMPEmptyParticipant(t *testing.T) {
	client := NewSMLClient(SMLZoneTest)
	_, err := client.LocateSMP(context.Background(), identifier.ID{})
	if !errors.Is(err, ErrInvalidParticipant) {
		t.Errorf("expected ErrInvalidParticipant, got %v", err)
	}
}

func TestExtractURLFromRegexp(t *testing.T) {
	tests := []struct {
		name    string
		regexp  string
		want    string
		wantErr bool
	}{
		{name: "standard", regexp: "!^.*$!https://smp.example.com/!", want: "https://smp.example.com/"},
		{name: "http", regexp: "!.*!http://smp.example.com!", want: "http://smp.example.com"},
		{name: "empty", regexp: "", wantErr: true},
		{name: "missing replacement", regexp: "!.*!!", wantErr: true},
		{name: "too few parts", regexp: "!.*", wantErr: true},
		{name: "bad scheme", regexp: "!.*!ftp://smp.example.com!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractURLFromRegexp(tt.regexp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractURLFromRegexp() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractURLFromRegexp() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelectBestRecordNoMatch(t *testing.T) {
	records := []*dns.NAPTR{
		{Flags: "S", Service: ServiceTypeSMP, Regexp: "!.*!http://a!"},
		{Flags: "U", Service: "other", Regexp: "!.*!http://b!"},
	}
	if _, err := selectBestRecord(records); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}
