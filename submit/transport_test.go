package submit

import (
	"testing"

	tls "github.com/refraction-networking/utls"
)

func TestChromeHello_OnlyOffersHTTP1(t *testing.T) {
	spec, err := chromeHello()
	if err != nil {
		t.Fatalf("chromeHello: %v", err)
	}
	found := false
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			found = true
			if len(alpn.AlpnProtocols) != 1 || alpn.AlpnProtocols[0] != "http/1.1" {
				t.Errorf("ALPN = %v, want [http/1.1]", alpn.AlpnProtocols)
			}
		}
	}
	if !found {
		t.Error("Chrome hello carries no ALPN extension")
	}

	again, err := chromeHello()
	if err != nil {
		t.Fatalf("chromeHello: %v", err)
	}
	if again == spec {
		t.Error("chromeHello reused a spec across calls")
	}
}

func TestNewTransport(t *testing.T) {
	tests := []struct {
		name      string
		proxy     string
		chromeTLS bool
		wantTLS   bool
		wantProxy bool
	}{
		{"plain", "", false, false, false},
		{"chrome tls", "", true, true, false},
		{"http proxy", "http://127.0.0.1:3128", true, true, true},
		{"socks proxy ignored", "socks5://127.0.0.1:1080", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTransport(tt.proxy, tt.chromeTLS)
			if (tr.DialTLSContext != nil) != tt.wantTLS {
				t.Errorf("DialTLSContext set = %v, want %v", tr.DialTLSContext != nil, tt.wantTLS)
			}
			if (tr.Proxy != nil) != tt.wantProxy {
				t.Errorf("Proxy set = %v, want %v", tr.Proxy != nil, tt.wantProxy)
			}
			if tr.DialContext == nil || tr.TLSHandshakeTimeout != submitDialTimeout {
				t.Error("dial settings not applied")
			}
		})
	}
}
