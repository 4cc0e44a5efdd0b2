package discovery

import "testing"

func TestPortOf(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{":8707", 8707},
		{"0.0.0.0:9000", 9000},
		{"localhost:80", 80},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := portOf(tt.addr); got != tt.want {
			t.Errorf("portOf(%q) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	ep := Endpoint{Name: "living-room", Port: 8707, Host: "192.168.1.20"}
	if got := ep.URL(); got != "http://192.168.1.20:8707" {
		t.Errorf("URL() = %q", got)
	}
}
