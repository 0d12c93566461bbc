package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ipv4", "192.168.1.47", "192.168.1.0"},
		{"ipv4 loopback", "127.0.0.1", "127.0.0.0"},
		{"ipv4 mapped ipv6", "::ffff:10.1.2.3", "10.1.2.0"},
		{"ipv6", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::"},
		{"ipv6 loopback", "::1", "::"},
		{"empty", "", "unknown"},
		{"unknown", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.input))
		})
	}
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0", ClientIP("203.0.113.9:52314"))
	assert.Equal(t, "2001:db8::", ClientIP("[2001:db8::1]:443"))
	assert.Equal(t, "203.0.113.0", ClientIP("203.0.113.9"))
}
