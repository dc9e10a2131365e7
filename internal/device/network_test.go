package device

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVirtualInterfaceName(t *testing.T) {
	cases := map[string]bool{
		"eth0":              false,
		"wlan0":             false,
		"VirtualBox Host-Only Network": true,
		"vEthernet (WSL)":   true,
		"docker0":           true,
		"VMware Network Adapter VMnet1": true,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsVirtualInterfaceName(name), name)
	}
}

func TestIsExcludedIP(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":   true,
		"169.254.1.1": true,
		"198.18.0.5":  true,
		"198.19.9.9":  true,
		"192.168.1.5": false,
		"10.0.0.1":    false,
	}
	for ipStr, want := range cases {
		assert.Equal(t, want, IsExcludedIP(net.ParseIP(ipStr)), ipStr)
	}
}

func TestDeriveID(t *testing.T) {
	assert.Equal(t, "device-brad-desktop", DeriveID("Brad Desktop"))
	assert.Equal(t, "device-laptop", DeriveID("LAPTOP"))
}

func TestClassifyPrivate(t *testing.T) {
	assert.True(t, classifyPrivate(net.ParseIP("192.168.1.1").To4()))
	assert.True(t, classifyPrivate(net.ParseIP("10.2.3.4").To4()))
	assert.True(t, classifyPrivate(net.ParseIP("172.16.0.1").To4()))
	assert.True(t, classifyPrivate(net.ParseIP("172.31.0.1").To4()))
	assert.False(t, classifyPrivate(net.ParseIP("172.32.0.1").To4()))
	assert.False(t, classifyPrivate(net.ParseIP("8.8.8.8").To4()))
}
