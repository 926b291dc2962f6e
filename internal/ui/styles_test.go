package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormattersKeepMessage(t *testing.T) {
	formatters := map[string]func(string) string{
		"Success": Success,
		"Warn":    Warn,
		"Err":     Err,
		"Addr":    Addr,
		"Val":     Val,
		"Meta":    Meta,
		"Network": Network,
	}
	for name, fn := range formatters {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, fn("test"), "test")
		})
	}
}

func TestPrefixes(t *testing.T) {
	assert.Contains(t, Success("done"), "✓")
	assert.Contains(t, Warn("careful"), "⚠")
	assert.Contains(t, Err("failed"), "✗")
}

func TestCheck(t *testing.T) {
	assert.Equal(t, Success("ok"), Check(true, "ok"))
	assert.Equal(t, Err("bad"), Check(false, "bad"))
}

func TestTruncateAddr(t *testing.T) {
	assert.Equal(t, "0x1234", TruncateAddr("0x1234"))
	assert.Equal(t, "0x12345678", TruncateAddr("0x12345678"))
	assert.Equal(t, "0x90F8…c9C1", TruncateAddr("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"))
	assert.Equal(t, "", TruncateAddr(""))
}

func TestBanner(t *testing.T) {
	assert.Contains(t, Banner(), "stablecoin")
}
