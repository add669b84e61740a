package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSSRF_AllowsPublicHTTPS(t *testing.T) {
	assert.NoError(t, checkSSRF("https://example.com/page"))
}

func TestCheckSSRF_RejectsNonHTTPScheme(t *testing.T) {
	assert.ErrorIs(t, checkSSRF("ftp://example.com/page"), ErrBlockedBySSRFGuard)
	assert.ErrorIs(t, checkSSRF("file:///etc/passwd"), ErrBlockedBySSRFGuard)
}

func TestCheckSSRF_RejectsLoopbackLiteral(t *testing.T) {
	assert.ErrorIs(t, checkSSRF("http://127.0.0.1/admin"), ErrBlockedBySSRFGuard)
	assert.ErrorIs(t, checkSSRF("http://[::1]/admin"), ErrBlockedBySSRFGuard)
}

func TestCheckSSRF_RejectsPrivateRanges(t *testing.T) {
	for _, raw := range []string{
		"http://10.1.2.3/",
		"http://172.16.0.5/",
		"http://192.168.1.10/",
	} {
		assert.ErrorIs(t, checkSSRF(raw), ErrBlockedBySSRFGuard, raw)
	}
}

func TestCheckSSRF_RejectsLinkLocal(t *testing.T) {
	assert.ErrorIs(t, checkSSRF("http://169.254.169.254/latest/meta-data"), ErrBlockedBySSRFGuard)
}

func TestCheckSSRF_AllowsPublicIPLiteral(t *testing.T) {
	assert.NoError(t, checkSSRF("http://8.8.8.8/"))
}

func TestCheckSSRF_RejectsMalformedURL(t *testing.T) {
	assert.ErrorIs(t, checkSSRF("://broken"), ErrBlockedBySSRFGuard)
}

func TestCheckSSRF_RejectsEmptyHost(t *testing.T) {
	assert.ErrorIs(t, checkSSRF("https:///path"), ErrBlockedBySSRFGuard)
}
