package citations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsTrackingParamsAndFragment(t *testing.T) {
	got, err := Normalize("https://Example.com/page?utm_source=x&id=1#section")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page?id=1", got)
}

func TestNormalize_LowercasesHostOnly(t *testing.T) {
	got, err := Normalize("https://EXAMPLE.com/Path/To/Page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path/To/Page", got)
}

func TestNormalize_IsIdempotent(t *testing.T) {
	raw := "https://Example.com/page?utm_source=x&gclid=y&id=1#frag"
	once, err := Normalize(raw)
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalize_InvalidURL(t *testing.T) {
	_, err := Normalize("://not a url")
	assert.Error(t, err)
}

func TestRegistrableDomain_MultiLevelTLD(t *testing.T) {
	assert.Equal(t, "example.co.uk", RegistrableDomain("https://www.example.co.uk/page"))
}

func TestRegistrableDomain_SimpleTLD(t *testing.T) {
	assert.Equal(t, "example.com", RegistrableDomain("https://sub.example.com/page"))
}

func TestRegistrableDomain_IPHost(t *testing.T) {
	assert.Equal(t, "192.168.1.1", RegistrableDomain("http://192.168.1.1/path"))
}

func TestRegistrableDomain_InvalidURL(t *testing.T) {
	assert.Equal(t, "", RegistrableDomain("://broken"))
}
