package als

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func TestBuild_DeterministicGivenIdenticalInputs(t *testing.T) {
	in := BuildInput{CountryCode: "DE", Now: fixedNow(), PhraseIndex: 0}

	a, err := Build(in)
	require.NoError(t, err)
	b, err := Build(in)
	require.NoError(t, err)

	assert.Equal(t, a.Text, b.Text)
	assert.Equal(t, a.SHA256, b.SHA256)
	assert.Equal(t, a.VariantID, b.VariantID)
}

func TestBuild_UnsupportedCountry(t *testing.T) {
	_, err := Build(BuildInput{CountryCode: "ZZ", Now: fixedNow()})
	assert.Error(t, err)
}

func TestBuild_NFCLengthWithinBudget(t *testing.T) {
	for country := range catalog {
		block, err := Build(BuildInput{CountryCode: country, Now: fixedNow(), IncludeWeatherHint: true})
		require.NoError(t, err, country)
		assert.LessOrEqual(t, block.NFCLength, 350, country)
	}
}

func TestBuild_PhraseIndexOutOfRangeFallsBackToZero(t *testing.T) {
	inRange, err := Build(BuildInput{CountryCode: "DE", Now: fixedNow(), PhraseIndex: 0})
	require.NoError(t, err)

	outOfRange, err := Build(BuildInput{CountryCode: "DE", Now: fixedNow(), PhraseIndex: 99})
	require.NoError(t, err)

	assert.Equal(t, inRange.Text, outOfRange.Text)
}

func TestBuild_NeverLeaksCountryTLDOrURL(t *testing.T) {
	for country, tmpl := range catalog {
		block, err := Build(BuildInput{CountryCode: country, Now: fixedNow()})
		require.NoError(t, err, country)
		lower := strings.ToLower(block.Text)
		if tmpl.TLD != "" {
			assert.NotContains(t, lower, strings.ToLower(tmpl.TLD), country)
		}
		assert.NotContains(t, lower, "http://", country)
		assert.NotContains(t, lower, "https://", country)
		assert.NotContains(t, lower, "www.", country)
	}
}

func TestBuild_InvalidTZOverrideFallsBackToUTC(t *testing.T) {
	block, err := Build(BuildInput{CountryCode: "US", Now: fixedNow(), TZOverride: "Not/AZone"})
	require.NoError(t, err)
	assert.NotEmpty(t, block.Text)
	assert.Contains(t, block.Text, "(UTC+00:00)")
}

func TestBuild_ZeroNowUsesEpoch(t *testing.T) {
	block, err := Build(BuildInput{CountryCode: "US"})
	require.NoError(t, err)
	assert.Contains(t, block.Text, "1970-01-01")
}

func TestBuild_VariantIDStableWithinSameCalendarDay(t *testing.T) {
	morning := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	a, err := Build(BuildInput{CountryCode: "DE", Now: morning})
	require.NoError(t, err)
	b, err := Build(BuildInput{CountryCode: "DE", Now: evening})
	require.NoError(t, err)

	assert.Equal(t, a.VariantID, b.VariantID)
}

func TestBuild_VariantIDDiffersAcrossCountries(t *testing.T) {
	de, err := Build(BuildInput{CountryCode: "DE", Now: fixedNow()})
	require.NoError(t, err)
	fr, err := Build(BuildInput{CountryCode: "FR", Now: fixedNow()})
	require.NoError(t, err)

	assert.NotEqual(t, de.VariantID, fr.VariantID)
}

func TestErrOverflow_Error(t *testing.T) {
	err := &ErrOverflow{CountryCode: "DE", NFCLength: 400}
	assert.Contains(t, err.Error(), "DE")
	assert.Contains(t, err.Error(), "400")
}
