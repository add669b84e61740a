package als

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// BuildInput is the caller-supplied request for one ALS block.
type BuildInput struct {
	CountryCode        string
	Now                time.Time
	PhraseIndex        int
	TZOverride         string
	IncludeWeatherHint bool
}

// Block is the rendered, provenance-stamped output of Build.
type Block struct {
	Text      string
	SHA256    string
	VariantID string
	NFCLength int
}

// ErrOverflow is returned when the rendered block cannot be brought under
// the 350-character NFC budget even after the length-recovery policy runs.
type ErrOverflow struct {
	CountryCode string
	NFCLength   int
}

func (e *ErrOverflow) Error() string {
	return fmt.Sprintf("als: block for %s exceeds 350 NFC characters (%d)", e.CountryCode, e.NFCLength)
}

// Build renders the civic-context block for in.CountryCode. Given identical
// inputs it always returns byte-identical text, sha256 and variant id.
func Build(in BuildInput) (*Block, error) {
	tmpl, ok := catalog[in.CountryCode]
	if !ok {
		return nil, fmt.Errorf("als: unsupported country %q", in.CountryCode)
	}

	phraseIndex := in.PhraseIndex
	if phraseIndex < 0 || phraseIndex >= len(tmpl.Phrases) {
		phraseIndex = 0
	}

	now := in.Now
	if now.IsZero() {
		now = time.Unix(0, 0).UTC()
	}

	tz := in.TZOverride
	if tz == "" {
		tz = tmpl.TZDefault
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	block, err := render(tmpl, tmpl.HeaderNative, local, phraseIndex, in.IncludeWeatherHint)
	if err != nil {
		return nil, err
	}
	if block.NFCLength > 350 && in.IncludeWeatherHint {
		// recovery step 1: drop the weather line
		block, err = render(tmpl, tmpl.HeaderNative, local, phraseIndex, false)
		if err != nil {
			return nil, err
		}
	}
	if block.NFCLength > 350 {
		// recovery step 2: replace the native header with the neutral one
		block, err = render(tmpl, neutralHeader, local, phraseIndex, false)
		if err != nil {
			return nil, err
		}
	}
	if block.NFCLength > 350 {
		return nil, &ErrOverflow{CountryCode: in.CountryCode, NFCLength: block.NFCLength}
	}

	if err := validateLeakRules(block.Text, tmpl.TLD); err != nil {
		return nil, err
	}

	block.VariantID = variantID(in.CountryCode, phraseIndex, local)
	return block, nil
}

func render(tmpl countryTemplate, header string, local time.Time, phraseIndex int, weather bool) (*Block, error) {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	_, offset := local.Zone()
	b.WriteString(fmt.Sprintf("- %s %s (UTC%s)\n", local.Format("2006-01-02 15:04"), local.Format("MST"), formatOffset(offset)))
	b.WriteString(fmt.Sprintf("- %s · %s\n", tmpl.CivicKeyword, tmpl.Phrases[phraseIndex]))
	b.WriteString(fmt.Sprintf("- %s · %s\n", tmpl.PostalPhone, tmpl.Currency))
	if weather {
		b.WriteString("- Seasonal note: check local conditions before outdoor recommendations.\n")
	}

	text := strings.TrimRight(b.String(), "\n")
	nfc := norm.NFC.String(text)
	sum := sha256.Sum256([]byte(nfc))
	return &Block{
		Text:      text,
		SHA256:    hex.EncodeToString(sum[:]),
		NFCLength: utf8.RuneCountInString(nfc),
	}, nil
}

func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}

// variantID is deterministic given (country, phrase index, local day) — no
// randomness, so repeated builds on the same calendar day are identical.
func variantID(countryCode string, phraseIndex int, local time.Time) string {
	seed := fmt.Sprintf("%s|%d|%s", countryCode, phraseIndex, local.Format("20060102"))
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:6])
}

// leakTriggerTokens are phrases/words that tend to leak through product or
// news scraping pipelines and must never appear in a rendered block.
var leakTriggerTokens = []string{"http://", "https://", "www."}

func validateLeakRules(text, tld string) error {
	lower := strings.ToLower(text)
	if tld != "" && strings.Contains(lower, strings.ToLower(tld)) {
		return fmt.Errorf("als: rendered block leaks country TLD %q", tld)
	}
	for _, tok := range leakTriggerTokens {
		if strings.Contains(lower, tok) {
			return fmt.Errorf("als: rendered block contains URL-like token %q", tok)
		}
	}
	return nil
}
