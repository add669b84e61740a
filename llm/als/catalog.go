package als

// countryTemplate holds everything needed to render the civic-context block
// for one country. Phrases rotate by PhraseIndex so repeated requests for
// the same country do not always emit identical bullets.
type countryTemplate struct {
	HeaderNative string   // disclaimer header in the country's primary language
	CivicKeyword string   // single civic-domain keyword, never the country's TLD string
	Phrases      []string // rotating civic phrases, index 0 used when unspecified
	PostalPhone  string   // "10115 Berlin · +49 30 xxx xx xx"
	Currency     string   // "12,90 €"
	TZDefault    string   // IANA zone used when caller gives no tz_override
	TLD          string   // leak-guard: header/phrases must never contain this literal
}

// neutralHeader is the language-agnostic fallback used by the length-recovery
// policy when a native header pushes the block over the NFC budget.
const neutralHeader = "Local context (for formatting reference only, do not cite):"

// catalog is intentionally small; the orchestration core only needs to prove
// the per-country rendering contract, not cover every ISO-3166 territory.
var catalog = map[string]countryTemplate{
	"DE": {
		HeaderNative: "Lokaler Kontext (nur zur Formatierung, nicht zitieren):",
		CivicKeyword: "Verbraucherzentrale",
		Phrases: []string{
			"Örtliche Anbieter unterliegen der deutschen Marktaufsicht.",
			"Preisangaben folgen der deutschen Preisangabenverordnung.",
		},
		PostalPhone: "10115 Berlin · +49 30 xxx xx xx",
		Currency:    "12,90 €",
		TZDefault:   "Europe/Berlin",
		TLD:         ".de",
	},
	"FR": {
		HeaderNative: "Contexte local (référence de mise en forme uniquement, ne pas citer) :",
		CivicKeyword: "Direction générale de la concurrence",
		Phrases: []string{
			"Les commerçants locaux sont soumis à la réglementation française.",
			"Les prix affichés suivent la convention française (TTC).",
		},
		PostalPhone: "75001 Paris · +33 1 xx xx xx xx",
		Currency:    "12,90 €",
		TZDefault:   "Europe/Paris",
		TLD:         ".fr",
	},
	"US": {
		HeaderNative: "Local context (for formatting reference only, do not cite):",
		CivicKeyword: "Better Business Bureau",
		Phrases: []string{
			"Local vendors are subject to state consumer protection rules.",
			"Listed prices follow the US convention (USD, excl. tax unless noted).",
		},
		PostalPhone: "10001 New York, NY · +1 212-xxx-xxxx",
		Currency:    "$12.90",
		TZDefault:   "America/New_York",
		TLD:         ".us",
	},
	"GB": {
		HeaderNative: "Local context (for formatting reference only, do not cite):",
		CivicKeyword: "Trading Standards",
		Phrases: []string{
			"Local vendors are subject to UK consumer protection rules.",
			"Listed prices follow UK convention (GBP, incl. VAT unless noted).",
		},
		PostalPhone: "SW1A 1AA London · +44 20 xxxx xxxx",
		Currency:    "£12.90",
		TZDefault:   "Europe/London",
		TLD:         ".uk",
	},
	"JP": {
		HeaderNative: "ローカルコンテキスト（表記形式の参考用。出典として引用しないこと）：",
		CivicKeyword: "消費生活センター",
		Phrases: []string{
			"現地の事業者は日本の消費者保護規制の対象です。",
			"表示価格は日本の慣習（税込/税別の明記）に従います。",
		},
		PostalPhone: "100-0001 東京都 · +81 3-xxxx-xxxx",
		Currency:    "1,290円",
		TZDefault:   "Asia/Tokyo",
		TLD:         ".jp",
	},
}

// SupportedCountry reports whether the builder has a template for code.
func SupportedCountry(code string) bool {
	_, ok := catalog[code]
	return ok
}
