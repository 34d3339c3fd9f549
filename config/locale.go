package config

// Locales maps a locale name to the Accept-Language header sent to the
// portal when portal.accept_language is not set explicitly.
var Locales = map[string]string{
	"en-US": "en-US,en;q=0.9,pt-BR;q=0.8,pt;q=0.7",
	"pt-BR": "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
	"es":    "es-ES,es;q=0.9,pt-BR;q=0.8,pt;q=0.7,en;q=0.6",
}

// DefaultLocale matches the header a desktop Chrome in the US sends.
const DefaultLocale = "en-US"
