// Package i18n provides the supported UI languages and the few strings the
// core itself has to emit. The browser UI owns the rest of the string tables.
package i18n

import (
	"fmt"
	"strings"
)

// Language represents a UI language.
type Language string

const (
	AR Language = "ar"
	EN Language = "en"
	FR Language = "fr"
)

// Default is the language used when nothing else is configured.
const Default = AR

// Direction is the layout direction of a language.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Keys of the lookup table.
const (
	KeyScan         = "scan"
	KeyHistory      = "history"
	KeyEmpty        = "empty"
	KeyFact         = "fact"
	KeyScannerTitle = "scanner_title"
	KeyTapToScan    = "tap_to_scan"
	KeyDecrypting   = "decrypting"
	KeySystemReady  = "system_ready"
	KeyError        = "error"
	KeyDone         = "done"
)

var translations = map[Language]map[string]string{
	AR: {
		KeyScan:         "تحليل النقش",
		KeyHistory:      "أرشيف الاستكشاف",
		KeyEmpty:        "الأرشيف فارغ",
		KeyFact:         "معلومة تاريخية",
		KeyScannerTitle: "ماسح الآثار الذكي",
		KeyTapToScan:    "اضغط لمسح الأثر",
		KeyDecrypting:   "جاري فك التشفير...",
		KeySystemReady:  "النظام جاهز للاستقبال",
		KeyError:        "حدث خطأ في الاتصال. يرجى التأكد من جودة الصورة.",
		KeyDone:         "اكتمل التحليل",
	},
	EN: {
		KeyScan:         "Analyze Inscription",
		KeyHistory:      "Discovery Archive",
		KeyEmpty:        "Archive is empty",
		KeyFact:         "Historical Fact",
		KeyScannerTitle: "A.I. Artifact Scanner",
		KeyTapToScan:    "Tap to Scan Artifact",
		KeyDecrypting:   "Decrypting...",
		KeySystemReady:  "System Ready for Input",
		KeyError:        "Connection error. Please provide a clear image.",
		KeyDone:         "Analysis complete",
	},
	FR: {
		KeyScan:         "Analyser l'inscription",
		KeyHistory:      "Archives",
		KeyEmpty:        "Archives vides",
		KeyFact:         "Fait Historique",
		KeyScannerTitle: "Scanner d'Artefacts IA",
		KeyTapToScan:    "Appuyez pour scanner",
		KeyDecrypting:   "Déchiffrement...",
		KeySystemReady:  "Système prêt",
		KeyError:        "Erreur de connexion. Veuillez fournir une image claire.",
		KeyDone:         "Analyse terminée",
	},
}

// T returns the translation of key in lang, falling back to the key itself.
func T(lang Language, key string) string {
	if table, ok := translations[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	return key
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	return []Language{AR, EN, FR}
}

// Valid reports whether lang is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case AR, EN, FR:
		return true
	}
	return false
}

// Direction returns the layout direction for the language.
func (l Language) Direction() Direction {
	if l == AR {
		return RTL
	}
	return LTR
}

// Parse converts a user-supplied code such as "EN" or " fr " to a Language.
func Parse(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

// Name returns the display name for a language.
func Name(lang Language) string {
	switch lang {
	case AR:
		return "العربية"
	case EN:
		return "English"
	case FR:
		return "Français"
	default:
		return string(lang)
	}
}
