package extract

import (
	"regexp"
	"strings"

	"house-price-chatbot/internal/store"
)

// Field keys produced by the extractor, matching the price model's inputs.
const (
	FieldLocation  = "location"
	FieldTotalSqft = "total_sqft"
	FieldBath      = "bath"
	FieldBHK       = "bhk"
)

var requiredFields = []string{FieldLocation, FieldTotalSqft, FieldBath, FieldBHK}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blocation\s*[:=]\s*([^\n,;]+)`),
	regexp.MustCompile(`(?i)\barea\s*[:=]\s*([^\n,;]+)`),
}

// Allow commas and decimals in numbers, plus unit mentions after the value.
var totalSqftPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btotal[_\s]*sqft\s*[:=]?\s*([\d,\.]+)`),
	regexp.MustCompile(`(?i)([\d,\.]+)\s*(?:sqft|ft2|feet\s*squared)`),
}

var bathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbath(?:room|s)?\s*[:=]?\s*([\d,\.]+)`),
	regexp.MustCompile(`(?i)\bwc\b\s*[:=]?\s*([\d,\.]+)`),
}

// Both "bhk 3" and "3 bhk" appear in practice.
var bhkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbhk\b\s*[:=]?\s*([\d,\.]+)`),
	regexp.MustCompile(`(?i)([\d,\.]+)\s*bhk\b`),
}

var nonNumeric = regexp.MustCompile(`[^\d\.]`)

// Options narrows location extraction to a known set of areas.
type Options struct {
	// Lookup maps lowercased location names to their canonical form. When
	// set, locations that do not resolve through it are discarded.
	Lookup map[string]string
	// Names are canonical location names tried as a substring fallback when
	// no location pattern matches.
	Names []string
}

// Fields pulls house-price inputs out of free-form text. Numeric values are
// returned as cleaned strings so callers can decide how strictly to parse
// them.
func Fields(text string, opts Options) map[string]string {
	found := map[string]string{}
	if text == "" {
		return found
	}

	for _, pattern := range locationPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil || m[1] == "" {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if opts.Lookup == nil {
			found[FieldLocation] = candidate
		} else if canonical := opts.Lookup[strings.ToLower(candidate)]; canonical != "" {
			found[FieldLocation] = canonical
		}
		break
	}

	// Fallback: scan for any known location name mentioned in the text,
	// preferring the longest match to avoid short-name false positives.
	if found[FieldLocation] == "" && len(opts.Names) > 0 {
		lowered := strings.ToLower(text)
		best := ""
		for _, name := range opts.Names {
			if name == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(name)) && len(name) > len(best) {
				best = name
			}
		}
		if best != "" {
			if canonical := opts.Lookup[strings.ToLower(best)]; canonical != "" {
				found[FieldLocation] = canonical
			} else {
				found[FieldLocation] = best
			}
		}
	}

	if v := firstNumber(text, totalSqftPatterns); v != "" {
		found[FieldTotalSqft] = v
	}
	if v := firstNumber(text, bathPatterns); v != "" {
		found[FieldBath] = v
	}
	if v := firstNumber(text, bhkPatterns); v != "" {
		found[FieldBHK] = v
	}

	return found
}

func firstNumber(text string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(text); m != nil && m[1] != "" {
			return cleanNumber(m[1])
		}
	}
	return ""
}

// cleanNumber strips separators, keeping digits and interior dots.
func cleanNumber(val string) string {
	cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(val, ",", ""), "")
	return strings.TrimRight(cleaned, ".")
}

// Merge walks conversation messages in order and keeps the latest value seen
// for each field.
func Merge(history []store.ChatMessage, opts Options) map[string]string {
	merged := map[string]string{}
	for _, msg := range history {
		for k, v := range Fields(msg.Content, opts) {
			merged[k] = v
		}
	}
	return merged
}

// Complete reports whether every field the price model needs has a value.
func Complete(fields map[string]string) bool {
	for _, key := range requiredFields {
		if fields[key] == "" {
			return false
		}
	}
	return true
}
