package scoring

import (
	"regexp"
	"strings"
)

// amountPattern matches a dollar amount in its various textual forms: "$1,234.56",
// "usd 1200", "1200 dollars", or "budget: 3200" / "amount is 3200".
var amountPattern = regexp.MustCompile(`(?i)\$\s*\d+(?:,\d{3})*(?:\.\d+)?` +
	`|(?:usd|dollars?)\s*\d+(?:,\d{3})*(?:\.\d+)?` +
	`|\d+(?:,\d{3})*(?:\.\d+)?\s*(?:usd|dollars?)` +
	`|(?:budget|amount)\s*(?:is|=|:)?\s*\d+(?:,\d{3})*(?:\.\d+)?`)

// etaPattern matches a delivery estimate: "eta: 3-5 days", "delivery within 2 days",
// "arrival about 1 week".
var etaPattern = regexp.MustCompile(`(?i)\beta[:\s-]*(?:within\s*|approx\.?\s*|about\s*)?\d+(?:\s*-\s*\d+)?\s*(?:business\s*)?(?:day|days|hour|hours|week|weeks)\b` +
	`|\bdelivery[:\s-]*(?:within\s*|approx\.?\s*|about\s*)?\d+(?:\s*-\s*\d+)?\s*(?:business\s*)?(?:day|days|hour|hours|week|weeks)\b` +
	`|\barriv(?:e|al)[:\s-]*(?:within\s*|approx\.?\s*|about\s*)?\d+(?:\s*-\s*\d+)?\s*(?:business\s*)?(?:day|days|hour|hours|week|weeks)\b`)

func hasAmount(text string) bool { return amountPattern.MatchString(text) }
func hasETA(text string) bool    { return etaPattern.MatchString(text) }

// mailQuoteSignal reports whether text reads like a vendor quote: an amount
// and a delivery estimate both present.
func mailQuoteSignal(text string) bool { return hasAmount(text) && hasETA(text) }

// approvalSignal reports whether text contains an approval keyword.
func approvalSignal(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "approve") || strings.Contains(lowered, "approved") || strings.Contains(lowered, "approval")
}

// approvalMarker reports whether text reads like an explicit slack approval
// (a checkmark reaction or an approval keyword), mirroring compute_score's
// slack-event scan.
func approvalMarker(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(text, ":white_check_mark:") || strings.Contains(lowered, "approved")
}

// directTextFields are payload keys whose string value is scanned directly.
var directTextFields = []string{"body_text", "body", "text", "excerpt", "note", "subj", "subject"}

// nestedFields are payload keys whose value is recursed into looking for
// more text, mirroring compute_score's _extract_texts.
var nestedFields = []string{"result", "rows", "items", "messages", "value", "payload"}

// extractTexts walks a call's args/response payload (or any nested
// map/slice within it) and collects every string found under a known text
// field, recursing into known container fields and "headers" dicts.
func extractTexts(payload map[string]any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			for _, field := range directTextFields {
				if s, ok := val[field].(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if headers, ok := val["headers"].(map[string]any); ok {
				for _, hv := range headers {
					if s, ok := hv.(string); ok && s != "" {
						out = append(out, s)
					}
				}
			}
			for _, field := range nestedFields {
				if nested, ok := val[field]; ok {
					walk(nested)
				}
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(payload)
	return out
}
