package news

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/marketintel/internal/model"
)

// criticalEventKeywords maps an event tag to the keywords that trigger it
// during the content keyword scan.
var criticalEventKeywords = map[string][]string{
	"earnings_beat":     {"beats estimates", "record profit", "better than expected"},
	"earnings_miss":     {"misses estimates", "falls short", "worse than expected"},
	"guidance_cut":      {"lowers guidance", "cuts forecast", "guidance cut"},
	"guidance_raise":    {"raises guidance", "raises forecast"},
	"merger_acquisition": {"merger", "acquisition", "acquire", "takeover"},
	"regulatory_action":  {"sec investigation", "regulatory action", "fine imposed", "lawsuit"},
	"management_change":  {"ceo resigns", "steps down", "new ceo", "appoints"},
	"credit_rating":       {"downgrade", "upgrade", "credit rating"},
	"dividend":            {"dividend", "buyback", "share repurchase"},
}

// liquidityImpact derives LiquidityImpact from the sentiment label and
// score.
func liquidityImpact(s model.Sentiment) model.LiquidityImpact {
	switch s.Label {
	case model.SentimentPositive:
		if s.Score > confidenceHighCutoff {
			return model.ImpactHighPositive
		}
		return model.ImpactModeratePositive
	case model.SentimentNegative:
		if s.Score > confidenceHighCutoff {
			return model.ImpactHighNegative
		}
		return model.ImpactModerateNegative
	default:
		return model.ImpactNeutral
	}
}

const confidenceHighCutoff = 0.85

// scanCriticalEvents keyword-scans content for known event types.
func scanCriticalEvents(content string) []string {
	lower := strings.ToLower(content)
	var events []string
	for tag, keywords := range criticalEventKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				events = append(events, tag)
				break
			}
		}
	}
	return events
}

// decisionTags derives signal tags from sentiment, impact, events, and
// factor type.
func decisionTags(s model.Sentiment, impact model.LiquidityImpact, events []string, factorType string) []string {
	var tags []string
	switch impact {
	case model.ImpactHighPositive, model.ImpactModeratePositive:
		tags = append(tags, "bullish_"+factorType)
	case model.ImpactHighNegative, model.ImpactModerateNegative:
		tags = append(tags, "bearish_"+factorType)
	}
	for _, e := range events {
		tags = append(tags, "event_"+e)
	}
	if s.Confidence == model.ConfidenceHigh {
		tags = append(tags, "high_confidence")
	}
	return tags
}

// clusterID generates cluster_{company}_{factor}_{day}_{hash(title_prefix)}.
func clusterID(company, factorType string, publishedAt time.Time, title string) string {
	prefix := title
	if len(prefix) > 40 {
		prefix = prefix[:40]
	}
	sum := md5.Sum([]byte(strings.ToLower(prefix)))
	hash := hex.EncodeToString(sum[:])[:10]
	day := publishedAt.Format("2006-01-02")
	return fmt.Sprintf("cluster_%s_%s_%s_%s", company, factorType, day, hash)
}

// articleID derives the stable identity hash of an article's normalized
// URL.
func articleID(normalizedURL string) string {
	sum := md5.Sum([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

func contentQuality(content string) model.ContentQuality {
	switch {
	case len(content) >= 800:
		return model.ContentGood
	case len(content) >= 200:
		return model.ContentFair
	default:
		return model.ContentPoor
	}
}
