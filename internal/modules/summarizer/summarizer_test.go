package summarizer

import (
	"strings"
	"testing"

	"github.com/aristath/marketintel/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_IncludesCompanyTitleAndContent(t *testing.T) {
	article := model.Article{
		CompanyCode: "ACME",
		Title:       "Acme beats Q4 estimates",
		Content:     "Acme reported record profit this quarter.",
	}

	prompt := buildPrompt(article)

	assert.True(t, strings.Contains(prompt, "ACME"))
	assert.True(t, strings.Contains(prompt, "Acme beats Q4 estimates"))
	assert.True(t, strings.Contains(prompt, "record profit"))
	assert.True(t, strings.Contains(prompt, `"is_relevant"`))
}

func TestBuildPrompt_DemandsStrictJSONShape(t *testing.T) {
	prompt := buildPrompt(model.Article{})

	for _, field := range []string{"is_relevant", "relevance_reason", "summary", "key_points", "financial_metrics", "impact_assessment"} {
		assert.True(t, strings.Contains(prompt, field), "expected prompt to mention %q", field)
	}
}
