// internal/enrich/engine.go
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"devfolio/internal/model"
)

const (
	projectMaxTokens = 500
	profileMaxTokens = 200

	maxTags   = 8
	maxSkills = 6

	projectSystemPrompt = "You are an expert software engineer analyzing GitHub projects. Provide accurate, professional assessments."
	profileSystemPrompt = "You are a professional recruiter writing developer summaries. Be concise and highlight key strengths."
)

// ProjectInput is the textual metadata the engine analyzes.
type ProjectInput struct {
	Title           string
	Description     string
	PrimaryLanguage string
	Languages       []model.Language
}

// Engine produces AI-generated enrichment content with deterministic
// fallbacks. It never returns errors to callers: every oracle failure or
// unusable response collapses to a fallback value.
type Engine struct {
	oracle Oracle
	logger *slog.Logger
}

// NewEngine creates an Engine around the given oracle. A nil oracle is
// allowed and means every request takes the fallback path.
func NewEngine(oracle Oracle, logger *slog.Logger) *Engine {
	return &Engine{oracle: oracle, logger: logger}
}

// EnrichProject generates a summary, tags, detected skills, and a complexity
// score for a project. The result is always usable; on any oracle failure the
// deterministic fallback for the project's primary language is returned.
func (e *Engine) EnrichProject(ctx context.Context, in ProjectInput) model.Enrichment {
	if e.oracle == nil {
		return FallbackEnrichment(in.PrimaryLanguage)
	}

	raw, err := e.oracle.Complete(ctx, CompletionRequest{
		System:    projectSystemPrompt,
		User:      projectPrompt(in),
		MaxTokens: projectMaxTokens,
	})
	if err != nil {
		e.logger.Warn("Enrichment oracle call failed, using fallback", "title", in.Title, "error", err)
		return FallbackEnrichment(in.PrimaryLanguage)
	}

	enrichment, outcome := parseEnrichment(raw)
	if outcome != parseOK {
		e.logger.Warn("Enrichment response unusable, using fallback",
			"title", in.Title, "outcome", outcome.String())
		e.logger.Debug("Raw oracle response", "response", raw)
		return FallbackEnrichment(in.PrimaryLanguage)
	}
	return enrichment
}

// SummarizeOwner generates a short professional narrative for an owner from
// their profile and up to five most recent projects. Returns the fallback
// narrative on any oracle failure.
func (e *Engine) SummarizeOwner(ctx context.Context, owner model.Owner, recent []model.Project) string {
	if e.oracle == nil {
		return FallbackOwnerSummary(owner)
	}

	raw, err := e.oracle.Complete(ctx, CompletionRequest{
		System:    profileSystemPrompt,
		User:      profilePrompt(owner, recent),
		MaxTokens: profileMaxTokens,
	})
	if err != nil {
		e.logger.Warn("Profile summary oracle call failed, using fallback", "owner", owner.ID, "error", err)
		return FallbackOwnerSummary(owner)
	}

	summary := strings.TrimSpace(raw)
	if summary == "" {
		return FallbackOwnerSummary(owner)
	}
	return summary
}

// FallbackEnrichment is the deterministic substitute used when the oracle is
// unavailable or returns unusable output. Byte-identical across calls.
func FallbackEnrichment(language string) model.Enrichment {
	subject := language
	if subject == "" {
		subject = "software"
	}

	enrichment := model.Enrichment{
		Summary:         fmt.Sprintf("A %s project demonstrating modern development practices and technical skills.", subject),
		Tags:            []string{},
		Skills:          []string{},
		ComplexityScore: 5,
	}
	if language != "" {
		enrichment.Tags = []string{language}
		enrichment.Skills = []string{language}
	}
	return enrichment
}

// FallbackOwnerSummary is the deterministic substitute for the profile
// narrative, referencing the owner's stated skills.
func FallbackOwnerSummary(owner model.Owner) string {
	return fmt.Sprintf("Experienced %s with expertise in %s and a passion for building innovative solutions.",
		owner.AccountType, strings.Join(firstN(owner.Skills, 3), ", "))
}

func projectPrompt(in ProjectInput) string {
	languages := make([]string, 0, len(in.Languages))
	for _, l := range in.Languages {
		languages = append(languages, fmt.Sprintf("%s (%d%%)", l.Name, l.Percentage))
	}

	return fmt.Sprintf(`Analyze this GitHub project and provide:
1. A concise, professional summary (2-3 sentences)
2. Relevant technology tags (max %d)
3. Skills demonstrated (max %d)
4. Complexity score (1-10)

Project: %s
Description: %s
Language: %s
Languages: %s

Respond in JSON format:
{
  "summary": "...",
  "tags": ["tag1", "tag2", ...],
  "skills": ["skill1", "skill2", ...],
  "complexityScore": 7
}`, maxTags, maxSkills, in.Title, in.Description, in.PrimaryLanguage, strings.Join(languages, ", "))
}

func profilePrompt(owner model.Owner, recent []model.Project) string {
	projectLines := make([]string, 0, 5)
	for _, p := range firstN(recent, 5) {
		projectLines = append(projectLines, fmt.Sprintf("%s: %s (%s)", p.Title, p.Description, p.PrimaryLanguage))
	}

	return fmt.Sprintf(`Create a professional summary for this developer based on their projects:

Name: %s
Type: %s
Skills: %s
Bio: %s

Recent Projects:
%s

Generate a 2-3 sentence professional summary highlighting their expertise and strengths.`,
		owner.Name, owner.AccountType, strings.Join(owner.Skills, ", "), owner.Bio, strings.Join(projectLines, "\n"))
}

// parseOutcome classifies an oracle response. Everything except parseOK
// collapses to the fallback value.
type parseOutcome int

const (
	parseOK parseOutcome = iota
	parseMalformed
	parseMissingField
)

func (o parseOutcome) String() string {
	switch o {
	case parseOK:
		return "ok"
	case parseMalformed:
		return "malformed"
	case parseMissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

func parseEnrichment(raw string) (model.Enrichment, parseOutcome) {
	var parsed struct {
		Summary         string   `json:"summary"`
		Tags            []string `json:"tags"`
		Skills          []string `json:"skills"`
		ComplexityScore *int     `json:"complexityScore"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return model.Enrichment{}, parseMalformed
	}

	if parsed.Summary == "" || parsed.Tags == nil || parsed.Skills == nil || parsed.ComplexityScore == nil {
		return model.Enrichment{}, parseMissingField
	}

	return model.Enrichment{
		Summary:         parsed.Summary,
		Tags:            firstN(parsed.Tags, maxTags),
		Skills:          firstN(parsed.Skills, maxSkills),
		ComplexityScore: clamp(*parsed.ComplexityScore, 1, 10),
	}, parseOK
}

// stripCodeFence unwraps a response the oracle wrapped in a markdown code
// block, a common quirk of JSON-mode completions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func firstN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
