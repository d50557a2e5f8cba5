package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"foerderscout/internal/ai"
	"foerderscout/internal/model"
)

const (
	SectionProjectDescription   = "project_description"
	SectionMarketAnalysis       = "market_analysis"
	SectionTechnicalFeasibility = "technical_feasibility"
	SectionWorkPlan             = "work_plan"
	SectionUtilizationPlan      = "utilization_plan"
	SectionFinancialPlan        = "financial_plan"
	SectionRiskManagement       = "risk_management"
)

// SectionSpec describes one generated part of an application.
type SectionSpec struct {
	Key   string
	Title string
	Focus string
	build func(app *model.Application, guidelines string) string
}

var sectionSpecs = []SectionSpec{
	{Key: SectionProjectDescription, Title: "Projektbeschreibung", Focus: "Problemstellung, Innovation, Alleinstellungsmerkmal", build: projectDescriptionPrompt},
	{Key: SectionMarketAnalysis, Title: "Marktanalyse", Focus: "TAM/SAM/SOM, Wettbewerb, Marktpotenzial", build: marketAnalysisPrompt},
	{Key: SectionTechnicalFeasibility, Title: "Technische Machbarkeit", Focus: "Technologie, Architektur, Risiken", build: technicalFeasibilityPrompt},
	{Key: SectionWorkPlan, Title: "Arbeitsplan", Focus: "Meilensteine, Aufgaben, Timeline", build: workPlanPrompt},
	{Key: SectionUtilizationPlan, Title: "Verwertungsplan", Focus: "Verwertung, Go-to-Market, Skalierung", build: utilizationPlanPrompt},
	{Key: SectionFinancialPlan, Title: "Finanzplan", Focus: "Kosten, Finanzierung, Break-Even", build: financialPlanPrompt},
	{Key: SectionRiskManagement, Title: "Risikomanagement", Focus: "Risiken identifizieren und mitigieren", build: riskManagementPrompt},
}

const baseSystemPrompt = `Du bist ein erfahrener Fördermittel-Berater mit 20 Jahren Erfahrung.
Deine Aufgabe: Schreibe überzeugende, professionelle Antragsabschnitte.

Wichtig:
- Wissenschaftlich und sachlich (keine Marketing-Sprache!)
- Konkrete Zahlen und Fakten
- Betone Innovation und technisches Risiko
- Referenziere relevante Studien/Technologien
- Deutsche Sprache, professionell
`

// Sections returns the section specs in document order.
func Sections() []SectionSpec {
	out := make([]SectionSpec, len(sectionSpecs))
	copy(out, sectionSpecs)
	return out
}

func SectionByKey(key string) (SectionSpec, bool) {
	for _, s := range sectionSpecs {
		if s.Key == key {
			return s, true
		}
	}
	return SectionSpec{}, false
}

type ApplicationWriter struct {
	llm LLM
}

func NewApplicationWriter(llm LLM) *ApplicationWriter {
	return &ApplicationWriter{llm: llm}
}

// Messages builds the system and user prompt for one section.
func (w *ApplicationWriter) Messages(spec SectionSpec, app *model.Application) []ai.ChatMessage {
	guidelines := ""
	if app.Grant != nil {
		guidelines = app.Grant.Guidelines
	}
	return []ai.ChatMessage{
		{Role: "system", Content: baseSystemPrompt + "\nFokus: " + spec.Focus},
		{Role: "user", Content: spec.build(app, guidelines)},
	}
}

func (w *ApplicationWriter) Generate(ctx context.Context, key string, app *model.Application) (string, error) {
	spec, ok := SectionByKey(key)
	if !ok {
		return "", ErrUnknownSection
	}
	out, err := w.llm.Complete(ctx, w.Messages(spec, app), ai.CompletionOptions{})
	if err != nil {
		return "", fmt.Errorf("generate section %s failed: %w", key, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generate section %s failed: empty completion", key)
	}
	return out, nil
}

func (w *ApplicationWriter) Model() string {
	return w.llm.Model()
}

func projectDescriptionPrompt(app *model.Application, guidelines string) string {
	return fmt.Sprintf(`Schreibe die Projektbeschreibung für folgendes Projekt:

Titel: %s
Beschreibung: %s
Innovation: %s
Technologie: %s
Ziele: %s

Struktur:
1. Ausgangssituation & Problemstellung (1 Seite)
2. Projektziel & angestrebte Lösung (1,5 Seiten)
3. Innovation & Alleinstellungsmerkmal (1,5 Seiten)
4. Nutzen für Zielgruppe & Marktpotenzial (1 Seite)

Richtlinien: %s
`, orUnknown(app.ProjectTitle), app.ProjectDescription, app.ProjectInnovation, app.ProjectTechnology,
		strings.Join(app.ProjectGoals, ", "), guidelines)
}

func marketAnalysisPrompt(app *model.Application, guidelines string) string {
	return fmt.Sprintf(`Erstelle eine Marktanalyse für folgendes Projekt:

Projekt: %s
Beschreibung: %s
Zielgruppe: %s
Markt: %s

Struktur:
1. TAM/SAM/SOM-Analyse (Total/Serviceable/Obtainable Market)
2. Wettbewerber-Analyse
3. Marktpotenzial und Trends
4. Marktposition nach Projekt

Richtlinien: %s
`, orUnknown(app.ProjectTitle), app.ProjectDescription, app.TargetAudience, app.MarketAnalysis, guidelines)
}

func technicalFeasibilityPrompt(app *model.Application, guidelines string) string {
	return fmt.Sprintf(`Erstelle eine technische Machbarkeitsanalyse:

Projekt: %s
Technologie: %s
Innovation: %s

Struktur:
1. Technologie-Stack und Architektur
2. Entwicklungs-Roadmap
3. Technische Risiken und Mitigation
4. Innovationsgrad (wichtig!)

Richtlinien: %s
`, app.ProjectTitle, app.ProjectTechnology, app.ProjectInnovation, guidelines)
}

func workPlanPrompt(app *model.Application, guidelines string) string {
	milestones := app.TimelineMonths / 3
	if milestones > 6 {
		milestones = 6
	}
	if milestones < 1 {
		milestones = 1
	}
	return fmt.Sprintf(`Erstelle einen detaillierten Arbeitsplan:

Projekt: %s
Dauer: %d Monate
Beschreibung: %s

Struktur:
1. Meilensteine (M1-M%d)
2. Aufgaben pro Meilenstein
3. Ressourcenplanung
4. Gantt-Chart (textbasiert)

Richtlinien: %s
`, app.ProjectTitle, app.TimelineMonths, app.ProjectDescription, milestones, guidelines)
}

func financialPlanPrompt(app *model.Application, guidelines string) string {
	breakdown := "{}"
	if len(app.BudgetBreakdown) > 0 {
		breakdown = string(app.BudgetBreakdown)
	}
	return fmt.Sprintf(`Erstelle einen Finanzplan:

Gesamtbudget: %s €
Fördersumme: %s €
Eigenanteil: %s €
Budget-Breakdown: %s

Struktur:
1. Kostenplan (detailliert)
2. Finanzierungsplan
3. Break-Even-Analyse
4. Liquiditäts-Planung

Richtlinien: %s
`, FormatEuro(app.TotalBudget), FormatEuro(app.RequestedFunding), FormatEuro(app.OwnContribution), breakdown, guidelines)
}

func riskManagementPrompt(app *model.Application, guidelines string) string {
	return fmt.Sprintf(`Erstelle ein Risikomanagement:

Projekt: %s
Technologie: %s
Markt: %s

Struktur:
1. Technische Risiken und Mitigation
2. Marktrisiken und Mitigation
3. Finanzielle Risiken und Mitigation
4. Ressourcen-Risiken und Mitigation

Richtlinien: %s
`, app.ProjectTitle, app.ProjectTechnology, app.MarketAnalysis, guidelines)
}

func utilizationPlanPrompt(app *model.Application, guidelines string) string {
	return fmt.Sprintf(`Erstelle einen Verwertungsplan:

Projekt: %s
Beschreibung: %s
Business-Model: %s
Zielgruppe: %s

Struktur:
1. Go-to-Market-Strategie
2. Pricing und Erlösmodell
3. Skalierungs-Plan
4. Langfristige Vision

Richtlinien: %s
`, app.ProjectTitle, app.ProjectDescription, app.BusinessModel, app.TargetAudience, guidelines)
}

// FormatEuro renders v in German notation with two decimals, e.g. 150.000,00.
func FormatEuro(v float64) string {
	neg := v < 0
	cents := int64(math.Round(math.Abs(v) * 100))
	intPart := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s,%02d", b.String(), cents%100)
	if neg {
		return "-" + out
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unbekannt"
	}
	return s
}
