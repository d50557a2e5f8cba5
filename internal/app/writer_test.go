package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"foerderscout/internal/model"
)

func writerApplication() *model.Application {
	return &model.Application{
		ProjectTitle:       "KI-Qualitätsprüfung",
		ProjectDescription: "Sichtprüfung mit Deep Learning",
		ProjectGoals:       []string{"Ausschuss senken", "Taktzeit halten"},
		TimelineMonths:     12,
		TotalBudget:        150000,
		RequestedFunding:   100000,
		OwnContribution:    50000,
		BudgetBreakdown:    datatypes.JSON(`{"personal":90000}`),
		Grant:              &model.Grant{Guidelines: "Richtlinie ZIM"},
	}
}

func TestSectionsOrder(t *testing.T) {
	keys := make([]string, 0, 7)
	for _, s := range Sections() {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{
		SectionProjectDescription, SectionMarketAnalysis, SectionTechnicalFeasibility,
		SectionWorkPlan, SectionUtilizationPlan, SectionFinancialPlan, SectionRiskManagement,
	}, keys)

	_, ok := SectionByKey("summary")
	assert.False(t, ok)
}

func TestApplicationWriter_Messages(t *testing.T) {
	w := NewApplicationWriter(&fakeLLM{})
	app := writerApplication()

	spec, _ := SectionByKey(SectionWorkPlan)
	msgs := w.Messages(spec, app)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Fördermittel-Berater")
	assert.Contains(t, msgs[0].Content, "Fokus: Meilensteine, Aufgaben, Timeline")
	assert.True(t, containsAll(msgs[1].Content, "Dauer: 12 Monate", "Meilensteine (M1-M4)", "Richtlinien: Richtlinie ZIM"))

	spec, _ = SectionByKey(SectionFinancialPlan)
	msgs = w.Messages(spec, app)
	assert.True(t, containsAll(msgs[1].Content, "Gesamtbudget: 150.000,00 €", "Eigenanteil: 50.000,00 €", `{"personal":90000}`))

	spec, _ = SectionByKey(SectionProjectDescription)
	msgs = w.Messages(spec, app)
	assert.Contains(t, msgs[1].Content, "Ziele: Ausschuss senken, Taktzeit halten")
}

func TestWorkPlanMilestonesAreBounded(t *testing.T) {
	app := writerApplication()

	app.TimelineMonths = 2
	assert.Contains(t, workPlanPrompt(app, ""), "(M1-M1)")

	app.TimelineMonths = 48
	assert.Contains(t, workPlanPrompt(app, ""), "(M1-M6)")
}

func TestApplicationWriter_Generate(t *testing.T) {
	llm := &fakeLLM{}
	w := NewApplicationWriter(llm)

	out, err := w.Generate(context.Background(), SectionRiskManagement, writerApplication())
	require.NoError(t, err)
	assert.Equal(t, "Generierter Abschnitt.\n\n## Details\n\nWeitere Ausführungen.", out)

	_, err = w.Generate(context.Background(), "unknown", writerApplication())
	assert.ErrorIs(t, err, ErrUnknownSection)
	assert.Equal(t, 1, llm.calls)
}

func TestFormatEuro(t *testing.T) {
	assert.Equal(t, "150.000,00", FormatEuro(150000))
	assert.Equal(t, "999,50", FormatEuro(999.5))
	assert.Equal(t, "1.234.567,89", FormatEuro(1234567.891))
	assert.Equal(t, "-12.000,00", FormatEuro(-12000))
	assert.Equal(t, "0,00", FormatEuro(0))
}
