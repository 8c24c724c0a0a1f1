package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/efficore/agentcore/pkg/models"
)

func promptTime() time.Time {
	return time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
}

func TestComposeSystemPromptOmitsEmptySections(t *testing.T) {
	tenant := &models.TenantContext{BusinessName: "Motos del Sur"}
	prompt := ComposeSystemPrompt(tenant, promptTime())

	if !strings.Contains(prompt, "Motos del Sur") {
		t.Error("prompt missing business name")
	}
	for _, header := range []string{"PRODUCTOS DISPONIBLES", "POLÍTICAS", "MEMORIA DEL LEAD", "REGLAS APRENDIDAS", "TRANSACCIÓN PENDIENTE", "ARCHIVOS DEL NEGOCIO", "INSTRUCCIONES DEL NEGOCIO"} {
		if strings.Contains(prompt, header) {
			t.Errorf("prompt contains %q section with no data", header)
		}
	}
}

func TestComposeSystemPromptInlinesSmallCatalog(t *testing.T) {
	tenant := &models.TenantContext{
		BusinessName:   "Motos del Sur",
		CurrencySymbol: "S/",
		Products: []models.Product{
			{Name: "Moto GT 250", Price: 3500},
			{Name: "Casco Integral", Price: 120},
		},
	}
	prompt := ComposeSystemPrompt(tenant, promptTime())

	if !strings.Contains(prompt, "Moto GT 250: S/3500.00") {
		t.Errorf("prompt missing inline product line:\n%s", prompt)
	}
	if strings.Contains(prompt, "search_product") {
		t.Error("small catalog should not point at the search tool")
	}
}

func TestComposeSystemPromptSummarizesLargeCatalog(t *testing.T) {
	tenant := &models.TenantContext{BusinessName: "Motos del Sur"}
	for i := 0; i < inlineCatalogLimit+5; i++ {
		tenant.Products = append(tenant.Products, models.Product{Name: "Producto", Price: 10})
	}
	prompt := ComposeSystemPrompt(tenant, promptTime())

	if !strings.Contains(prompt, "y 5 productos más") {
		t.Errorf("prompt missing overflow summary:\n%s", prompt)
	}
	if !strings.Contains(prompt, "search_product") {
		t.Error("large catalog must point at the search tool")
	}
}

func TestComposeSystemPromptLeadAndPendingOrder(t *testing.T) {
	tenant := &models.TenantContext{
		BusinessName: "Motos del Sur",
		Lead: models.LeadMemory{
			Stage:       "negociación",
			Preferences: []string{"color rojo"},
		},
		PendingOrder: &models.PendingOrder{OrderID: "o1", Status: "awaiting_payment_proof"},
	}
	prompt := ComposeSystemPrompt(tenant, promptTime())

	if !strings.Contains(prompt, "Etapa actual: negociación") {
		t.Error("prompt missing lead stage")
	}
	if !strings.Contains(prompt, "awaiting_payment_proof") {
		t.Error("prompt missing pending order status")
	}
}

func TestComposeSystemPromptCapsLearnedRules(t *testing.T) {
	tenant := &models.TenantContext{BusinessName: "Motos del Sur"}
	for i := 0; i < learnedRulesLimit+3; i++ {
		tenant.LearnedRules = append(tenant.LearnedRules, strings.Repeat("r", i+1))
	}
	prompt := ComposeSystemPrompt(tenant, promptTime())

	if strings.Contains(prompt, "\n- r\n") {
		t.Error("oldest rule should have been dropped by the cap")
	}
	if !strings.Contains(prompt, strings.Repeat("r", learnedRulesLimit+3)) {
		t.Error("newest rule missing from prompt")
	}
}

func TestLocalizedTimeFallsBackOnBadTimezone(t *testing.T) {
	got := localizedTime(promptTime(), "Not/AZone")
	if got == "" {
		t.Fatal("empty localized time")
	}
	if !strings.Contains(got, "2026") {
		t.Errorf("localized time = %q, want the year present", got)
	}
}
