package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/efficore/agentcore/pkg/models"
)

// inlineCatalogLimit is how many products fit in the system prompt
// before the catalog is summarized and the search tool takes over.
const inlineCatalogLimit = 15

// learnedRulesLimit caps how many learned rules reach the prompt; only
// the most recent ones apply.
const learnedRulesLimit = 10

var spanishDays = []string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var spanishMonths = []string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// ComposeSystemPrompt assembles the system message from the tenant
// snapshot. Each section is emitted only when its data is present.
func ComposeSystemPrompt(tenant *models.TenantContext, now time.Time) string {
	sections := []func(*models.TenantContext, time.Time) string{
		personaSection,
		customPromptSection,
		catalogSection,
		policiesSection,
		leadSection,
		pendingOrderSection,
		mediaSection,
		learnedRulesSection,
		guidelinesSection,
	}

	var parts []string
	for _, section := range sections {
		if text := section(tenant, now); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func personaSection(t *models.TenantContext, now time.Time) string {
	var b strings.Builder
	objective := "vender los productos del negocio y acompañar al cliente hasta concretar la compra"
	if t.Objective == models.ObjectiveAppointments {
		objective = "agendar citas con los clientes interesados"
	}
	fmt.Fprintf(&b, "Eres el asistente comercial de %s. Atiendes clientes por chat; tu objetivo es %s.\n", t.BusinessName, objective)
	fmt.Fprintf(&b, "FECHA Y HORA ACTUAL: %s", localizedTime(now, t.Timezone))
	if t.ContactName != "" {
		fmt.Fprintf(&b, "\nEstás hablando con %s.", t.ContactName)
	}
	return b.String()
}

func customPromptSection(t *models.TenantContext, _ time.Time) string {
	if t.CustomPrompt == "" {
		return ""
	}
	return "## INSTRUCCIONES DEL NEGOCIO:\n" + t.CustomPrompt
}

func catalogSection(t *models.TenantContext, _ time.Time) string {
	if len(t.Products) == 0 {
		return ""
	}

	currency := t.CurrencySymbol
	if currency == "" {
		currency = "$"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## PRODUCTOS DISPONIBLES (%d productos):\n", len(t.Products))
	limit := len(t.Products)
	if limit > inlineCatalogLimit {
		limit = inlineCatalogLimit
	}
	for _, p := range t.Products[:limit] {
		fmt.Fprintf(&b, "- %s: %s%.2f", p.Name, currency, p.Price)
		if p.Stock != nil {
			fmt.Fprintf(&b, " [Stock: %d]", *p.Stock)
		}
		b.WriteString("\n")
	}
	if len(t.Products) > inlineCatalogLimit {
		fmt.Fprintf(&b, "... y %d productos más. Usa la herramienta search_product para buscar en el catálogo completo.", len(t.Products)-inlineCatalogLimit)
	}
	return strings.TrimRight(b.String(), "\n")
}

func policiesSection(t *models.TenantContext, _ time.Time) string {
	p := t.Policies
	if p.Shipping == "" && p.Refund == "" && p.BrandVoice == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("## POLÍTICAS:")
	if p.Shipping != "" {
		b.WriteString("\n- Envíos: " + p.Shipping)
	}
	if p.Refund != "" {
		b.WriteString("\n- Devoluciones: " + p.Refund)
	}
	if p.BrandVoice != "" {
		b.WriteString("\n- Tono: " + p.BrandVoice)
	}
	return b.String()
}

func leadSection(t *models.TenantContext, _ time.Time) string {
	l := t.Lead
	if l.Stage == "" && len(l.ProductsViewed) == 0 && len(l.Preferences) == 0 && len(l.Objections) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## MEMORIA DEL LEAD:")
	if l.Stage != "" {
		b.WriteString("\n- Etapa actual: " + l.Stage)
	}
	if len(l.ProductsViewed) > 0 {
		b.WriteString("\n- Productos vistos: " + strings.Join(l.ProductsViewed, ", "))
	}
	if len(l.Preferences) > 0 {
		b.WriteString("\n- Preferencias detectadas: " + strings.Join(l.Preferences, ", "))
	}
	if len(l.Objections) > 0 {
		b.WriteString("\n- Objeciones previas: " + strings.Join(l.Objections, ", "))
	}
	return b.String()
}

func pendingOrderSection(t *models.TenantContext, _ time.Time) string {
	if t.PendingOrder == nil {
		return ""
	}
	return fmt.Sprintf("## TRANSACCIÓN PENDIENTE:\nHay una orden en estado %q para este cliente. Tenlo presente antes de ofrecer un nuevo pago.", t.PendingOrder.Status)
}

func mediaSection(t *models.TenantContext, _ time.Time) string {
	if len(t.MediaResources) == 0 {
		return ""
	}
	names := make([]string, 0, len(t.MediaResources))
	for name := range t.MediaResources {
		names = append(names, name)
	}
	sort.Strings(names)
	return "## ARCHIVOS DEL NEGOCIO:\nPuedes enviar estos recursos con la herramienta send_file: " + strings.Join(names, ", ")
}

func learnedRulesSection(t *models.TenantContext, _ time.Time) string {
	if len(t.LearnedRules) == 0 {
		return ""
	}
	rules := t.LearnedRules
	if len(rules) > learnedRulesLimit {
		rules = rules[len(rules)-learnedRulesLimit:]
	}
	var b strings.Builder
	b.WriteString("## REGLAS APRENDIDAS (aplícalas):")
	for _, rule := range rules {
		b.WriteString("\n- " + rule)
	}
	return b.String()
}

func guidelinesSection(_ *models.TenantContext, _ time.Time) string {
	return strings.TrimSpace(`## DIRECTRICES FINALES:
1. Sé profesional pero amigable
2. Sé conciso y directo
3. Si no tienes información, indícalo honestamente
4. Usa emojis de forma moderada
5. Si el cliente pregunta algo fuera de tu conocimiento, responde normalmente sin usar herramientas`)
}

// localizedTime renders the current date and time in Spanish for the
// tenant's timezone, falling back to America/Lima.
func localizedTime(now time.Time, timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc, err = time.LoadLocation("America/Lima")
		if err != nil {
			loc = time.UTC
		}
	}
	local := now.In(loc)
	return fmt.Sprintf("%s %d de %s %d, %02d:%02d",
		spanishDays[local.Weekday()], local.Day(), spanishMonths[local.Month()-1],
		local.Year(), local.Hour(), local.Minute())
}
