package report

import (
	"fmt"
	"strings"
	"time"
)

// Transform turns fetched data into the text delivered to the sink. It must
// be pure: no I/O, no side effects. The timestamp is the dispatch instant so
// headers reflect when the report ran, not when it was formatted.
type Transform func(t Table, now time.Time) (string, error)

const noRecordsLine = "_Sem registros para o dia atual._"

// header renders the shared report header with the local timestamp.
func header(title string, now time.Time, loc *time.Location) string {
	local := now.In(loc)
	return fmt.Sprintf("*%s*\n📅 %s (%s)\n\n",
		title,
		local.Format("02/01/2006 15:04"),
		loc.String())
}

// PipelineSteps builds the transform for the pipeline-monitoring reports:
// one line per operation step with contract count and gross value.
// Expected columns: last_steptype, qtd, sum_gross.
func PipelineSteps(label string, loc *time.Location) Transform {
	return func(t Table, now time.Time) (string, error) {
		head := header("Monitoramento de Esteiras — "+label, now, loc)

		if t.Empty() {
			return head + noRecordsLine, nil
		}

		lines := make([]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			gross, _ := row.Float("sum_gross")
			lines = append(lines, fmt.Sprintf("• `%s` — %d contratos — %s",
				row.String("last_steptype"),
				row.Int("qtd"),
				FormatBRL(gross)))
		}

		return head + strings.Join(lines, "\n"), nil
	}
}

// DailySummary builds the transform for the twice-daily summary: one block
// per product with paid counts, values and day/month utilization rates.
// Expected columns: produto, quantidade, grossvalue, valor_de_deposito,
// saldos_pagos, perc_aproveitamento_dia, perc_aproveitamento_mes.
func DailySummary(loc *time.Location) Transform {
	return func(t Table, now time.Time) (string, error) {
		head := header("Resumo Diário Privado — Consignado Privado", now, loc)

		if t.Empty() {
			return head + noRecordsLine, nil
		}

		blocks := make([]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			produto := strings.ToUpper(row.String("produto"))
			gross, _ := row.Float("grossvalue")

			lines := []string{
				fmt.Sprintf("*%s*", produto),
				fmt.Sprintf("  • Quantidade: *%d*", row.Int("quantidade")),
				fmt.Sprintf("  • Grossvalue: %s", FormatBRL(gross)),
			}

			if produto == "REFIN" {
				lines = append(lines, fmt.Sprintf("  • Valor Depósito: %s",
					optionalBRL(row, "valor_de_deposito")))
			}
			if produto == "PORTABILITY" {
				lines = append(lines, fmt.Sprintf("  • Saldos Pagos: %s",
					optionalBRL(row, "saldos_pagos")))
			}

			lines = append(lines,
				fmt.Sprintf("  • Aproveitamento (dia): %s", optionalPercent(row, "perc_aproveitamento_dia")),
				fmt.Sprintf("  • Aproveitamento (mês): %s", optionalPercent(row, "perc_aproveitamento_mes")))

			blocks = append(blocks, strings.Join(lines, "\n"))
		}

		return head + strings.Join(blocks, "\n\n"), nil
	}
}

// ChartSummary builds the transform for Superset chart monitoring: a record
// count for the chart, or an explicit warning when the chart returned nothing.
func ChartSummary(chartID int) Transform {
	return func(t Table, now time.Time) (string, error) {
		if t.Empty() {
			return fmt.Sprintf("⚠ Nenhum dado retornado pelo chart %d.", chartID), nil
		}

		return fmt.Sprintf(
			"*Monitoramento automático via Superset*\n"+
				"- Chart ID: `%d`\n"+
				"- Total de registros retornados: *%d*",
			chartID, len(t.Rows)), nil
	}
}

func optionalBRL(row Row, col string) string {
	v, ok := row.Float(col)
	if !ok {
		return "-"
	}
	return FormatBRL(v)
}

func optionalPercent(row Row, col string) string {
	v, ok := row.Float(col)
	if !ok {
		return "-"
	}
	return FormatPercent(&v)
}
