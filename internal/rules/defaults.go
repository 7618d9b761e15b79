package rules

import (
	"github.com/google/uuid"

	"github.com/cleared-dev/tally/internal/model"
)

type seed struct {
	name, pattern, description string
	category                   model.Category
}

var defaultSeeds = []seed{
	// credits
	{"PIX Recebido", "PIX RECEBIDO", "PIX Recebido", model.CategoryIncome},
	{"PIX Crédito", "PIX REC", "PIX Recebido", model.CategoryIncome},
	{"PIX Entrada", "PIX ENTRADA", "PIX Recebido", model.CategoryIncome},
	{"Depósito", "DEPOSITO", "Depósito", model.CategoryIncome},
	{"TED Recebido", "TED RECEBIDO", "TED Recebido", model.CategoryIncome},
	{"Transferência Recebida", "TRANSFERENCIA RECEBIDA", "Transferência Recebida", model.CategoryIncome},
	{"Crédito Bancário", "CREDITO", "Crédito", model.CategoryIncome},
	{"Salário", "SALARIO", "Salário", model.CategoryIncome},
	{"Recebimento", "RECEBIMENTO", "Recebimento", model.CategoryIncome},
	{"Qualquer Crédito", "", "Recebimento", model.CategoryIncome},

	// debits
	{"PIX Enviado", "PIX ENVIADO", "PIX Enviado", model.CategoryExpense},
	{"PIX Débito", "PIX DES", "PIX Enviado", model.CategoryExpense},
	{"Saque ATM", "SAQUE", "Saque", model.CategoryExpense},
	{"Cartão de Crédito", "CARTAO", "Cartão de Crédito", model.CategoryExpense},
	{"Transferência Enviada", "TRANSFERENCIA", "Transferência", model.CategoryExpense},
	{"TED Enviado", "TED", "TED Enviado", model.CategoryExpense},
	{"Débito Automático", "DEB AUTOMATICO", "Débito Automático", model.CategoryExpense},
	{"Tarifa Bancária", "TARIFA", "Tarifa Bancária", model.CategoryExpense},
	{"Pagamento", "PAGAMENTO", "Pagamento", model.CategoryExpense},
	{"Compra Débito", "COMPRA DEBITO", "Compra no Débito", model.CategoryExpense},
	{"Qualquer Débito", "", "Pagamento", model.CategoryExpense},
}

// DefaultRules returns the seed rule set for a new owner: 21 rules, every
// one active, auto-applied and keeping the bank's own description, with a
// catch-all per category.
func DefaultRules(ownerID string) []model.Rule {
	out := make([]model.Rule, len(defaultSeeds))
	for i, s := range defaultSeeds {
		out[i] = model.Rule{
			ID:                     uuid.NewString(),
			OwnerID:                ownerID,
			Name:                   s.name,
			MatchPattern:           s.pattern,
			TargetDescription:      s.description,
			TargetCategory:         s.category,
			AutoApply:              true,
			Active:                 true,
			UseOriginalDescription: true,
		}
	}
	return out
}
