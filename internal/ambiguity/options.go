package ambiguity

import "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"

// OptionsMessage accompanies an ambiguous decision.
const OptionsMessage = "Identifiquei que sua necessidade pode ser atendida por diferentes caminhos. " +
	"Analise as opções abaixo e escolha a mais adequada ao seu contexto:"

type optionText struct {
	label    string
	pros     []string
	cons     []string
	notes    string
	guidance map[string]string
}

var optionTexts = map[string]optionText{
	FramingCompra: {
		label: "Compra (Aquisição)",
		pros: []string{
			"Bem incorporado ao patrimônio público",
			"Controle total sobre o bem",
			"Sem custos recorrentes após aquisição",
			"Possibilidade de revenda ou remanejamento",
		},
		cons: []string{
			"Investimento inicial alto",
			"Responsabilidade por manutenção e depreciação",
			"Risco de obsolescência (especialmente tecnologia)",
			"Necessidade de espaço para armazenamento",
		},
		notes: "Recomendado quando há previsão de uso prolongado (5+ anos) e recursos disponíveis para investimento inicial.",
		guidance: map[string]string{
			ObjectVeiculo:       "Uso intensivo (mais de 3 anos), necessidade de personalização ou adaptação, frota própria estabelecida.",
			ObjectEquipamentoTI: "Equipamentos de uso contínuo, necessidade de customização, ciclo de vida longo (5+ anos).",
			ObjectSoftware:      "Licenças perpétuas quando há certeza de uso prolongado e estabilidade da solução.",
			ObjectMobiliario:    "Necessidade permanente, especificações customizadas, durabilidade esperada de 10+ anos.",
			ObjectEquipamento:   "Uso frequente, necessidade de controle total, especificações técnicas específicas.",
			ObjectGenerico:      "Uso prolongado previsto, necessidade de controle total, recursos disponíveis para investimento.",
		},
	},
	FramingLocacao: {
		label: "Locação (Aluguel)",
		pros: []string{
			"Sem investimento inicial alto",
			"Flexibilidade para ajustar quantidade conforme demanda",
			"Manutenção geralmente incluída no contrato",
			"Facilita atualização tecnológica",
		},
		cons: []string{
			"Custo recorrente mensal/anual",
			"Não incorpora ao patrimônio",
			"Dependência do fornecedor",
			"Custo total pode superar compra no longo prazo",
		},
		notes: "Recomendado quando há incerteza sobre demanda futura, necessidade temporária ou orçamento limitado para investimento.",
		guidance: map[string]string{
			ObjectVeiculo:       "Necessidade temporária, demanda sazonal, manutenção terceirizada desejada, renovação frequente da frota.",
			ObjectEquipamentoTI: "Tecnologia que evolui rapidamente, projeto com prazo definido, teste antes de aquisição.",
			ObjectSoftware:      "Modelo SaaS/assinatura, atualizações frequentes necessárias, escalabilidade de licenças.",
			ObjectMobiliario:    "Evento temporário, escritório provisório, necessidade de curto prazo (menos de 2 anos).",
			ObjectEquipamento:   "Projeto específico com prazo definido, demanda sazonal, teste de viabilidade.",
			ObjectGenerico:      "Necessidade temporária, incerteza sobre demanda futura, orçamento limitado para investimento.",
		},
	},
	FramingComodato: {
		label: "Comodato (Cessão Gratuita)",
		pros: []string{
			"Sem custo de aquisição ou locação",
			"Fornecedor pode incluir manutenção",
			"Flexibilidade para devolução",
		},
		cons: []string{
			"Dependência total do fornecedor",
			"Geralmente vinculado a consumo de insumos",
			"Controle limitado sobre o bem",
			"Disponibilidade pode ser restrita",
		},
		notes: "Avaliar custo total incluindo insumos obrigatórios. Pode ser vantajoso para equipamentos de baixo valor com alto consumo de insumos.",
		guidance: map[string]string{
			ObjectGenerico: "Quando há fornecedor disposto a ceder equipamento gratuitamente (comum em impressoras, máquinas de café, dispensers) em troca de contrato de fornecimento de insumos.",
		},
	},
	FramingServico: {
		label: "Contratação de Serviço",
		pros: []string{
			"Resultado contratado por nível de serviço",
			"Gestão, manutenção e reposição a cargo da contratada",
			"Dispensa equipe própria especializada",
		},
		cons: []string{
			"Exige fiscalização contínua do contrato",
			"Custo recorrente durante toda a vigência",
			"Nenhum bem é incorporado ao patrimônio",
		},
		notes: "Recomendado quando o interesse é no resultado entregue e não na posse do bem.",
		guidance: map[string]string{
			ObjectVeiculo:       "Transporte sob demanda ou com motorista, sem interesse em gerir frota.",
			ObjectEquipamentoTI: "Outsourcing com suporte, reposição e atualização incluídos no preço por uso.",
			ObjectSoftware:      "Solução operada pelo fornecedor, com suporte e sustentação contratados.",
			ObjectGenerico:      "Quando o que importa é a entrega de um resultado mensurável, medido por níveis de serviço.",
		},
	},
}

// comodatoApplies reports whether a free loan is a realistic path for the
// object: it is common only for equipment tied to consumables.
func comodatoApplies(objectType string) bool {
	return objectType == ObjectEquipamentoTI || objectType == ObjectEquipamento
}

func optionPath(framing, objectType string, support float64, list requirements.List) requirements.OptionPath {
	text := optionTexts[framing]
	guidance, ok := text.guidance[objectType]
	if !ok {
		guidance = text.guidance[ObjectGenerico]
	}
	return requirements.OptionPath{
		ID:       "opt_" + framing,
		Label:    text.label,
		Framing:  framing,
		Pros:     append([]string(nil), text.pros...),
		Cons:     append([]string(nil), text.cons...),
		Guidance: guidance,
		Notes:    text.notes,
		Support:  support,
		List:     list,
	}
}
