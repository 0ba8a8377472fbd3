package ambiguity

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

// Acquisition framings, in the fixed order every decision iterates them.
const (
	FramingCompra   = "compra"
	FramingLocacao  = "locacao"
	FramingComodato = "comodato"
	FramingServico  = "servico"
)

var framingOrder = []string{FramingCompra, FramingLocacao, FramingComodato, FramingServico}

var framingKeywords = map[string][]string{
	FramingCompra: {
		"comprar", "compra", "aquisição", "adquirir", "propriedade",
		"patrimônio", "incorporar ao patrimônio", "posse definitiva",
	},
	FramingLocacao: {
		"alugar", "aluguel", "locação", "locar", "arrendar", "arrendamento",
		"leasing", "frota", "temporário", "período determinado",
	},
	FramingComodato: {
		"comodato", "empréstimo", "cessão gratuita", "sem custo",
		"fornecedor cede", "disponibilização gratuita",
	},
	FramingServico: {
		"serviço", "prestação de serviço", "contratação de empresa",
		"terceirização", "mão de obra", "outsourcing",
	},
}

// Object types drive the guidance attached to each option.
const (
	ObjectVeiculo       = "veiculo"
	ObjectEquipamentoTI = "equipamento_ti"
	ObjectSoftware      = "software"
	ObjectMobiliario    = "mobiliario"
	ObjectEquipamento   = "equipamento"
	ObjectGenerico      = "generico"
)

var objectOrder = []string{ObjectVeiculo, ObjectEquipamentoTI, ObjectSoftware, ObjectMobiliario, ObjectEquipamento}

var objectKeywords = map[string][]string{
	ObjectVeiculo:       {"veículo", "carro", "caminhão", "van", "ônibus", "moto", "automóvel"},
	ObjectEquipamentoTI: {"computador", "notebook", "servidor", "impressora", "scanner", "desktop"},
	ObjectSoftware:      {"software", "sistema", "licença", "aplicativo"},
	ObjectMobiliario:    {"mesa", "cadeira", "armário", "estante", "mobília", "mobiliário"},
	ObjectEquipamento:   {"máquina", "equipamento", "ferramenta"},
}

// matcher holds keywords reduced to the same stemmed, folded form as the
// text they are matched against, so "Locações" matches "locação".
type matcher map[string][]string

func newMatcher(src map[string][]string) matcher {
	m := make(matcher, len(src))
	for key, kws := range src {
		for _, kw := range kws {
			m[key] = append(m[key], " "+stemmed(kw)+" ")
		}
	}
	return m
}

func stemmed(text string) string {
	words := tokenizer.Words(text)
	for i, w := range words {
		words[i] = tokenizer.Stem(w)
	}
	return strings.Join(words, " ")
}

// hits counts, per key, how many of its keywords occur in text. Each
// keyword counts once.
func (m matcher) hits(text string) map[string]int {
	padded := " " + stemmed(text) + " "
	out := make(map[string]int, len(m))
	for key, kws := range m {
		for _, kw := range kws {
			if strings.Contains(padded, kw) {
				out[key]++
			}
		}
	}
	return out
}

// strictMax returns the key in order with the most hits, or "" when there
// are no hits or the top count is shared.
func strictMax(order []string, hits map[string]int) string {
	best, bestCount, tied := "", 0, false
	for _, key := range order {
		switch n := hits[key]; {
		case n > bestCount:
			best, bestCount, tied = key, n, false
		case n == bestCount && n > 0:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}

var (
	framingMatcher = newMatcher(framingKeywords)
	objectMatcher  = newMatcher(objectKeywords)
)

// DetectFraming returns the framing a text names unambiguously, or "".
func DetectFraming(text string) string {
	return strictMax(framingOrder, framingMatcher.hits(text))
}

// DetectObjectType classifies what is being procured. The first type in
// priority order with any hit wins.
func DetectObjectType(text string) string {
	hits := objectMatcher.hits(text)
	for _, obj := range objectOrder {
		if hits[obj] > 0 {
			return obj
		}
	}
	return ObjectGenerico
}
