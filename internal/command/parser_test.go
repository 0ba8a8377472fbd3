package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		size      int
		want      Command
	}{
		{"remove list", "remova 2 e 4", 5, Remove{Positions: []int{2, 4}}},
		{"remove range", "apaga do 2 ao 4", 5, RemoveRange{Start: 2, End: 4}},
		{"keep only", "mantém apenas 1 e 3", 5, KeepOnly{Positions: []int{1, 3}}},
		{"confirm", "confirmo", 5, Confirm{}},
		{"accents and case", "MANTÉM SÓ 1, 3 e 5", 5, KeepOnly{Positions: []int{1, 3, 5}}},
		{"keep qualifier alone", "somente o 2", 3, KeepOnly{Positions: []int{2}}},
		{"replace", "substitua o item 3", 4, Replace{Positions: []int{3}}},
		{"replace range expands", "troque os itens de 1 a 3", 4, Replace{Positions: []int{1, 2, 3}}},
		{"keep range expands", "deixa 2-4", 5, KeepOnly{Positions: []int{2, 3, 4}}},
		{"dash range", "exclua 2-3", 5, RemoveRange{Start: 2, End: 3}},
		{"between range", "remova entre 1 e 3", 5, RemoveRange{Start: 1, End: 3}},
		{"until range", "tira do item 2 até o item 5", 5, RemoveRange{Start: 2, End: 5}},
		{"item noun in range", "remova do item 1 ao item 3", 5, RemoveRange{Start: 1, End: 3}},
		{"item noun between", "apague entre o item 2 e o item 4", 5, RemoveRange{Start: 2, End: 4}},
		{"item noun keep range", "mantenha do item 2 ao item 4", 5, KeepOnly{Positions: []int{2, 3, 4}}},
		{"spaced list with commas", "remova 1, 3", 5, Remove{Positions: []int{1, 3}}},
		{"reversed range", "apaga do 4 ao 2", 5, RemoveRange{Start: 2, End: 4}},
		{"range plus single", "remova 1 a 2 e 5", 5, Remove{Positions: []int{1, 2, 5}}},
		{"duplicates collapse", "remova 3, 1 e 3", 5, Remove{Positions: []int{1, 3}}},
		{"single position range", "remova do 2 ao 2", 5, Remove{Positions: []int{2}}},
		{"verb beats confirm", "ok, remova 2", 5, Remove{Positions: []int{2}}},
		{"confirm phrase", "pode seguir", 5, Confirm{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.utterance, tt.size))
		})
	}
}

func TestParse_Unrecognized(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		size      int
	}{
		{"no intent", "faça algo estranho", 5},
		{"empty", "", 5},
		{"no positions", "remova", 5},
		{"out of range", "remova 7", 5},
		{"zero", "remova 0", 5},
		{"range past end", "apaga do 2 ao 9", 5},
		{"empty list", "remova 1", 0},
		{"negated", "não confirmo", 5},
		{"number words", "remova o dois", 5},
		{"last item in words", "remova o 2 e o último", 5},
		{"number word beside digit", "tire o item dois e o 4", 5},
		{"ordinal with count", "remova os 2 primeiros", 5},
		{"remove and keep", "remova 2 e mantenha o 4", 5},
		{"replace and remove", "troque o 1 e apague o 3", 5},
		{"decimal point", "remova 2.5", 5},
		{"decimal comma", "remova 2,5", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.utterance, tt.size)
			assert.Equal(t, KindUnrecognized, cmd.Kind(), "got %s", cmd)
			assert.NotEmpty(t, cmd.(Unrecognized).Reason)
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, Parse("mantém 3, 1 e 2", 3), KeepOnly{Positions: []int{1, 2, 3}})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindRemoveRange, RemoveRange{Start: 1, End: 2}.Kind())
	assert.Equal(t, "RemoveRange(1,2)", RemoveRange{Start: 1, End: 2}.String())
	assert.Equal(t, "Remove([2 4])", Remove{Positions: []int{2, 4}}.String())
}
