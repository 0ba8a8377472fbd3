package requirements

import "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/proto"

// ProtoCitation converts c to its wire form.
func ProtoCitation(c Citation) proto.Citation {
	return proto.Citation{
		DocumentID:    c.DocumentID,
		DocumentTitle: c.DocumentTitle,
		ChunkID:       c.ChunkID,
		Excerpt:       c.Excerpt,
		Score:         c.Score,
	}
}

// ProtoItems converts the items of l. An empty list gives an empty, non-nil
// slice so clients always see "items": [].
func ProtoItems(l List) []proto.Item {
	out := make([]proto.Item, len(l.Items))
	for i, it := range l.Items {
		cites := make([]proto.Citation, len(it.Citations))
		for j, c := range it.Citations {
			cites[j] = ProtoCitation(c)
		}
		out[i] = proto.Item{
			Position:       it.Position,
			Description:    it.Description,
			Unit:           it.Unit,
			Quantity:       it.Quantity,
			UnableToRefine: it.UnableToRefine,
			Citations:      cites,
		}
	}
	return out
}

func ProtoOptions(options []OptionPath) []proto.Option {
	if len(options) == 0 {
		return nil
	}
	out := make([]proto.Option, len(options))
	for i, o := range options {
		out[i] = proto.Option{
			ID:       o.ID,
			Label:    o.Label,
			Framing:  o.Framing,
			Pros:     append([]string(nil), o.Pros...),
			Cons:     append([]string(nil), o.Cons...),
			Guidance: o.Guidance,
			Notes:    o.Notes,
			Support:  o.Support,
			Items:    ProtoItems(o.List),
		}
	}
	return out
}
