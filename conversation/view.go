package conversation

import "branchchat/model"

// ViewOptions is the session state a view is derived from.
type ViewOptions struct {
	Highlights    []HighlightedSelection
	HistoryTarget string
	Hovered       string
	// RenderHTML also renders every answer to HTML.
	RenderHTML bool
}

// ViewNode is one question/answer pair as the client draws it.
type ViewNode struct {
	User               *model.Message `json:"user,omitempty"`
	Response           *model.Message `json:"response,omitempty"`
	Children           []*ViewNode    `json:"children"`
	Depth              int            `json:"depth"`
	InChain            bool           `json:"inChain"`
	IsHistoryTarget    bool           `json:"isHistoryTarget"`
	Hovered            bool           `json:"hovered"`
	HighlightedContent string         `json:"highlightedContent,omitempty"`
	HTML               string         `json:"html,omitempty"`
	Orphan             bool           `json:"orphan"`
}

type View struct {
	Roots         []*ViewNode `json:"roots"`
	Ambiguities   []Ambiguity `json:"ambiguities"`
	HistoryTarget string      `json:"historyTarget,omitempty"`
	ChainIDs      []string    `json:"chainIds"`
}

// BuildView derives the render view of a tree. It is recomputed from scratch
// on every call and never mutates the tree.
func BuildView(t *Tree, opts ViewOptions) (*View, error) {
	v := &View{
		Roots:         make([]*ViewNode, 0, len(t.Roots)),
		Ambiguities:   t.Ambiguities,
		HistoryTarget: opts.HistoryTarget,
		ChainIDs:      []string{},
	}
	var chain *Chain
	if opts.HistoryTarget != "" {
		chain = ResolveChain(t, opts.HistoryTarget)
		v.ChainIDs = chain.IDs.Slice()
	}

	var convert func(n *Node) (*ViewNode, error)
	convert = func(n *Node) (*ViewNode, error) {
		vn := &ViewNode{
			User:     n.Message,
			Response: n.Response,
			Children: make([]*ViewNode, 0, len(n.Children)),
			Depth:    n.Depth,
			Orphan:   n.Orphan,
		}
		if n.Message != nil && n.Message.MessageID == opts.Hovered {
			vn.Hovered = true
		}
		if r := n.Response; r != nil {
			vn.InChain = chain.Contains(r.MessageID)
			vn.IsHistoryTarget = r.MessageID == opts.HistoryTarget
			if r.MessageID == opts.Hovered {
				vn.Hovered = true
			}
			hs := HighlightsFor(opts.Highlights, r.MessageID)
			vn.HighlightedContent = ApplyHighlights(r.Content, hs)
			if opts.RenderHTML {
				html, err := RenderHTML(r.Content, hs)
				if err != nil {
					return nil, err
				}
				vn.HTML = html
			}
		}
		for _, c := range n.Children {
			cv, err := convert(c)
			if err != nil {
				return nil, err
			}
			vn.Children = append(vn.Children, cv)
		}
		return vn, nil
	}

	for _, root := range t.Roots {
		rv, err := convert(root)
		if err != nil {
			return nil, err
		}
		v.Roots = append(v.Roots, rv)
	}
	return v, nil
}
