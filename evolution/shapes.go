package evolution

// Summary is the aggregated shape of a Record: the predecessor plus
// parallel lists describing each successor.
type Summary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	From      *string  `json:"from"`
	FromID    *string  `json:"id_from"`
	FromLink  *string  `json:"link_from"`
	To        []string `json:"to"`
	ToID      []string `json:"id_to"`
	ToLink    []string `json:"link_to"`
	Method    []string `json:"method_evolution"`
	Level     []*int   `json:"level_to"`
	Item      []string `json:"item_to"`
	ItemLink  []string `json:"item_link_to"`
	OtherLine []Stage  `json:"stages"`
}

// Transition is the flat, one-row-per-successor shape of a Record.
type Transition struct {
	FromSlug string `json:"from_slug"`
	FromID   string `json:"from_id,omitempty"`
	FromName string `json:"from_name"`
	ToSlug   string `json:"to_slug"`
	ToID     string `json:"to_id,omitempty"`
	ToName   string `json:"to_name"`
	ToLink   string `json:"to_link"`
	Method   string `json:"method"`
	Level    *int   `json:"level"`
	Item     string `json:"item,omitempty"`
	ItemLink string `json:"item_link,omitempty"`
}

// Summary derives the aggregated record.
func (r *Record) Summary() Summary {
	s := Summary{
		ID:        r.Self.DisplayID,
		Name:      r.Self.DisplayName,
		To:        make([]string, 0, len(r.Successors)),
		ToID:      make([]string, 0, len(r.Successors)),
		ToLink:    make([]string, 0, len(r.Successors)),
		Method:    make([]string, 0, len(r.Successors)),
		Level:     make([]*int, 0, len(r.Successors)),
		Item:      make([]string, 0, len(r.Successors)),
		ItemLink:  make([]string, 0, len(r.Successors)),
		OtherLine: r.Related,
	}
	if p := r.Predecessor; p != nil {
		name, id, link := p.DisplayName, p.DisplayID, p.Reference
		s.From, s.FromID, s.FromLink = &name, &id, &link
	}
	for _, succ := range r.Successors {
		s.To = append(s.To, succ.To.DisplayName)
		s.ToID = append(s.ToID, succ.To.DisplayID)
		s.ToLink = append(s.ToLink, succ.To.Reference)
		s.Method = append(s.Method, succ.Condition)
		s.Level = append(s.Level, succ.Level)
		s.Item = append(s.Item, succ.Item)
		s.ItemLink = append(s.ItemLink, succ.ItemReference)
	}
	return s
}

// Transitions derives the flat rows, in successor order.
func (r *Record) Transitions() []Transition {
	rows := make([]Transition, 0, len(r.Successors))
	for _, succ := range r.Successors {
		rows = append(rows, Transition{
			FromSlug: r.Self.Identity,
			FromID:   r.Self.DisplayID,
			FromName: r.Self.DisplayName,
			ToSlug:   succ.To.Identity,
			ToID:     succ.To.DisplayID,
			ToName:   succ.To.DisplayName,
			ToLink:   succ.To.Reference,
			Method:   succ.Condition,
			Level:    succ.Level,
			Item:     succ.Item,
			ItemLink: succ.ItemReference,
		})
	}
	return rows
}
