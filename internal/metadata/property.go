package metadata

// Pivot describes the join table behind a many-to-many property.
// Both sides of a bidirectional relation carry a Pivot; the inverse side swaps the column lists.
type Pivot struct {
	Entity             string   `json:"entity"`
	Table              string   `json:"table"`
	JoinColumns        []string `json:"joinColumns"`
	InverseJoinColumns []string `json:"inverseJoinColumns"`
	FixedOrder         bool     `json:"fixedOrder,omitempty"`
	FixedOrderColumn   string   `json:"fixedOrderColumn,omitempty"`
}

// Property is the resolved descriptor of one declared field or relation.
type Property struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	// Type is the logical type name, resolved to a column type by the platform.
	Type        string   `json:"type,omitempty"`
	ColumnTypes []string `json:"columnTypes,omitempty"`
	FieldNames  []string `json:"fieldNames,omitempty"`

	Nullable bool `json:"nullable,omitempty"`
	Primary  bool `json:"primary,omitempty"`
	Persist  bool `json:"persist"`
	Version  bool `json:"version,omitempty"`

	// Relation bookkeeping.
	Target     string    `json:"target,omitempty"`
	Owner      bool      `json:"owner,omitempty"`
	InversedBy string    `json:"inversedBy,omitempty"`
	MappedBy   string    `json:"mappedBy,omitempty"`
	Cascade    []Cascade `json:"cascade,omitempty"`

	JoinColumns           []string `json:"joinColumns,omitempty"`
	ReferencedColumnNames []string `json:"referencedColumnNames,omitempty"`
	Pivot                 *Pivot   `json:"pivot,omitempty"`

	// CustomType names a platform.Type registered with the resolver.
	CustomType string `json:"customType,omitempty"`

	// Embedding. Object and Array store the embedded value in a single column.
	Object bool    `json:"object,omitempty"`
	Array  bool    `json:"array,omitempty"`
	Prefix *string `json:"prefix,omitempty"`
	// EmbeddedPath is set on flattened properties: the chain of property names from the
	// owner's embedded property down to the original property on the embeddable.
	EmbeddedPath []string `json:"embeddedPath,omitempty"`

	Enum    bool     `json:"enum,omitempty"`
	Items   []string `json:"items,omitempty"`
	Default any      `json:"default,omitempty"`

	Inherited bool `json:"inherited,omitempty"`

	// Order preserves declaration order. Properties merged in later get fractional
	// indices so existing ones never need renumbering.
	Order float64 `json:"order"`
}

// Clone returns a deep copy of the property.
func (p *Property) Clone() *Property {
	c := *p
	c.ColumnTypes = cloneStrings(p.ColumnTypes)
	c.FieldNames = cloneStrings(p.FieldNames)
	c.JoinColumns = cloneStrings(p.JoinColumns)
	c.ReferencedColumnNames = cloneStrings(p.ReferencedColumnNames)
	c.EmbeddedPath = cloneStrings(p.EmbeddedPath)
	c.Items = cloneStrings(p.Items)
	if p.Cascade != nil {
		c.Cascade = append([]Cascade(nil), p.Cascade...)
	}
	if p.Pivot != nil {
		pv := *p.Pivot
		pv.JoinColumns = cloneStrings(p.Pivot.JoinColumns)
		pv.InverseJoinColumns = cloneStrings(p.Pivot.InverseJoinColumns)
		c.Pivot = &pv
	}
	if p.Prefix != nil {
		prefix := *p.Prefix
		c.Prefix = &prefix
	}
	return &c
}

// IsFlattened reports whether the property was synthesized from an embeddable.
func (p *Property) IsFlattened() bool {
	return len(p.EmbeddedPath) > 0
}

// IsInlineEmbed reports whether an embedded property is stored as flattened columns.
func (p *Property) IsInlineEmbed() bool {
	return p.Kind == KindEmbedded && !p.Object && !p.Array
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
