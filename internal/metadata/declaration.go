package metadata

// Document is the top-level shape of a declaration file.
type Document struct {
	Namespace string              `mapstructure:"namespace"`
	Entities  []EntityDeclaration `mapstructure:"entities"`
}

// EntityDeclaration is the raw, unresolved description of one entity.
type EntityDeclaration struct {
	Name       string `mapstructure:"name"`
	Table      string `mapstructure:"table"`
	Extends    string `mapstructure:"extends"`
	Abstract   bool   `mapstructure:"abstract"`
	Embeddable bool   `mapstructure:"embeddable"`
	Virtual    bool   `mapstructure:"virtual"`

	// Inheritance is "sti" on the root of a single-table hierarchy. Children extending
	// an STI root inherit the mode.
	Inheritance         string            `mapstructure:"inheritance"`
	DiscriminatorColumn string            `mapstructure:"discriminator_column"`
	DiscriminatorValue  string            `mapstructure:"discriminator_value"`
	DiscriminatorMap    map[string]string `mapstructure:"discriminator_map"`

	Properties []PropertyDeclaration `mapstructure:"properties"`
	Hooks      map[string][]string   `mapstructure:"hooks"`
	Indexes    []IndexDeclaration    `mapstructure:"indexes"`
	Uniques    []IndexDeclaration    `mapstructure:"uniques"`
}

// IndexDeclaration names an index or unique constraint over properties.
type IndexDeclaration struct {
	Name       string   `mapstructure:"name"`
	Properties []string `mapstructure:"properties"`
}

// PropertyDeclaration is the raw description of one property.
type PropertyDeclaration struct {
	Name     string `mapstructure:"name"`
	Kind     string `mapstructure:"kind"`
	Type     string `mapstructure:"type"`
	Target   string `mapstructure:"target"`
	Nullable bool   `mapstructure:"nullable"`
	Primary  bool   `mapstructure:"primary"`
	// Persist defaults to true when omitted.
	Persist *bool `mapstructure:"persist"`
	Version bool  `mapstructure:"version"`

	InversedBy string   `mapstructure:"inversed_by"`
	MappedBy   string   `mapstructure:"mapped_by"`
	Owner      bool     `mapstructure:"owner"`
	Cascade    []string `mapstructure:"cascade"`

	FieldName             string   `mapstructure:"field_name"`
	JoinColumns           []string `mapstructure:"join_columns"`
	ReferencedColumnNames []string `mapstructure:"referenced_column_names"`

	PivotTable       string   `mapstructure:"pivot_table"`
	PivotEntity      string   `mapstructure:"pivot_entity"`
	PivotJoinColumns []string `mapstructure:"pivot_join_columns"`
	PivotInverseJoin []string `mapstructure:"pivot_inverse_join_columns"`
	FixedOrder       bool     `mapstructure:"fixed_order"`
	FixedOrderColumn string   `mapstructure:"fixed_order_column"`

	CustomType string  `mapstructure:"custom_type"`
	Object     bool    `mapstructure:"object"`
	Array      bool    `mapstructure:"array"`
	Prefix     *string `mapstructure:"prefix"`

	Enum    bool     `mapstructure:"enum"`
	Items   []string `mapstructure:"items"`
	Default any      `mapstructure:"default"`
}
