package remote

// TableSchema describes a remote table. Values returned by DescribeTable are
// shared with the cache and must be treated as read-only.
type TableSchema struct {
	Name    string
	Version int64
	Fields  []Field
	NumRows int64
}

// Field is one column of a table.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// Field returns the column called name.
func (s *TableSchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type describeResponse struct {
	Table   string `json:"table"`
	Version int64  `json:"version"`
	Schema  struct {
		Fields []struct {
			Name string `json:"name"`
			Type struct {
				Type string `json:"type"`
			} `json:"type"`
			Nullable bool `json:"nullable"`
		} `json:"fields"`
	} `json:"schema"`
	Stats struct {
		NumRows int64 `json:"num_rows"`
	} `json:"stats"`
}

func (r *describeResponse) schema(name string) *TableSchema {
	s := &TableSchema{
		Name:    r.Table,
		Version: r.Version,
		NumRows: r.Stats.NumRows,
		Fields:  make([]Field, 0, len(r.Schema.Fields)),
	}
	if s.Name == "" {
		s.Name = name
	}
	for _, f := range r.Schema.Fields {
		s.Fields = append(s.Fields, Field{Name: f.Name, Type: f.Type.Type, Nullable: f.Nullable})
	}
	return s
}

type listTablesResponse struct {
	Tables    []string `json:"tables"`
	PageToken string   `json:"page_token"`
}

type countRowsRequest struct {
	Predicate string `json:"predicate,omitempty"`
}
