package output

// EnvGroup is one titled block of envinfo settings. Field order is kept.
type EnvGroup struct {
	Title  string     `json:"title"`
	Fields []EnvField `json:"fields"`
}

// EnvField is a single setting.
type EnvField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Add appends a field and returns the group for chaining.
func (g EnvGroup) Add(key, value string) EnvGroup {
	g.Fields = append(g.Fields, EnvField{Key: key, Value: value})
	return g
}

// FormatEnvInfo renders envinfo groups.
func FormatEnvInfo(format Format, groups []EnvGroup) (string, error) {
	if format == FormatJSON {
		return renderJSON(groups)
	}

	sections := make([]section, 0, len(groups))
	for _, g := range groups {
		s := section{title: g.Title, header: []string{"Setting", "Value"}, empty: "(none)"}
		for _, f := range g.Fields {
			s.rows = append(s.rows, []string{f.Key, f.Value})
		}
		sections = append(sections, s)
	}
	return renderSections(format, sections...), nil
}
