package core

// MergeInput computes the effective input for a row: defaults merged with
// the row's own fields, row wins on every key. Standard fields only merge
// when the row leaves them empty; Fields entries are merged key by key.
func MergeInput(defaults, row Row) Row {
	effective := row
	if effective.CandidateText == "" {
		effective.CandidateText = defaults.CandidateText
	}
	if effective.Reference == "" {
		effective.Reference = defaults.Reference
	}
	if effective.Source == "" {
		effective.Source = defaults.Source
	}
	if effective.Prompt == "" {
		effective.Prompt = defaults.Prompt
	}
	if effective.ContentType == "" {
		effective.ContentType = defaults.ContentType
	}
	if effective.Language == "" {
		effective.Language = defaults.Language
	}

	if len(defaults.Fields) == 0 {
		return effective
	}
	merged := make(map[string]string, len(defaults.Fields)+len(row.Fields))
	for k, v := range defaults.Fields {
		merged[k] = v
	}
	for k, v := range row.Fields {
		merged[k] = v
	}
	effective.Fields = merged
	return effective
}
