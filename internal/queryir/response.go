package queryir

// MutationData is one row of a Mutations or AminoAcidMutations response.
type MutationData struct {
	Mutation     string  `json:"mutation"`
	MutationFrom string  `json:"mutationFrom"`
	MutationTo   string  `json:"mutationTo"`
	Position     int     `json:"position"`
	SequenceName string  `json:"sequenceName"`
	Proportion   float64 `json:"proportion"`
	Coverage     int     `json:"coverage"`
	Count        int     `json:"count"`
}

// InsertionData is one row of an Insertions or AminoAcidInsertions
// response.
type InsertionData struct {
	Insertion       string `json:"insertion"`
	Count           int    `json:"count"`
	InsertedSymbols string `json:"insertedSymbols"`
	Position        int    `json:"position"`
	SequenceName    string `json:"sequenceName"`
}
