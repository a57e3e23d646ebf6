package types

// KnowledgeEntry is one curated pedagogy entry from the seed corpus.
// Entries live in a YAML file loaded at startup; the retriever matches
// against their embedded text and returns the full entry.
type KnowledgeEntry struct {
	ID                string            `yaml:"id" json:"id"`
	GroupLabel        string            `yaml:"group_label" json:"group_label"`
	TargetConditions  []string          `yaml:"target_conditions" json:"target_conditions"`
	Signals           []string          `yaml:"signals" json:"signals"`
	Strategy          KnowledgeStrategy `yaml:"strategy" json:"strategy"`
	Foundation        KnowledgeBasis    `yaml:"foundation" json:"foundation"`
	Examples          []string          `yaml:"examples" json:"examples"`
	Contraindications []string          `yaml:"contraindications" json:"contraindications"`
	Tags              []string          `yaml:"tags" json:"tags"`
	LastUpdated       string            `yaml:"last_updated" json:"last_updated,omitempty"`
}

type KnowledgeStrategy struct {
	Name           string   `yaml:"name" json:"name"`
	Implementation []string `yaml:"implementation" json:"implementation"`
	Materials      []string `yaml:"materials" json:"materials"`
}

type KnowledgeBasis struct {
	Theory   string   `yaml:"theory" json:"theory"`
	Evidence string   `yaml:"evidence" json:"evidence"`
	Studies  []string `yaml:"studies" json:"studies"`
}
