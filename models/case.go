package models

import "time"

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID                string     `json:"id" bson:"_id" yaml:"id"`
	Title             string     `json:"title" bson:"title" yaml:"title"`
	Description       string     `json:"description" bson:"description" yaml:"description"`
	Charges           []string   `json:"charges" bson:"charges" yaml:"charges"`
	CaseFacts         string     `json:"case_facts" bson:"case_facts" yaml:"case_facts"`
	ProsecutionTheory string     `json:"prosecution_theory" bson:"prosecution_theory" yaml:"prosecution_theory"`
	DefenseTheory     string     `json:"defense_theory" bson:"defense_theory" yaml:"defense_theory"`
	Evidence          []Evidence `json:"evidence" bson:"evidence" yaml:"evidence"`
	Witnesses         []Witness  `json:"witnesses" bson:"witnesses" yaml:"witnesses"`
	LegalPrecedents   []string   `json:"legal_precedents" bson:"legal_precedents" yaml:"legal_precedents"`
	Category          string     `json:"category,omitempty" bson:"category" yaml:"category"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at" yaml:"-"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at" yaml:"-"`
}

// Evidence is a single exhibit attached to a case
type Evidence struct {
	ID           string   `json:"id" bson:"id" yaml:"id"`
	Title        string   `json:"title" bson:"title" yaml:"title"`
	Description  string   `json:"description" bson:"description" yaml:"description"`
	Content      string   `json:"content" bson:"content" yaml:"content"`
	EvidenceType string   `json:"evidence_type" bson:"evidence_type" yaml:"evidence_type"`
	SubmittedBy  CaseRole `json:"submitted_by" bson:"submitted_by" yaml:"submitted_by"`
	IsAdmitted   bool     `json:"is_admitted" bson:"is_admitted" yaml:"is_admitted"`
}

// Witness is a person who can be called to testify
type Witness struct {
	ID         string   `json:"id" bson:"id" yaml:"id"`
	Name       string   `json:"name" bson:"name" yaml:"name"`
	Background string   `json:"background" bson:"background" yaml:"background"`
	Knowledge  string   `json:"knowledge" bson:"knowledge" yaml:"knowledge"`
	Bias       string   `json:"bias,omitempty" bson:"bias,omitempty" yaml:"bias"`
	CalledBy   CaseRole `json:"called_by" bson:"called_by" yaml:"called_by"`
}

// FindWitness returns the witness with the given name
func (c Case) FindWitness(name string) (Witness, bool) {
	for _, w := range c.Witnesses {
		if w.Name == name {
			return w, true
		}
	}
	return Witness{}, false
}

// FindEvidence returns the exhibit with the given id
func (c Case) FindEvidence(id string) (Evidence, bool) {
	for _, e := range c.Evidence {
		if e.ID == id {
			return e, true
		}
	}
	return Evidence{}, false
}
