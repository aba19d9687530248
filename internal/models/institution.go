package models

// InstitutionKind represents the type of financial institution
type InstitutionKind string

const (
	InstitutionKindBank     InstitutionKind = "banco"
	InstitutionKindBroker   InstitutionKind = "broker"
	InstitutionKindExchange InstitutionKind = "exchange"
	InstitutionKindOther    InstitutionKind = "otro"
)

// Valid reports whether k is a known institution kind.
func (k InstitutionKind) Valid() bool {
	switch k {
	case InstitutionKindBank, InstitutionKindBroker, InstitutionKindExchange, InstitutionKindOther:
		return true
	}
	return false
}

// Institution is a bank, broker or exchange that holds accounts.
type Institution struct {
	ID   string          `json:"id"`
	Name string          `json:"nombre"`
	Kind InstitutionKind `json:"tipo,omitempty"`
}

// EntityID implements Entity.
func (i Institution) EntityID() string { return i.ID }
