package relationships

// Relation is a resolved relation. The set of implementations is closed:
// *LocalKey, *ForeignKey, *Association and *SelfAssociation.
type Relation interface {
	// Table returns the related table
	Table() Table
	// Local returns the key column on the owning side
	Local() string
	// Foreign returns the key column on the related side
	Foreign() string
	Cardinality() Cardinality
	Alias() string

	relation()
}

type base struct {
	table       Table
	local       string
	foreign     string
	cardinality Cardinality
	alias       string
}

func (b *base) Table() Table { return b.table }
func (b *base) Local() string { return b.local }
func (b *base) Foreign() string { return b.foreign }
func (b *base) Cardinality() Cardinality { return b.cardinality }
func (b *base) Alias() string { return b.alias }
func (b *base) relation() {}

// LocalKey is a one-to-one relation through a column of the owning table
type LocalKey struct{ base }

// ForeignKey is a one-to-many or one-to-one relation through a column of the
// related table
type ForeignKey struct{ base }

// Association is a many-to-many relation through a join table. Local is the
// join column referencing the owner, Foreign the one referencing the target.
type Association struct {
	base
	join Table
}

// JoinTable returns the join table
func (a *Association) JoinTable() Table { return a.join }

// SelfAssociation is a many-to-many relation of a table with itself through
// two columns of a join table
type SelfAssociation struct {
	base
	join Table
}

// JoinTable returns the join table
func (a *SelfAssociation) JoinTable() Table { return a.join }

// Kind names the variant of a relation
func Kind(r Relation) string {
	switch r.(type) {
	case *LocalKey:
		return "local_key"
	case *ForeignKey:
		return "foreign_key"
	case *Association:
		return "association"
	case *SelfAssociation:
		return "self_association"
	default:
		return "unknown"
	}
}

// Description is a serializable view of a relation
type Description struct {
	Alias       string `json:"alias"`
	Kind        string `json:"kind"`
	Component   string `json:"component"`
	Local       string `json:"local"`
	Foreign     string `json:"foreign"`
	Cardinality string `json:"cardinality"`
	JoinTable   string `json:"join_table,omitempty"`
}

// Describe returns the serializable view of r
func Describe(r Relation) Description {
	d := Description{
		Alias:       r.Alias(),
		Kind:        Kind(r),
		Component:   r.Table().ComponentName(),
		Local:       r.Local(),
		Foreign:     r.Foreign(),
		Cardinality: r.Cardinality().String(),
	}
	switch v := r.(type) {
	case *Association:
		d.JoinTable = v.join.ComponentName()
	case *SelfAssociation:
		d.JoinTable = v.join.ComponentName()
	}
	return d
}
