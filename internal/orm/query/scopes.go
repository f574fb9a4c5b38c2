package query

// Scope is a reusable query fragment
type Scope func(*Select) *Select

// Scoped applies scopes in order
func (s *Select) Scoped(scopes ...Scope) *Select {
	for _, scope := range scopes {
		s = scope(s)
	}
	return s
}

// Equals returns a scope matching rows where field = value
func Equals(field string, value interface{}) Scope {
	return func(s *Select) *Select {
		return s.Where(field, OpEqual, value)
	}
}

// Recent returns a scope ordering by field, newest first, limited to n rows
func Recent(field string, n int) Scope {
	return func(s *Select) *Select {
		return s.OrderByDesc(field).Limit(n)
	}
}
