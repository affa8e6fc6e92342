package domain

// Principal is the slice of an identity the gateway needs to authorize a request.
type Principal interface {
	SubjectID() string
	IsActive() bool
	Roles() []string
}
