package store

// Storer is a store that must be initialized before use and closed after
type Storer interface {
	Init() error
	Close() error
}
