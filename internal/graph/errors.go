package graph

import "errors"

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrKeyNotFound   = errors.New("key not found")
	ErrStoreClosed   = errors.New("graph store closed")
	ErrStoreUnusable = errors.New("graph store unusable")
)
