package utils

const (
	// NODETOL is the relative tolerance for coincident coordinates
	NODETOL = 1.e-12
)
