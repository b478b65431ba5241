package vecpot

import "errors"

var (
	ErrInvalidLattice = errors.New("vecpot: invalid lattice")

	// ErrDomainCoverage indicates a lattice too small to pad the domain or a block.
	ErrDomainCoverage = errors.New("vecpot: lattice does not cover the domain")

	// ErrSampleOutsidePatch indicates a sample whose kernel reaches the patch edge.
	ErrSampleOutsidePatch = errors.New("vecpot: sample outside lattice patch")

	ErrUnsupportedFormat = errors.New("vecpot: unsupported file format")
)
