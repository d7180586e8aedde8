package mm

// Purpose is the budgeted category of an allocation. Every kalloc/kfree
// call must agree on the purpose it started with; a mismatch is a fatal
// accounting bug.
type Purpose int

const (
	PurposeKernel Purpose = iota
	PurposeFilesystem
	PurposeNetwork
	PurposeProgram
	PurposeShared
	PurposeCache
	PurposeModule
	purposeCount
)

func (p Purpose) String() string {
	switch p {
	case PurposeKernel:
		return "kernel"
	case PurposeFilesystem:
		return "filesystem"
	case PurposeNetwork:
		return "network"
	case PurposeProgram:
		return "program"
	case PurposeShared:
		return "shared"
	case PurposeCache:
		return "cache"
	case PurposeModule:
		return "module"
	default:
		return "unknown"
	}
}

// UsageDetails is the per-purpose usage snapshot, grounded on the original's
// _mm_get_mem_usage_details (mm.h, original_source).
type UsageDetails struct {
	Kernel      int64
	Filesystem  int64
	Network     int64
	Program     int64
	Shared      int64
	Cache       int64
	Module      int64
}

func (u UsageDetails) byPurpose(p Purpose) int64 {
	switch p {
	case PurposeKernel:
		return u.Kernel
	case PurposeFilesystem:
		return u.Filesystem
	case PurposeNetwork:
		return u.Network
	case PurposeProgram:
		return u.Program
	case PurposeShared:
		return u.Shared
	case PurposeCache:
		return u.Cache
	case PurposeModule:
		return u.Module
	default:
		return 0
	}
}
