package utils

// PartitionMap splits the index range [0, MaxIndex) into ParallelDegree
// contiguous buckets whose sizes differ by at most one, the larger buckets
// first
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	var (
		size      = maxIndex / ParallelDegree
		remainder = maxIndex % ParallelDegree
		begin     int
	)
	for n := range pm.Partitions {
		end := begin + size
		if n < remainder {
			end++
		}
		pm.Partitions[n] = [2]int{begin, end}
		begin = end
	}
	return
}

// Owner returns the bucket holding index k, -1 when k is out of range
func (pm *PartitionMap) Owner(k int) (bn int) {
	bn, _ = pm.owner(k)
	return
}

// owner starts from the proportional guess and walks, reporting the steps
func (pm *PartitionMap) owner(k int) (bn, tries int) {
	if k < 0 || k >= pm.MaxIndex {
		return -1, 0
	}
	bn = pm.ParallelDegree * k / pm.MaxIndex
	for {
		switch r := pm.Partitions[bn]; {
		case k < r[0]:
			bn--
		case k >= r[1]:
			bn++
		default:
			return
		}
		tries++
	}
}

func (pm *PartitionMap) Range(bn int) (kMin, kMax int) {
	return pm.Partitions[bn][0], pm.Partitions[bn][1]
}

func (pm *PartitionMap) Size(bn int) int {
	kMin, kMax := pm.Range(bn)
	return kMax - kMin
}
