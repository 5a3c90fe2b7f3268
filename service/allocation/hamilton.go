package allocation

import "sort"

// share is one claimant in an apportionment. Weight is an integer so remainders compare exactly.
type share struct {
	key    int // tie-break order: higher key wins an equal remainder
	weight int64
}

// apportion splits total across shares by largest remainder. The result sums to
// total whenever the weights sum to more than zero.
func apportion(total int, shares []share) []int {
	out := make([]int, len(shares))
	var sum int64
	for _, s := range shares {
		sum += s.weight
	}
	if total <= 0 || sum == 0 {
		return out
	}

	rem := make([]int64, len(shares))
	given := 0
	for i, s := range shares {
		num := int64(total) * s.weight
		out[i] = int(num / sum)
		rem[i] = num % sum
		given += out[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if rem[ia] != rem[ib] {
			return rem[ia] > rem[ib]
		}
		return shares[ia].key > shares[ib].key
	})
	for i := 0; given < total; i++ {
		out[order[i%len(order)]]++
		given++
	}
	return out
}

// hundredths turns hours into an exact integer weight.
func hundredths(hours float64) int64 {
	if hours <= 0 {
		return 0
	}
	return int64(hours*100 + 0.5)
}
