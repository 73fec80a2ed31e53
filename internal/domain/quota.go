package domain

// UnlimitedQuota is the ceiling sentinel meaning no limit is enforced.
const UnlimitedQuota = -1

// UsageQuota tracks per-tenant conversation usage for the current
// billing period. Counters are mutated by the side-effect dispatcher via
// atomic store increments; they are not transactionally tied to message
// persistence, so concurrent requests can under-count.
type UsageQuota struct {
	OwnerID string
	Used    int64
	Ceiling int64
}

// Unlimited reports whether the quota ceiling is the unlimited sentinel.
func (q *UsageQuota) Unlimited() bool {
	return q.Ceiling == UnlimitedQuota
}

// Exhausted reports whether the tenant has used up their quota.
func (q *UsageQuota) Exhausted() bool {
	if q.Unlimited() {
		return false
	}
	return q.Used >= q.Ceiling
}
