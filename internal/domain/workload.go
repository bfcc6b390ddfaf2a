package domain

// DefaultPriorityWeights weigh open tickets when measuring load.
var DefaultPriorityWeights = map[ComplaintPriority]float64{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 5,
}

// StaffWorkload is computed per assignment decision and never cached.
type StaffWorkload struct {
	StaffID           string                    `json:"staffId"`
	Name              string                    `json:"name"`
	Department        string                    `json:"department"`
	OpenTickets       map[ComplaintPriority]int `json:"openTickets"`
	WeightedOpen      float64                   `json:"weightedOpen"`
	WeightedCapacity  float64                   `json:"weightedCapacity"`
	AvailabilityScore float64                   `json:"availabilityScore"`
}

// NewStaffWorkload scores staff given its open counts.
func NewStaffWorkload(staff StaffMember, open map[ComplaintPriority]int, weights map[ComplaintPriority]float64, capacity float64) StaffWorkload {
	counts := make(map[ComplaintPriority]int, len(Priorities))
	weighted := 0.0
	for _, p := range Priorities {
		counts[p] = open[p]
		weighted += float64(open[p]) * weights[p]
	}
	return StaffWorkload{
		StaffID:           staff.ID,
		Name:              staff.Name,
		Department:        staff.Department,
		OpenTickets:       counts,
		WeightedOpen:      weighted,
		WeightedCapacity:  capacity,
		AvailabilityScore: AvailabilityScore(weighted, capacity),
	}
}

// AvailabilityScore is 1 - load/capacity clamped to [0,1].
func AvailabilityScore(weightedOpen, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	score := 1 - weightedOpen/capacity
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// UrgentAndHigh counts the open tickets used as the first tie breaker.
func (w StaffWorkload) UrgentAndHigh() int {
	return w.OpenTickets[PriorityUrgent] + w.OpenTickets[PriorityHigh]
}

// RankBefore orders workloads: higher score, then fewer urgent+high, then id.
func (w StaffWorkload) RankBefore(other StaffWorkload) bool {
	if w.AvailabilityScore != other.AvailabilityScore {
		return w.AvailabilityScore > other.AvailabilityScore
	}
	if w.UrgentAndHigh() != other.UrgentAndHigh() {
		return w.UrgentAndHigh() < other.UrgentAndHigh()
	}
	return w.StaffID < other.StaffID
}
