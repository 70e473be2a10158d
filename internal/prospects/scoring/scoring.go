// Package scoring computes the commercial priority of a prospect.
//
// A score starts at 50 and collects bonuses for age, monthly budget, health
// and urgency, saturating at 100. The segment depends on age and budget only.
// Both functions are pure and never fail; callers validate inputs first.
package scoring

import (
	"fmt"
	"time"
)

// HealthStatus is the self-declared health of the prospect.
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthAverage   HealthStatus = "average"
	HealthPoor      HealthStatus = "poor"
)

// UrgencyLevel is how quickly the prospect needs cover.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

// Segment is the commercial tier derived from age and budget.
type Segment string

const (
	SegmentPremium  Segment = "premium"
	SegmentStandard Segment = "standard"
)

const (
	baseScore = 50
	maxScore  = 100

	seniorMinAge = 60
	seniorMaxAge = 75

	highBudget   = 100.0
	mediumBudget = 50.0

	premiumMinBudget = 80.0
	premiumMinAge    = 60
)

var healthBonus = map[HealthStatus]int{
	HealthExcellent: 15,
	HealthGood:      10,
	HealthAverage:   5,
	HealthPoor:      0,
}

var urgencyBonus = map[UrgencyLevel]int{
	UrgencyHigh:   10,
	UrgencyMedium: 5,
	UrgencyLow:    0,
}

// Inputs are the four factors the score depends on.
type Inputs struct {
	Age           int
	MonthlyBudget float64
	HealthStatus  HealthStatus
	UrgencyLevel  UrgencyLevel
}

// Result pairs a score with its segment.
type Result struct {
	Score   int     `json:"score"`
	Segment Segment `json:"segment"`
}

// Score returns min(50 + bonuses, 100).
func Score(in Inputs) int {
	score := baseScore
	score += ageBonus(in.Age)
	score += budgetBonus(in.MonthlyBudget)
	score += healthBonus[in.HealthStatus]
	score += urgencyBonus[in.UrgencyLevel]

	if score > maxScore {
		return maxScore
	}
	return score
}

func ageBonus(age int) int {
	switch {
	case age > seniorMaxAge:
		return 15
	case age >= seniorMinAge:
		return 20
	default:
		return 0
	}
}

func budgetBonus(budget float64) int {
	switch {
	case budget >= highBudget:
		return 15
	case budget >= mediumBudget:
		return 10
	default:
		return 0
	}
}

// SegmentFor returns premium when budget >= 80 and age >= 60.
func SegmentFor(age int, monthlyBudget float64) Segment {
	if monthlyBudget >= premiumMinBudget && age >= premiumMinAge {
		return SegmentPremium
	}
	return SegmentStandard
}

// Evaluate computes both score and segment.
func Evaluate(in Inputs) Result {
	return Result{
		Score:   Score(in),
		Segment: SegmentFor(in.Age, in.MonthlyBudget),
	}
}

// AgeAt returns the age in whole years on the given day.
func AgeAt(birthDate, now time.Time) int {
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// ParseHealthStatus rejects values outside the known set.
func ParseHealthStatus(value string) (HealthStatus, error) {
	status := HealthStatus(value)
	if _, ok := healthBonus[status]; !ok {
		return "", fmt.Errorf("unknown health status %q", value)
	}
	return status, nil
}

// ParseUrgencyLevel rejects values outside the known set.
func ParseUrgencyLevel(value string) (UrgencyLevel, error) {
	level := UrgencyLevel(value)
	if _, ok := urgencyBonus[level]; !ok {
		return "", fmt.Errorf("unknown urgency level %q", value)
	}
	return level, nil
}

// Reason summarizes which bonuses applied, for logs.
func Reason(in Inputs) string {
	return fmt.Sprintf("age+%d budget+%d health+%d urgency+%d",
		ageBonus(in.Age), budgetBonus(in.MonthlyBudget), healthBonus[in.HealthStatus], urgencyBonus[in.UrgencyLevel])
}
