package provider

import "strings"

// Label-derived priority values for trackers without a first-class priority
// field (GitHub, GitLab). Values line up with the common Low..Critical
// internal scale so nearest-neighbor mapping lands where users expect.
const (
	priorityValueLow      = 1
	priorityValueMedium   = 2
	priorityValueHigh     = 3
	priorityValueCritical = 4
)

// PriorityFromLabels derives a priority name and numeric value from issue
// labels such as "priority:high" or a bare "critical". Unlabeled issues
// default to medium.
func PriorityFromLabels(labels []string) (string, float64) {
	for _, label := range labels {
		name := strings.ToLower(strings.TrimSpace(label))
		name = strings.TrimPrefix(name, "priority:")
		name = strings.TrimPrefix(name, "priority/")
		switch name {
		case "critical", "urgent", "blocker":
			return "Critical", priorityValueCritical
		case "high":
			return "High", priorityValueHigh
		case "medium", "normal":
			return "Medium", priorityValueMedium
		case "low", "minor", "trivial":
			return "Low", priorityValueLow
		}
	}
	return "Medium", priorityValueMedium
}
