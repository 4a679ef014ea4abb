package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityFromLabels(t *testing.T) {
	tests := []struct {
		name      string
		labels    []string
		wantName  string
		wantValue float64
	}{
		{name: "no labels defaults to medium", labels: nil, wantName: "Medium", wantValue: 2},
		{name: "prefixed high", labels: []string{"bug", "priority:high"}, wantName: "High", wantValue: 3},
		{name: "slash prefix", labels: []string{"priority/low"}, wantName: "Low", wantValue: 1},
		{name: "bare critical", labels: []string{"critical"}, wantName: "Critical", wantValue: 4},
		{name: "urgent maps to critical", labels: []string{"urgent"}, wantName: "Critical", wantValue: 4},
		{name: "first recognized label wins", labels: []string{"priority:low", "priority:high"}, wantName: "Low", wantValue: 1},
		{name: "unrelated labels default", labels: []string{"bug", "docs"}, wantName: "Medium", wantValue: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, value := PriorityFromLabels(tt.labels)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}
