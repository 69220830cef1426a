package models

import (
	"sort"
	"strconv"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

func formatSeconds(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
