package helpers

import (
	"fmt"
	"sort"
)

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// EnvList renders an environment map as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	list := make([]string, 0, len(env))

	for _, k := range SortedKeys(env) {
		list = append(list, fmt.Sprintf("%s=%s", k, env[k]))
	}

	return list
}

// MergeEnv layers each map over the previous ones.
func MergeEnv(envs ...map[string]string) map[string]string {
	merged := map[string]string{}

	for _, env := range envs {
		for k, v := range env {
			merged[k] = v
		}
	}

	return merged
}
