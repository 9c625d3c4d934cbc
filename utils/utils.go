/*
Package utils contains all the helper functions for cloudstate.
*/
package utils

import (
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dgryski/go-farm"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

var logTag = "cloudstate.utils"

// GetJSONStr will return an mashaled json string from struct, if failed, return empty string
func GetJSONStr(t interface{}) string {
	item, err := json.Marshal(t)
	if err == nil {
		return string(item)
	}
	log.WithField("tag", logTag).Warnf("Failed to marshal json object. %s", err)
	return ""
}

// Difference will find the difference between two slices,
// and return items in slice1 not in slice2,
// and return items in slice2 not in slice1
func Difference(slice1 []string, slice2 []string) ([]string, []string) {
	var diff1 []string
	var diff2 []string

	for _, s1 := range slice1 {
		if !slices.Contains(slice2, s1) {
			diff1 = append(diff1, s1)
		}
	}
	for _, s2 := range slice2 {
		if !slices.Contains(slice1, s2) {
			diff2 = append(diff2, s2)
		}
	}
	return diff1, diff2
}

// SelectInt takes an option and a default value and returns the default value if
// the option is equal to zero, and the option otherwise.
func SelectInt(opt, def int) int {
	if opt == 0 {
		return def
	}
	return opt
}

// SelectDuration takes an option and a default value and returns the default value if
// the option is equal to zero, and the option otherwise.
func SelectDuration(opt, def time.Duration) time.Duration {
	if opt == time.Duration(0) {
		return def
	}
	return opt
}

// GetCheckSumFromNodes will Get the checkSum from nodes.
// The input slice is not modified.
func GetCheckSumFromNodes(nodes []string) uint32 {
	sorted := slices.Clone(nodes)
	slices.Sort(sorted)
	return farm.Fingerprint32([]byte(strings.Join(sorted, ";")))
}

// DoPanicRecovery is the common panic recover pattern for go routing
// All the go routing normal failure should return error, instead of panic.
func DoPanicRecovery(name string) {
	if r := recover(); r != nil {
		log.WithField("tag", logTag).Errorf("%s failed with error %v %s", name, r, string(debug.Stack()))
	}
}
