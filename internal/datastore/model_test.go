package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringSetAdd(t *testing.T) {
	var s StringSet

	s = s.Add("front_yard")
	s = s.Add("driveway")
	s = s.Add("front_yard")

	assert.Equal(t, StringSet{"driveway", "front_yard"}, s)
}

func TestStringSetAddDoesNotMutateReceiver(t *testing.T) {
	original := StringSet{"driveway"}
	extended := original.Add("front_yard")

	assert.Equal(t, StringSet{"driveway"}, original)
	assert.Equal(t, StringSet{"driveway", "front_yard"}, extended)
}

func TestStringSetContains(t *testing.T) {
	s := StringSet{"driveway", "front_yard"}

	assert.True(t, s.Contains("driveway"))
	assert.False(t, s.Contains("street"))

	var empty StringSet
	assert.False(t, empty.Contains("anything"))
}
