package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/switch/my_device/command"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "my_device", "device extract")
}

func TestSwitchCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/switch/my_device/state"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestOverrideCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	r := overrideCommandExtractor(baseTopic)

	assert.True(r.MatchString("loremTopic/override/set"), "override set matches")
	assert.False(r.MatchString("loremTopic/override/state"), "override state does not match")
	assert.False(r.MatchString("otherTopic/override/set"), "other base topic does not match")
}
