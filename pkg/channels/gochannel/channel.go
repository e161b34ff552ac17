// Package gochannel provides the in-process event channel used when the API,
// the flow runner and the hub share one process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// OutputBuffer bounds the messages queued per subscriber.
const OutputBuffer = 1000

// CreateChannel returns one GoChannel acting as both publisher and subscriber.
// Publish returns once the subscriber acknowledged the message, so events
// published by one goroutine are handled in publish order.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            OutputBuffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateTestChannel is CreateChannel with a small buffer and persistent
// topics, so a subscriber attached after a publish still sees the message.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
